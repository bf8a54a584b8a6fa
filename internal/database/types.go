package database

import "database/sql"

// NullString maps an empty address to SQL NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FromNullString returns the string value of a nullable column, empty for NULL.
func FromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

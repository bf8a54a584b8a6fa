package database

import "embed"

// EmbeddedMigrations contains the SQL migrations of every dialect, one
// subdirectory per dialect.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var EmbeddedMigrations embed.FS

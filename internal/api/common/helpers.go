package common

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sectorwatch/sectorwatch/internal/middleware"
	"github.com/sectorwatch/sectorwatch/internal/store"
)

// SendJSON sends a JSON response
func SendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// SendError sends a standardized error response
func SendError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := middleware.ErrorResponse{
		Error: middleware.ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// SendListResponse sends a standardized list response
func SendListResponse(w http.ResponseWriter, data interface{}, total int) {
	SendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  data,
		"total": total,
	})
}

// DecodeJSON decodes request body with error handling
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var input T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		SendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", err.Error())
		return input, false
	}
	return input, true
}

// QueryInt parses an optional integer query parameter. It writes a 400 and
// returns false when the value is present but malformed.
func QueryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		SendError(w, r, http.StatusBadRequest, "INVALID_QUERY", "Query parameter "+name+" must be an integer", nil)
		return 0, false
	}
	return v, true
}

// HandleStoreError sends appropriate error response for store errors
func HandleStoreError(w http.ResponseWriter, r *http.Request, err error, entityName string) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		SendError(w, r, http.StatusServiceUnavailable, "TIMEOUT", "Request cancelled while reading "+entityName, nil)
	case errors.Is(err, store.ErrClosed), errors.Is(err, store.ErrUnavailable):
		SendError(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable", nil)
	default:
		SendError(w, r, http.StatusInternalServerError, "DB_ERROR", "Failed to read "+entityName, nil)
	}
	return true
}

package api

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the body of every non-2xx JSON reply.
type errorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// Error codes clients can branch on.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeWatchlistNotFound  = "WATCHLIST_NOT_FOUND"
	CodeWatchlistNameTaken = "WATCHLIST_NAME_TAKEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError writes {error: http status text, code, message}.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
	})
}

func respondValidation(w http.ResponseWriter, details ...FieldError) {
	respondJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "Validation failed",
		Code:    CodeValidation,
		Details: details,
	})
}

// respondInternal never exposes the underlying error to the client.
func respondInternal(w http.ResponseWriter, message string) {
	respondError(w, http.StatusInternalServerError, CodeInternal, message)
}

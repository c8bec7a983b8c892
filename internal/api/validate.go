package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxBodyBytes         = 1 << 20
	maxDescriptionLength = 10000
	minWatchlistName     = 3
	maxWatchlistName     = 50
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// decodeBody reads a single JSON object from the request, capped at maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) *FieldError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &FieldError{Field: "body", Message: fmt.Sprintf("must not exceed %d bytes", maxBodyBytes)}
		case errors.Is(err, io.EOF):
			return &FieldError{Field: "body", Message: "is required"}
		default:
			return &FieldError{Field: "body", Message: "must be a valid JSON object"}
		}
	}
	return nil
}

// validUUID accepts only the canonical 36-character form.
func validUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func checkUUID(field, value string) *FieldError {
	if value == "" {
		return &FieldError{Field: field, Message: "is required"}
	}
	if !validUUID(value) {
		return &FieldError{Field: field, Message: "must be a valid UUID"}
	}
	return nil
}

func checkDescription(value string) *FieldError {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: "description", Message: "is required"}
	}
	if utf8.RuneCountInString(value) > maxDescriptionLength {
		return &FieldError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", maxDescriptionLength)}
	}
	return nil
}

func checkWatchlistName(value string) *FieldError {
	n := utf8.RuneCountInString(value)
	if n < minWatchlistName || n > maxWatchlistName {
		return &FieldError{Field: "name", Message: fmt.Sprintf("must be between %d and %d characters", minWatchlistName, maxWatchlistName)}
	}
	return nil
}

// collect drops the nil entries.
func collect(errs ...*FieldError) []FieldError {
	var out []FieldError
	for _, e := range errs {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

package domain

import (
	"time"
)

// Event is a security event recorded against a watchlist. Enrichment fields are
// written together with the row and never change afterwards.
type Event struct {
	ID          string    `json:"id"`
	WatchlistID string    `json:"watchlistId"`
	Description string    `json:"description"`
	AISummary   *string   `json:"aiSummary"`
	AISeverity  *Severity `json:"aiSeverity"`
	AIAction    *string   `json:"aiAction"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateEventRequest struct {
	WatchlistID string `json:"watchlistId"`
	Description string `json:"description"`
}

// NewEvent folds an enrichment result into an event ready to be persisted.
func NewEvent(watchlistID, description string, result EnrichmentResult) Event {
	severity := result.Severity
	summary := result.Summary
	action := result.SuggestedAction
	return Event{
		WatchlistID: watchlistID,
		Description: description,
		AISummary:   &summary,
		AISeverity:  &severity,
		AIAction:    &action,
	}
}

package api

import (
	"context"
	"net/http"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
)

type HealthChecker interface {
	Check(ctx context.Context) domain.HealthReport
}

// HealthHandler always answers 200; the body says whether the service is healthy.
func HealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		respondJSON(w, http.StatusOK, checker.Check(r.Context()))
	}
}

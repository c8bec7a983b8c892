package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/Priya8975/watchlist-enricher/internal/logging"
	"github.com/Priya8975/watchlist-enricher/internal/store"
	"github.com/go-chi/chi/v5"
)

type EventStore interface {
	CreateEvent(ctx context.Context, ev domain.Event) (*domain.Event, error)
	ListEventsByWatchlist(ctx context.Context, watchlistID string, limit int) ([]domain.Event, error)
}

// Analyzer enriches a description. It always returns a complete result.
type Analyzer interface {
	Analyze(ctx context.Context, description string) domain.EnrichmentResult
}

// EventCache holds event listings per watchlist. Set must not write when the
// watchlist was invalidated after gen was obtained from Generation.
type EventCache interface {
	Get(ctx context.Context, watchlistID string) ([]domain.Event, bool, error)
	Generation(ctx context.Context, watchlistID string) (int64, error)
	Set(ctx context.Context, watchlistID string, gen int64, events []domain.Event) (bool, error)
	Invalidate(ctx context.Context, watchlistID string) error
}

// RateLimiter admits event ingestion per watchlist. When it refuses,
// retryAfter says how long the client should wait.
type RateLimiter interface {
	Allow(ctx context.Context, watchlistID string) (allowed bool, retryAfter time.Duration)
}

// EventPublisher receives every event after it has been stored.
type EventPublisher interface {
	PublishEvent(ev domain.Event)
}

type EventHandler struct {
	store     EventStore
	analyzer  Analyzer
	cache     EventCache
	limiter   RateLimiter
	publisher EventPublisher
	logger    *slog.Logger
}

type EventHandlerOption func(*EventHandler)

func WithEventCache(c EventCache) EventHandlerOption {
	return func(h *EventHandler) { h.cache = c }
}

func WithRateLimit(l RateLimiter) EventHandlerOption {
	return func(h *EventHandler) { h.limiter = l }
}

func WithPublisher(p EventPublisher) EventHandlerOption {
	return func(h *EventHandler) { h.publisher = p }
}

func NewEventHandler(s EventStore, a Analyzer, logger *slog.Logger, opts ...EventHandlerOption) *EventHandler {
	h := &EventHandler{store: s, analyzer: a, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create enriches the description and then stores the event in one insert,
// so a stored event always carries its enrichment.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.logger)

	var req domain.CreateEventRequest
	if fe := decodeBody(w, r, &req); fe != nil {
		respondValidation(w, *fe)
		return
	}
	if details := collect(checkUUID("watchlistId", req.WatchlistID), checkDescription(req.Description)); len(details) > 0 {
		respondValidation(w, details...)
		return
	}

	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(ctx, req.WatchlistID); !ok {
			w.Header().Set("Retry-After", retryAfterSeconds(wait))
			respondError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many events for this watchlist, slow down")
			return
		}
	}

	result := h.analyzer.Analyze(ctx, req.Description)

	event, err := h.store.CreateEvent(ctx, domain.NewEvent(req.WatchlistID, req.Description, result))
	if err != nil {
		if errors.Is(err, store.ErrWatchlistMissing) {
			respondError(w, http.StatusNotFound, CodeWatchlistNotFound, "Watchlist not found")
			return
		}
		log.Error("failed to create event", "error", err, "watchlist_id", req.WatchlistID)
		respondInternal(w, "Failed to create event")
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, event.WatchlistID); err != nil {
			log.Warn("failed to invalidate events cache", "error", err, "watchlist_id", event.WatchlistID)
		}
	}
	if h.publisher != nil {
		h.publisher.PublishEvent(*event)
	}

	log.Info("event created",
		"event_id", event.ID,
		"watchlist_id", event.WatchlistID,
		"severity", result.Severity,
	)
	respondJSON(w, http.StatusCreated, event)
}

// ListByWatchlist returns every event of a watchlist, newest first. An
// unknown watchlist simply has no events.
func (h *EventHandler) ListByWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.logger)

	watchlistID := chi.URLParam(r, "watchlistId")
	if fe := checkUUID("watchlistId", watchlistID); fe != nil {
		respondValidation(w, *fe)
		return
	}

	// The generation is read before the store so an insert that lands in
	// between turns the write-back below into a no-op.
	var (
		gen       int64
		cacheable bool
	)
	if h.cache != nil {
		events, hit, err := h.cache.Get(ctx, watchlistID)
		if err != nil {
			log.Warn("events cache read failed", "error", err, "watchlist_id", watchlistID)
		} else if hit {
			respondJSON(w, http.StatusOK, nonNil(events))
			return
		}

		gen, err = h.cache.Generation(ctx, watchlistID)
		if err != nil {
			log.Warn("events cache generation read failed", "error", err, "watchlist_id", watchlistID)
		} else {
			cacheable = true
		}
	}

	events, err := h.store.ListEventsByWatchlist(ctx, watchlistID, 0)
	if err != nil {
		log.Error("failed to list events", "error", err, "watchlist_id", watchlistID)
		respondInternal(w, "Failed to retrieve events")
		return
	}
	events = nonNil(events)

	if cacheable {
		written, err := h.cache.Set(ctx, watchlistID, gen, events)
		switch {
		case err != nil:
			log.Warn("events cache write failed", "error", err, "watchlist_id", watchlistID)
		case !written:
			log.Debug("events cache write skipped, listing changed meanwhile", "watchlist_id", watchlistID)
		}
	}

	respondJSON(w, http.StatusOK, events)
}

// retryAfterSeconds renders wait as a Retry-After value, rounded up to at
// least one second.
func retryAfterSeconds(wait time.Duration) string {
	secs := int64((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func nonNil(events []domain.Event) []domain.Event {
	if events == nil {
		return []domain.Event{}
	}
	return events
}

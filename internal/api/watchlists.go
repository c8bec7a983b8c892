package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/Priya8975/watchlist-enricher/internal/logging"
	"github.com/Priya8975/watchlist-enricher/internal/store"
	"github.com/go-chi/chi/v5"
)

type WatchlistStore interface {
	CreateWatchlist(ctx context.Context, name string) (*domain.Watchlist, error)
	ListWatchlists(ctx context.Context) ([]domain.Watchlist, error)
	GetWatchlist(ctx context.Context, id string) (*domain.WatchlistDetail, error)
	UpdateWatchlist(ctx context.Context, id, name string) (*domain.Watchlist, error)
	DeleteWatchlist(ctx context.Context, id string) error
}

type WatchlistHandler struct {
	store  WatchlistStore
	cache  EventCache
	logger *slog.Logger
}

// NewWatchlistHandler builds the handler. cache may be nil; when set, deleting
// a watchlist also drops its cached event listing.
func NewWatchlistHandler(s WatchlistStore, cache EventCache, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{store: s, cache: cache, logger: logger}
}

func (h *WatchlistHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	name, ok := h.readName(w, r)
	if !ok {
		return
	}

	wl, err := h.store.CreateWatchlist(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			respondNameTaken(w)
			return
		}
		log.Error("failed to create watchlist", "error", err)
		respondInternal(w, "Failed to create watchlist")
		return
	}

	log.Info("watchlist created", "watchlist_id", wl.ID)
	respondJSON(w, http.StatusCreated, wl)
}

func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	watchlists, err := h.store.ListWatchlists(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to list watchlists", "error", err)
		respondInternal(w, "Failed to retrieve watchlists")
		return
	}
	if watchlists == nil {
		watchlists = []domain.Watchlist{}
	}
	respondJSON(w, http.StatusOK, watchlists)
}

func (h *WatchlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := readID(w, r)
	if !ok {
		return
	}

	detail, err := h.store.GetWatchlist(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to get watchlist", "error", err, "watchlist_id", id)
		respondInternal(w, "Failed to retrieve watchlist")
		return
	}
	if detail == nil {
		respondWatchlistNotFound(w)
		return
	}
	detail.Events = nonNil(detail.Events)

	respondJSON(w, http.StatusOK, detail)
}

func (h *WatchlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	id, ok := readID(w, r)
	if !ok {
		return
	}
	name, ok := h.readName(w, r)
	if !ok {
		return
	}

	wl, err := h.store.UpdateWatchlist(r.Context(), id, name)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			respondNameTaken(w)
			return
		}
		log.Error("failed to update watchlist", "error", err, "watchlist_id", id)
		respondInternal(w, "Failed to update watchlist")
		return
	}
	if wl == nil {
		respondWatchlistNotFound(w)
		return
	}

	respondJSON(w, http.StatusOK, wl)
}

// Delete removes the watchlist; its events go with it.
func (h *WatchlistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.logger)

	id, ok := readID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteWatchlist(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWatchlistNotFound(w)
			return
		}
		log.Error("failed to delete watchlist", "error", err, "watchlist_id", id)
		respondInternal(w, "Failed to delete watchlist")
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), id); err != nil {
			log.Warn("failed to invalidate events cache", "error", err, "watchlist_id", id)
		}
	}

	log.Info("watchlist deleted", "watchlist_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) readName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req domain.WatchlistRequest
	if fe := decodeBody(w, r, &req); fe != nil {
		respondValidation(w, *fe)
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if fe := checkWatchlistName(name); fe != nil {
		respondValidation(w, *fe)
		return "", false
	}
	return name, true
}

func readID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if fe := checkUUID("id", id); fe != nil {
		respondValidation(w, *fe)
		return "", false
	}
	return id, true
}

func respondWatchlistNotFound(w http.ResponseWriter) {
	respondError(w, http.StatusNotFound, CodeWatchlistNotFound, "Watchlist not found")
}

func respondNameTaken(w http.ResponseWriter) {
	respondError(w, http.StatusConflict, CodeWatchlistNameTaken, "Watchlist name already exists")
}

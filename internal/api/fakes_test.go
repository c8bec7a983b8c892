package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/Priya8975/watchlist-enricher/internal/store"
	"github.com/google/uuid"
)

// memStore keeps watchlists and events in memory, mirroring the Postgres
// store's sentinel errors.
type memStore struct {
	mu         sync.Mutex
	watchlists map[string]domain.Watchlist
	events     []domain.Event
	listCalls  int
	failWith   error
	trail      *[]string
	clock      time.Time
	// afterList runs once a listing snapshot is taken, outside the lock.
	afterList func()
}

func newMemStore() *memStore {
	return &memStore{
		watchlists: make(map[string]domain.Watchlist),
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addWatchlist(name string) domain.Watchlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	wl := domain.Watchlist{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.watchlists[wl.ID] = wl
	return wl
}

func (s *memStore) CreateEvent(_ context.Context, ev domain.Event) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trail != nil {
		*s.trail = append(*s.trail, "insert")
	}
	if s.failWith != nil {
		return nil, s.failWith
	}
	if _, ok := s.watchlists[ev.WatchlistID]; !ok {
		return nil, store.ErrWatchlistMissing
	}
	ev.ID = uuid.NewString()
	ev.CreatedAt = s.tick()
	s.events = append(s.events, ev)
	return &ev, nil
}

func (s *memStore) ListEventsByWatchlist(_ context.Context, watchlistID string, limit int) ([]domain.Event, error) {
	out, hook, err := s.snapshot(watchlistID, limit)
	if hook != nil {
		hook()
	}
	return out, err
}

func (s *memStore) snapshot(watchlistID string, limit int) ([]domain.Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.failWith != nil {
		return nil, s.afterList, s.failWith
	}
	out := []domain.Event{}
	for _, ev := range s.events {
		if ev.WatchlistID == watchlistID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, s.afterList, nil
}

func (s *memStore) CreateWatchlist(_ context.Context, name string) (*domain.Watchlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, wl := range s.watchlists {
		if wl.Name == name {
			return nil, store.ErrConflict
		}
	}
	now := s.tick()
	wl := domain.Watchlist{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.watchlists[wl.ID] = wl
	return &wl, nil
}

func (s *memStore) ListWatchlists(context.Context) ([]domain.Watchlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Watchlist, 0, len(s.watchlists))
	for _, wl := range s.watchlists {
		out = append(out, wl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) GetWatchlist(ctx context.Context, id string) (*domain.WatchlistDetail, error) {
	s.mu.Lock()
	wl, ok := s.watchlists[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	events, err := s.ListEventsByWatchlist(ctx, id, store.RecentEventsLimit)
	if err != nil {
		return nil, err
	}
	return &domain.WatchlistDetail{Watchlist: wl, Events: events}, nil
}

func (s *memStore) UpdateWatchlist(_ context.Context, id, name string) (*domain.Watchlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.watchlists[id]
	if !ok {
		return nil, nil
	}
	for otherID, other := range s.watchlists {
		if otherID != id && other.Name == name {
			return nil, store.ErrConflict
		}
	}
	wl.Name = name
	wl.UpdatedAt = s.tick()
	s.watchlists[id] = wl
	return &wl, nil
}

func (s *memStore) DeleteWatchlist(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchlists[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.watchlists, id)
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.WatchlistID != id {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	return nil
}

type stubAnalyzer struct {
	mu     sync.Mutex
	calls  int
	result domain.EnrichmentResult
	trail  *[]string
}

func (a *stubAnalyzer) Analyze(context.Context, string) domain.EnrichmentResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.trail != nil {
		*a.trail = append(*a.trail, "analyze")
	}
	return a.result
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) PublishEvent(ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type staticChecker struct{ report domain.HealthReport }

func (c staticChecker) Check(context.Context) domain.HealthReport { return c.report }

var errDatabaseDown = errors.New("database is down")

// logBuffer collects JSON log lines from a slog logger.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// entries returns the decoded records whose msg equals msg.
func (b *logBuffer) entries(t *testing.T, msg string) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("log line is not JSON: %s", sc.Text())
		}
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not JSON (%d): %s", rec.Code, rec.Body.String())
	}
	return v
}

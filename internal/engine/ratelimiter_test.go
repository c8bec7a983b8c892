package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIngestLimiter(t *testing.T, limit int, window time.Duration) (*IngestLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewIngestLimiter(client, logging.Discard(), limit, window), mr
}

func TestIngestLimiter_Budget(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		attempts int
		admitted int
	}{
		{name: "within budget", limit: 5, attempts: 5, admitted: 5},
		{name: "over budget", limit: 3, attempts: 7, admitted: 3},
		{name: "single event", limit: 1, attempts: 2, admitted: 1},
		{name: "zero disables limiting", limit: 0, attempts: 100, admitted: 100},
		{name: "negative disables limiting", limit: -1, attempts: 10, admitted: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := setupIngestLimiter(t, tt.limit, time.Minute)
			ctx := context.Background()

			admitted := 0
			for i := 0; i < tt.attempts; i++ {
				if ok, _ := l.Allow(ctx, "wl-1"); ok {
					admitted++
				}
			}
			assert.Equal(t, tt.admitted, admitted)
		})
	}
}

func TestIngestLimiter_RetryAfterWithinWindow(t *testing.T) {
	l, _ := setupIngestLimiter(t, 1, 10*time.Second)
	ctx := context.Background()

	ok, wait := l.Allow(ctx, "wl-1")
	require.True(t, ok)
	assert.Zero(t, wait)

	ok, wait = l.Allow(ctx, "wl-1")
	require.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 10*time.Second)
}

func TestIngestLimiter_WatchlistsHaveSeparateBudgets(t *testing.T) {
	l, _ := setupIngestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := l.Allow(ctx, "wl-busy")
		require.True(t, ok)
	}

	ok, _ := l.Allow(ctx, "wl-busy")
	assert.False(t, ok, "wl-busy is out of budget")
	ok, _ = l.Allow(ctx, "wl-quiet")
	assert.True(t, ok, "a busy watchlist must not throttle another")
}

func TestIngestLimiter_KeyExpiresWithWindow(t *testing.T) {
	l, mr := setupIngestLimiter(t, 5, 2*time.Second)

	ok, _ := l.Allow(context.Background(), "wl-1")
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, mr.TTL(ingestKey("wl-1")))
}

func TestIngestLimiter_DefaultWindow(t *testing.T) {
	l := NewIngestLimiter(nil, logging.Discard(), 1, 0)
	assert.Equal(t, DefaultIngestWindow, l.window)
}

func TestIngestLimiter_AdmitsWhenRedisIsDown(t *testing.T) {
	l, mr := setupIngestLimiter(t, 1, time.Minute)
	mr.Close()

	ok, wait := l.Allow(context.Background(), "wl-1")
	assert.True(t, ok, "ingestion must continue while the limiter is unreachable")
	assert.Zero(t, wait)
}

func TestIngestLimiter_NilAdmitsEverything(t *testing.T) {
	var l *IngestLimiter
	ok, _ := l.Allow(context.Background(), "wl-1")
	assert.True(t, ok)
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultIngestWindow is the rolling window EVENTS_RATE_LIMIT is counted over.
const DefaultIngestWindow = time.Second

// IngestLimiter caps how many events a single watchlist may ingest within a
// rolling window, shared across replicas through Redis. A rejected caller is
// told how long until the oldest admitted event leaves the window.
type IngestLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	limit       int
	window      time.Duration
	seq         atomic.Uint64
}

// admitScript keeps one sorted-set member per admitted event. It returns
// {1, 0} when the event is admitted and {0, wait_ms} when it is not.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) < limit then
    redis.call('ZADD', key, now, ARGV[4])
    redis.call('PEXPIRE', key, window)
    return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = window
if oldest[2] then
    wait = tonumber(oldest[2]) + window - now
end
if wait < 1 then
    wait = 1
end
return {0, wait}
`)

// NewIngestLimiter admits up to limit events per watchlist per window. A limit
// of zero or less disables limiting.
func NewIngestLimiter(redisClient *redis.Client, logger *slog.Logger, limit int, window time.Duration) *IngestLimiter {
	if window <= 0 {
		window = DefaultIngestWindow
	}
	return &IngestLimiter{
		redisClient: redisClient,
		logger:      logger,
		limit:       limit,
		window:      window,
	}
}

func ingestKey(watchlistID string) string {
	return fmt.Sprintf("rl:events:%s", watchlistID)
}

// Allow admits one event for watchlistID. When it refuses, retryAfter is the
// time until a slot frees up. Redis errors fail open so an outage of the
// limiter never blocks ingestion.
func (l *IngestLimiter) Allow(ctx context.Context, watchlistID string) (allowed bool, retryAfter time.Duration) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}

	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d:%d", now, l.seq.Add(1))

	res, err := admitScript.Run(ctx, l.redisClient, []string{ingestKey(watchlistID)},
		now, l.window.Milliseconds(), l.limit, member,
	).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Error("ingest limiter unavailable, admitting event", "error", err, "watchlist_id", watchlistID)
		return true, 0
	}

	if res[0] == 0 {
		wait := time.Duration(res[1]) * time.Millisecond
		l.logger.Debug("event ingestion throttled",
			"watchlist_id", watchlistID,
			"limit", l.limit,
			"retry_after_ms", wait.Milliseconds(),
		)
		return false, wait
	}
	return true, 0
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/redis/go-redis/v9"
)

// EventCache keeps per-watchlist event listings in Redis. Every watchlist
// also has a generation counter that Invalidate bumps; a listing is only
// written back if the generation it was read under is still current, so a
// read that raced with a write cannot repopulate the cache with stale data.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// generationTTL outlives any sensible listing TTL. A lapsed counter reads as
// zero again, which is safe once the listings it guarded have expired.
const generationTTL = 24 * time.Hour

// setIfGeneration writes KEYS[2] only while KEYS[1] still holds ARGV[1].
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false then
  current = '0'
end
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	return &EventCache{client: client, ttl: ttl}
}

func eventsKey(watchlistID string) string {
	return fmt.Sprintf("events:%s", watchlistID)
}

func generationKey(watchlistID string) string {
	return fmt.Sprintf("events:gen:%s", watchlistID)
}

// Get returns the cached listing and whether it was present.
func (c *EventCache) Get(ctx context.Context, watchlistID string) ([]domain.Event, bool, error) {
	data, err := c.client.Get(ctx, eventsKey(watchlistID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading events cache: %w", err)
	}

	var events []domain.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, false, fmt.Errorf("decoding events cache: %w", err)
	}
	return events, true, nil
}

// Generation returns the watchlist's current generation. Read it before
// loading the listing from storage and hand it to Set.
func (c *EventCache) Generation(ctx context.Context, watchlistID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(watchlistID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading events cache generation: %w", err)
	}
	return gen, nil
}

// Set stores events unless the watchlist was invalidated after gen was read.
// It reports whether the listing was written.
func (c *EventCache) Set(ctx context.Context, watchlistID string, gen int64, events []domain.Event) (bool, error) {
	if c.ttl <= 0 {
		return false, nil
	}
	data, err := json.Marshal(events)
	if err != nil {
		return false, fmt.Errorf("encoding events cache: %w", err)
	}

	written, err := setIfGeneration.Run(ctx, c.client,
		[]string{generationKey(watchlistID), eventsKey(watchlistID)},
		strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("writing events cache: %w", err)
	}
	return written == 1, nil
}

// Invalidate bumps the generation and drops the cached listing.
func (c *EventCache) Invalidate(ctx context.Context, watchlistID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(watchlistID))
		pipe.Expire(ctx, generationKey(watchlistID), generationTTL)
		pipe.Del(ctx, eventsKey(watchlistID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidating events cache: %w", err)
	}
	return nil
}

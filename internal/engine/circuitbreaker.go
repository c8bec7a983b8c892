// Package engine holds the Redis-backed guards around ingestion: a circuit
// breaker for the generative model and a per-watchlist ingestion limiter for
// event creation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker tracks consecutive failures of an upstream (the model) in
// Redis so every replica of the service shares one view of it.
//
//   - Closed: calls go through, failures are counted.
//   - Open: calls are skipped until the cooldown has elapsed.
//   - Half-open: a probe call is let through; success closes, failure reopens.
//
// A threshold of zero disables the breaker entirely.
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
	now              func() time.Time
}

type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: threshold,
		cooldownPeriod:   cooldown,
		now:              time.Now,
	}
}

func cbKey(upstream string) string {
	return fmt.Sprintf("cb:model:%s", upstream)
}

func (cb *CircuitBreaker) enabled() bool {
	return cb != nil && cb.failureThreshold > 0
}

func (cb *CircuitBreaker) cooledDown(lastFailedAt int64) bool {
	return cb.now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds())
}

// AllowRequest reports whether a call to upstream may proceed. Redis errors
// fail open: the breaker must never be the reason a call is skipped.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, upstream string) (string, bool) {
	if !cb.enabled() {
		return StateClosed, true
	}
	key := cbKey(upstream)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return StateClosed, true
	}

	switch data["state"] {
	case StateOpen:
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if cb.cooledDown(lastFailedAt) {
			cb.redisClient.HSet(ctx, key, "state", StateHalfOpen)
			cb.logger.Info("circuit breaker half-open", "upstream", upstream)
			return StateHalfOpen, true
		}
		return StateOpen, false
	case StateHalfOpen:
		return StateHalfOpen, true
	default:
		return StateClosed, true
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, upstream string) {
	if !cb.enabled() {
		return
	}
	key := cbKey(upstream)

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()
	cb.redisClient.HSet(ctx, key, "state", StateClosed, "failures", 0)

	if state == StateHalfOpen || state == StateOpen {
		cb.logger.Info("circuit breaker closed", "upstream", upstream)
	}
}

// RecordFailure counts a failure and opens the circuit once the threshold is hit.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, upstream string) {
	if !cb.enabled() {
		return
	}
	key := cbKey(upstream)

	failures, err := cb.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record circuit breaker failure", "error", err, "upstream", upstream)
		return
	}
	cb.redisClient.HSet(ctx, key, "last_failed_at", cb.now().Unix())

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	switch {
	case state == StateHalfOpen:
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker re-opened", "upstream", upstream)
	case failures >= int64(cb.failureThreshold):
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		if state != StateOpen {
			cb.logger.Warn("circuit breaker opened",
				"upstream", upstream,
				"failures", failures,
				"threshold", cb.failureThreshold,
			)
		}
	case state == "":
		cb.redisClient.HSet(ctx, key, "state", StateClosed)
	}
}

// GetState returns the breaker state for upstream as seen right now.
func (cb *CircuitBreaker) GetState(ctx context.Context, upstream string) CircuitBreakerState {
	if !cb.enabled() {
		return CircuitBreakerState{State: StateClosed}
	}

	data, err := cb.redisClient.HGetAll(ctx, cbKey(upstream)).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: StateClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}

	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
	if state == StateOpen && cb.cooledDown(lastFailedAt) {
		state = StateHalfOpen
	}

	result := CircuitBreakerState{State: state, Failures: failures}
	if lastFailedAt > 0 {
		result.LastFailedAt = time.Unix(lastFailedAt, 0).UTC().Format(time.RFC3339)
	}
	return result
}

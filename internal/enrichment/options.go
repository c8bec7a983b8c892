package enrichment

import (
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/engine"
	"github.com/Priya8975/watchlist-enricher/internal/metrics"
)

// DefaultTimeout bounds a model call when no WithTimeout option is given.
const DefaultTimeout = 15 * time.Second

type Option func(*Analyzer)

// WithMock switches the analyzer to synthetic results; the model is never called.
func WithMock(enabled bool) Option {
	return func(a *Analyzer) { a.mock = enabled }
}

func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBreaker guards model calls with cb, keyed by upstream.
func WithBreaker(cb *engine.CircuitBreaker, upstream string) Option {
	return func(a *Analyzer) {
		a.breaker = cb
		a.upstream = upstream
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

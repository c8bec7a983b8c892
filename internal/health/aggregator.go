// Package health reports whether the service's backing dependencies are
// reachable, and which one is to blame when they are not.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/Priya8975/watchlist-enricher/internal/logging"
	"github.com/Priya8975/watchlist-enricher/internal/metrics"
)

// DefaultProbeTimeout bounds each dependency probe.
const DefaultProbeTimeout = 2 * time.Second

// Dependency names used in metrics and logs.
const (
	DependencyCache   = "cache"
	DependencyStorage = "storage"
)

const unavailableMessage = "Service unavailable"

// Prober checks a single dependency.
type Prober interface {
	Ping(ctx context.Context) error
}

type Aggregator struct {
	cache        Prober
	storage      Prober
	probeTimeout time.Duration
	production   bool
	startedAt    time.Time
	circuit      func(ctx context.Context) string
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

type Option func(*Aggregator)

func WithProbeTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.probeTimeout = d
		}
	}
}

// WithProduction hides probe error text from reports.
func WithProduction(production bool) Option {
	return func(a *Aggregator) { a.production = production }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithStartTime sets the instant uptime is measured from.
func WithStartTime(t time.Time) Option {
	return func(a *Aggregator) { a.startedAt = t }
}

// WithCircuitState reports the model circuit breaker state in ok reports.
func WithCircuitState(fn func(ctx context.Context) string) Option {
	return func(a *Aggregator) { a.circuit = fn }
}

func NewAggregator(cache, storage Prober, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		cache:        cache,
		storage:      storage,
		probeTimeout: DefaultProbeTimeout,
		startedAt:    time.Now(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check probes both dependencies concurrently. On failure each one is probed
// again on its own to attribute the outage.
func (a *Aggregator) Check(ctx context.Context) domain.HealthReport {
	log := logging.FromContext(ctx, a.logger)

	var (
		wg                   sync.WaitGroup
		cacheErr, storageErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cacheErr = a.probe(ctx, a.cache)
	}()
	go func() {
		defer wg.Done()
		storageErr = a.probe(ctx, a.storage)
	}()
	wg.Wait()

	if cacheErr == nil && storageErr == nil {
		return a.okReport(ctx)
	}

	firstErr := errors.Join(
		labelled(DependencyCache, cacheErr),
		labelled(DependencyStorage, storageErr),
	)

	failed := a.attribute(ctx)
	log.Error("health check failed",
		"failed_service", failed,
		"error", firstErr,
	)

	report := domain.HealthReport{
		Status:        domain.HealthUnhealthy,
		Error:         unavailableMessage,
		FailedService: failed,
	}
	if !a.production {
		report.Details = firstErr.Error()
	}
	return report
}

// attribute re-probes sequentially so one dependency's trouble cannot
// influence the other's result.
func (a *Aggregator) attribute(ctx context.Context) domain.FailedService {
	cacheErr := a.probe(ctx, a.cache)
	if cacheErr != nil {
		a.metrics.RecordProbeFailure(DependencyCache)
	}
	storageErr := a.probe(ctx, a.storage)
	if storageErr != nil {
		a.metrics.RecordProbeFailure(DependencyStorage)
	}

	switch {
	case cacheErr != nil && storageErr != nil:
		return domain.FailedMultiple
	case cacheErr != nil:
		return domain.FailedCache
	case storageErr != nil:
		return domain.FailedStorage
	default:
		return domain.FailedUnknown
	}
}

func (a *Aggregator) probe(ctx context.Context, p Prober) (err error) {
	if p == nil {
		return errors.New("not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()
	return p.Ping(probeCtx)
}

func (a *Aggregator) okReport(ctx context.Context) domain.HealthReport {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	now := time.Now().UTC()

	var circuit string
	if a.circuit != nil {
		circuit = a.circuit(ctx)
	}

	return domain.HealthReport{
		Status: domain.HealthOK,
		Services: &domain.ServiceStatuses{
			Cache:   domain.DependencyConnected,
			Storage: domain.DependencyConnected,
		},
		System: &domain.SystemInfo{
			Uptime: time.Since(a.startedAt).Seconds(),
			Memory: domain.MemoryStats{
				Alloc:      mem.Alloc,
				TotalAlloc: mem.TotalAlloc,
				Sys:        mem.Sys,
				HeapInuse:  mem.HeapInuse,
				NumGC:      mem.NumGC,
			},
			RuntimeVersion: runtime.Version(),
			Goroutines:     runtime.NumGoroutine(),
			ModelCircuit:   circuit,
		},
		Timestamp: &now,
	}
}

func labelled(dep string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", dep, err)
}

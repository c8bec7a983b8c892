// Package enrichment turns free-text event descriptions into a structured
// assessment using a generative model, falling back to a fixed result
// whenever the model cannot deliver one.
package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/Priya8975/watchlist-enricher/internal/engine"
	"github.com/Priya8975/watchlist-enricher/internal/logging"
	"github.com/Priya8975/watchlist-enricher/internal/metrics"
)

// Model produces a text reply for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyzer never returns an error: every failure resolves to domain.FallbackResult.
type Analyzer struct {
	model    Model
	mock     bool
	timeout  time.Duration
	breaker  *engine.CircuitBreaker
	upstream string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewAnalyzer(model Model, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		model:   model,
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MockResult is the deterministic assessment used in mock mode.
func MockResult(description string) domain.EnrichmentResult {
	summary := "Evento simulado"
	if trimmed := strings.TrimSpace(description); trimmed != "" {
		summary += ": " + trimmed
	}
	return domain.EnrichmentResult{
		Summary:         summary,
		Severity:        domain.SeverityLow,
		SuggestedAction: domain.FallbackAction,
	}
}

// CircuitState reports the model breaker state, or "" when no breaker guards
// the analyzer (mock mode included).
func (a *Analyzer) CircuitState(ctx context.Context) string {
	if a.mock || a.breaker == nil {
		return ""
	}
	return a.breaker.GetState(ctx, a.upstream).State
}

// Analyze makes at most one model call for description.
func (a *Analyzer) Analyze(ctx context.Context, description string) (result domain.EnrichmentResult) {
	log := logging.FromContext(ctx, a.logger)

	if a.mock {
		a.metrics.RecordEnrichment(metrics.OutcomeMock)
		return MockResult(description)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("enrichment panicked, using fallback", "panic", fmt.Sprint(r))
			a.metrics.RecordEnrichment(metrics.OutcomeCallFailed)
			result = domain.FallbackResult()
		}
	}()

	if a.model == nil {
		log.Error("no model configured, using fallback")
		a.metrics.RecordEnrichment(metrics.OutcomeCallFailed)
		return domain.FallbackResult()
	}

	if state, ok := a.breaker.AllowRequest(ctx, a.upstream); !ok {
		log.Warn("model circuit open, using fallback", "upstream", a.upstream, "state", state)
		a.metrics.RecordEnrichment(metrics.OutcomeBreakerOpen)
		return domain.FallbackResult()
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	reply, err := a.model.Generate(callCtx, BuildPrompt(description))
	elapsed := time.Since(start)
	a.metrics.ObserveModelCall(elapsed.Seconds())

	if err != nil {
		a.breaker.RecordFailure(ctx, a.upstream)
		log.Warn("model call failed, using fallback",
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		a.metrics.RecordEnrichment(metrics.OutcomeCallFailed)
		return domain.FallbackResult()
	}
	a.breaker.RecordSuccess(ctx, a.upstream)

	parsed, err := ParseResult(reply)
	if err != nil {
		log.Warn("model reply rejected, using fallback",
			"error", err,
			"reply_bytes", len(reply),
		)
		a.metrics.RecordEnrichment(metrics.OutcomeParseFailed)
		return domain.FallbackResult()
	}

	log.Debug("event enriched",
		"severity", parsed.Severity,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	a.metrics.RecordEnrichment(metrics.OutcomeSuccess)
	return parsed
}

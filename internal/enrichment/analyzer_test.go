package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
	"github.com/Priya8975/watchlist-enricher/internal/engine"
	"github.com/Priya8975/watchlist-enricher/internal/metrics"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel records prompts and answers with reply/err, or runs fn when set.
type fakeModel struct {
	mu      sync.Mutex
	calls   atomic.Int32
	prompts []string
	reply   string
	err     error
	fn      func(ctx context.Context) (string, error)
}

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx)
	}
	return f.reply, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestAnalyze_ValidReply(t *testing.T) {
	model := &fakeModel{reply: validReply}
	a := NewAnalyzer(model, testLogger())

	got := a.Analyze(context.Background(), "failed logins from 10.0.0.1")

	assert.Equal(t, domain.EnrichmentResult{
		Summary:         "Acceso sospechoso",
		Severity:        domain.SeverityHigh,
		SuggestedAction: "Bloquear la IP",
	}, got)
	assert.EqualValues(t, 1, model.calls.Load(), "exactly one model call")
	require.Len(t, model.prompts, 1)
	assert.Equal(t, "failed logins from 10.0.0.1", eventLiteral(t, model.prompts[0]))
}

func TestAnalyze_FencedReply(t *testing.T) {
	model := &fakeModel{reply: "```json\n{\"summary\":\"Escaneo de puertos\",\"severity\":\"CRITICAL\",\"suggestedAction\":\"Aislar host\"}\n```"}
	a := NewAnalyzer(model, testLogger())

	got := a.Analyze(context.Background(), "port scan")

	assert.Equal(t, domain.SeverityCritical, got.Severity)
	assert.Equal(t, "Escaneo de puertos", got.Summary)
	assert.Equal(t, "Aislar host", got.SuggestedAction)
}

func TestAnalyze_FailuresReturnFallback(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{name: "network error", model: &fakeModel{err: errors.New("dial tcp: connection refused")}},
		{name: "refusal", model: &fakeModel{err: ErrReplyBlocked}},
		{name: "non-json", model: &fakeModel{reply: "I cannot help with that."}},
		{name: "missing field", model: &fakeModel{reply: `{"summary":"x","severity":"HIGH"}`}},
		{name: "invalid severity", model: &fakeModel{reply: `{"summary":"x","severity":"URGENT","suggestedAction":"y"}`}},
		{name: "empty reply", model: &fakeModel{reply: ""}},
		{name: "panicking model", model: &fakeModel{fn: func(context.Context) (string, error) { panic("boom") }}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(tt.model, testLogger())

			got := a.Analyze(context.Background(), "event")

			assert.Equal(t, domain.FallbackResult(), got)
			assert.Equal(t, domain.SeverityMedium, got.Severity)
			assert.EqualValues(t, 1, tt.model.calls.Load(), "no retries")
		})
	}
}

func TestAnalyze_TimeoutReturnsFallback(t *testing.T) {
	model := &fakeModel{fn: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	a := NewAnalyzer(model, testLogger(), WithTimeout(50*time.Millisecond))

	start := time.Now()
	got := a.Analyze(context.Background(), "slow")

	assert.Equal(t, domain.FallbackResult(), got)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must bound the call")
}

func TestAnalyze_NilModelReturnsFallback(t *testing.T) {
	a := NewAnalyzer(nil, testLogger())
	assert.Equal(t, domain.FallbackResult(), a.Analyze(context.Background(), "x"))
}

func TestAnalyze_MockModeNeverCallsModel(t *testing.T) {
	model := &fakeModel{reply: validReply}
	m := metrics.New()
	a := NewAnalyzer(model, testLogger(), WithMock(true), WithMetrics(m))

	first := a.Analyze(context.Background(), "suspicious login at 3am")
	second := a.Analyze(context.Background(), "suspicious login at 3am")

	assert.EqualValues(t, 0, model.calls.Load())
	assert.Equal(t, first, second, "mock mode is deterministic")
	assert.True(t, first.Complete())
	assert.Equal(t, "Evento simulado: suspicious login at 3am", first.Summary)
	assert.Equal(t, domain.SeverityLow, first.Severity)
	assert.Contains(t, scrape(t, m), `watchlist_enricher_enrichment_results_total{outcome="mock"} 2`)
}

func TestMockResult_BlankDescriptionStillComplete(t *testing.T) {
	got := MockResult("   ")
	assert.True(t, got.Complete())
	assert.Equal(t, "Evento simulado", got.Summary)
}

func TestAnalyze_QuotedDescriptionsNeverPanic(t *testing.T) {
	model := &fakeModel{reply: validReply}
	a := NewAnalyzer(model, testLogger())

	inputs := []string{`"`, `\"`, "```", `{"severity":"LOW"}`, strings.Repeat(`"\`, 5000)}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := a.Analyze(context.Background(), in)
			assert.True(t, got.Complete())
		})
	}
	for i, p := range model.prompts {
		assert.Equal(t, inputs[i], eventLiteral(t, p))
	}
}

func TestAnalyze_BreakerSkipsCallsWhenOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cb := engine.NewCircuitBreaker(client, testLogger(), 2, time.Minute)
	model := &fakeModel{err: errors.New("upstream 503")}
	a := NewAnalyzer(model, testLogger(), WithBreaker(cb, "gemini-test"))
	ctx := context.Background()

	assert.Equal(t, engine.StateClosed, a.CircuitState(ctx))
	for i := 0; i < 2; i++ {
		assert.Equal(t, domain.FallbackResult(), a.Analyze(ctx, "e"))
	}
	require.EqualValues(t, 2, model.calls.Load())
	assert.Equal(t, engine.StateOpen, a.CircuitState(ctx))

	got := a.Analyze(ctx, "e")
	assert.Equal(t, domain.FallbackResult(), got)
	assert.EqualValues(t, 2, model.calls.Load(), "open breaker must not reach the model")
}

func TestCircuitState_EmptyWithoutBreaker(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, NewAnalyzer(nil, testLogger(), WithMock(true)).CircuitState(ctx))
	assert.Empty(t, NewAnalyzer(&fakeModel{}, testLogger()).CircuitState(ctx))
}

func TestAnalyze_RecordsOutcomeMetrics(t *testing.T) {
	m := metrics.New()
	ctx := context.Background()

	NewAnalyzer(&fakeModel{reply: validReply}, testLogger(), WithMetrics(m)).Analyze(ctx, "a")
	NewAnalyzer(&fakeModel{reply: "nope"}, testLogger(), WithMetrics(m)).Analyze(ctx, "b")
	NewAnalyzer(&fakeModel{err: errors.New("x")}, testLogger(), WithMetrics(m)).Analyze(ctx, "c")

	out := scrape(t, m)
	assert.Contains(t, out, `outcome="success"} 1`)
	assert.Contains(t, out, `outcome="parse_failed"} 1`)
	assert.Contains(t, out, `outcome="call_failed"} 1`)
}

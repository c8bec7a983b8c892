package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/api"
	"github.com/Priya8975/watchlist-enricher/internal/config"
	"github.com/Priya8975/watchlist-enricher/internal/engine"
	"github.com/Priya8975/watchlist-enricher/internal/enrichment"
	"github.com/Priya8975/watchlist-enricher/internal/health"
	"github.com/Priya8975/watchlist-enricher/internal/logging"
	"github.com/Priya8975/watchlist-enricher/internal/metrics"
	"github.com/Priya8975/watchlist-enricher/internal/store"
	ws "github.com/Priya8975/watchlist-enricher/internal/websocket"
)

func main() {
	startedAt := time.Now()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err = logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
		logger.Warn("invalid log level, using info", "error", err)
	}
	logger = logger.With("service", "watchlist-enricher", "environment", cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	m := metrics.New()
	analyzer := newAnalyzer(cfg, redisStore, m, logger)

	origins := corsOrigins(cfg)
	hub := ws.NewHub(logger, origins...)
	go hub.Run(ctx)

	aggregator := health.NewAggregator(redisStore, pgStore, logger,
		health.WithProbeTimeout(cfg.ProbeTimeout),
		health.WithProduction(cfg.IsProduction()),
		health.WithMetrics(m),
		health.WithStartTime(startedAt),
		health.WithCircuitState(analyzer.CircuitState),
	)

	eventCache := store.NewEventCache(redisStore.Client(), cfg.EventsCacheTTL)
	router := api.NewRouter(api.RouterConfig{
		Events: api.NewEventHandler(pgStore, analyzer, logger,
			api.WithEventCache(eventCache),
			api.WithRateLimit(engine.NewIngestLimiter(redisStore.Client(), logger, cfg.EventsRateLimit, engine.DefaultIngestWindow)),
			api.WithPublisher(hub),
		),
		Watchlists:  api.NewWatchlistHandler(pgStore, eventCache, logger),
		Health:      aggregator,
		Feed:        hub.HandleWebSocket,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: origins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Event creation waits on the model, so writes get the model budget on top.
		WriteTimeout: cfg.ModelTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "mock_ai", cfg.MockAI)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newAnalyzer(cfg *config.Config, redisStore *store.RedisStore, m *metrics.Metrics, logger *slog.Logger) *enrichment.Analyzer {
	opts := []enrichment.Option{
		enrichment.WithMock(cfg.MockAI),
		enrichment.WithTimeout(cfg.ModelTimeout),
		enrichment.WithMetrics(m),
	}
	if cfg.MockAI {
		logger.Warn("MOCK_AI enabled, events get synthetic assessments")
		return enrichment.NewAnalyzer(nil, logger, opts...)
	}

	breaker := engine.NewCircuitBreaker(redisStore.Client(), logger, cfg.BreakerThreshold, cfg.BreakerCooldown)
	model := enrichment.NewGeminiModel(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GoogleAPIKey, cfg.ModelTimeout)
	opts = append(opts, enrichment.WithBreaker(breaker, model.Name()))
	return enrichment.NewAnalyzer(model, logger, opts...)
}

// corsOrigins returns nil (any origin) outside production. In production only
// the configured origins are allowed, and none when the list is empty.
func corsOrigins(cfg *config.Config) []string {
	if !cfg.IsProduction() {
		return nil
	}
	return append([]string{}, cfg.CORSOrigins...)
}

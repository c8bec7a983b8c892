package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/watchlist-enricher/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig carries the handlers and cross-cutting pieces the router mounts.
// Feed and Metrics are optional.
type RouterConfig struct {
	Events     *EventHandler
	Watchlists *WatchlistHandler
	Health     HealthChecker
	Feed       http.HandlerFunc
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// CORSOrigins restricts cross-origin callers; nil allows any origin.
	CORSOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Recoverer sits outside Correlation so a panicking request is still logged.
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Correlation(cfg.Logger, cfg.Metrics))
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/health", HealthHandler(cfg.Health))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.Feed != nil {
		r.Get("/ws", cfg.Feed)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/watchlists", func(r chi.Router) {
			r.Post("/", cfg.Watchlists.Create)
			r.Get("/", cfg.Watchlists.List)
			r.Get("/{id}", cfg.Watchlists.Get)
			r.Put("/{id}", cfg.Watchlists.Update)
			r.Delete("/{id}", cfg.Watchlists.Delete)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", cfg.Events.Create)
			r.Post("/create", cfg.Events.Create)
			r.Get("/{watchlistId}", cfg.Events.ListByWatchlist)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})

	return otelhttp.NewHandler(r, "watchlist-enricher")
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Priya8975/watchlist-enricher/internal/logging"
	"github.com/Priya8975/watchlist-enricher/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderRequestID = "X-Request-ID"

	// unmatchedRoute labels requests no route claimed, keeping metric cardinality bounded.
	unmatchedRoute = "unmatched"
)

// Correlation gives every request a fresh id and a child logger carrying it,
// then logs exactly one "request completed" line once the handler returns,
// panics included. It also feeds the HTTP request metrics.
func Correlation(base *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := uuid.NewString()

			attrs := []any{"correlation_id", id, "path", r.URL.Path}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}
			reqLogger := base.With(attrs...)

			ctx := logging.WithLogger(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, id)

			w.Header().Set(HeaderRequestID, id)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				rec := recover()

				status := ww.Status()
				switch {
				case rec != nil && status == 0:
					status = http.StatusInternalServerError
				case status == 0:
					status = http.StatusOK
				}
				elapsed := time.Since(start)
				elapsedMs := float64(elapsed) / float64(time.Millisecond)
				if elapsedMs < 0 {
					elapsedMs = 0
				}

				reqLogger.Info("request completed",
					"elapsed_ms", elapsedMs,
					"method", r.Method,
					"status", status,
					"bytes", ww.BytesWritten(),
				)
				m.RecordHTTPRequest(routePattern(r), r.Method, status, elapsedMs)

				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}

// routePattern reads the matched chi pattern. chi fills the route context in
// place, so it is complete once the handler has returned.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// CORS allows every origin when allowed is nil, otherwise only the listed ones.
// Requests without an Origin header are never CORS requests and pass through.
func CORS(allowed []string) func(http.Handler) http.Handler {
	var set map[string]struct{}
	if allowed != nil {
		set = make(map[string]struct{}, len(allowed))
		for _, o := range allowed {
			set[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			permitted := set == nil
			if !permitted {
				_, permitted = set[origin]
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if permitted {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", HeaderRequestID)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !permitted {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Max-Age", strconv.Itoa(600))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets a conservative subset of the usual hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

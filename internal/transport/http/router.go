// Package httptransport assembles the public HTTP surface: shared middleware,
// operational endpoints and the versioned proof API.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/platform/metrics"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/platform/middleware/metadata"
	"checkin/pkg/platform/middleware/requesttime"
)

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 64 << 10

// Registrar mounts a module's routes under /v1.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type routerConfig struct {
	clock    func() time.Time
	metrics  *metrics.Metrics
	health   []HealthCheck
	logger   *slog.Logger
	gatherer http.Handler
}

// Option configures NewRouter.
type Option func(*routerConfig)

// WithClock replaces time.Now as the per-request clock.
func WithClock(clock func() time.Time) Option {
	return func(c *routerConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *routerConfig) {
		c.metrics = m
	}
}

// WithHealthCheck adds a dependency probe to /healthz.
func WithHealthCheck(check HealthCheck) Option {
	return func(c *routerConfig) {
		if check != nil {
			c.health = append(c.health, check)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *routerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsHandler replaces promhttp.Handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *routerConfig) {
		if h != nil {
			c.gatherer = h
		}
	}
}

// NewRouter wires middleware, /healthz, /metrics and every module under /v1.
func NewRouter(modules []Registrar, opts ...Option) http.Handler {
	cfg := &routerConfig{
		clock:    time.Now,
		logger:   slog.Default(),
		gatherer: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.WithClock(cfg.clock))
	r.Use(middleware.Recoverer)
	r.Use(limitBody(MaxBodyBytes))
	r.Use(cfg.metrics.Middleware)

	r.Get("/healthz", healthHandler(cfg))
	r.Method(http.MethodGet, "/metrics", cfg.gatherer)

	r.Route("/v1", func(v1 chi.Router) {
		for _, m := range modules {
			m.Register(v1)
		}
	})
	return r
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(cfg *routerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range cfg.health {
			if err := check(ctx); err != nil {
				cfg.logger.WarnContext(ctx, "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

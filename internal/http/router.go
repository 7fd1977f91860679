package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/velvetbrow/studio/internal/api"
	"github.com/velvetbrow/studio/internal/config"
	"github.com/velvetbrow/studio/internal/http/ratelimit"
	"github.com/velvetbrow/studio/internal/metrics"
)

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter wires the health, metrics, admin API, and public download routes.
func NewRouter(cfg *config.Config, health HealthChecker, requireAdmin func(http.Handler) http.Handler, h *api.Handler) http.Handler {
	r := chi.NewRouter()

	// Admin endpoints: 5 requests per second, burst of 10
	adminRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// Public downloads: 20 requests per second, burst of 50
	publicRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(publicRateLimiter.Middleware())
			h.PublicRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminRateLimiter.Middleware())
			r.Use(requireAdmin)
			h.AdminRoutes(r)
		})
	})

	return r
}

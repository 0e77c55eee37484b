package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/studycal/internal/api"
	"github.com/jw6ventures/studycal/internal/auth"
	"github.com/jw6ventures/studycal/internal/config"
	"github.com/jw6ventures/studycal/internal/http/csrf"
	"github.com/jw6ventures/studycal/internal/http/ratelimit"
	"github.com/jw6ventures/studycal/internal/logging"
	"github.com/jw6ventures/studycal/internal/metrics"
)

// HealthChecker reports whether the persistence backend is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Router is the HTTP entry point. Close stops the rate limiter janitors.
type Router struct {
	http.Handler
	limiters []*ratelimit.Limiter
}

func (r *Router) Close() {
	for _, l := range r.limiters {
		l.Stop()
	}
}

// NewRouter wires the health, session and calendar API routes.
func NewRouter(cfg *config.Config, health HealthChecker, authService *auth.Service, apiHandler *api.Handler, log logrus.FieldLogger) *Router {
	r := chi.NewRouter()

	// Session exchange: 5 requests per second, burst of 10
	sessionLimiter := ratelimit.New(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// Calendar API: 20 requests per second, burst of 50 (drag hover is chatty)
	apiLimiter := ratelimit.New(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(log))
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
			logging.FromRequest(log, r).WithError(err).Warn("readiness check failed")
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

	r.Route("/api/session", func(r chi.Router) {
		r.Use(sessionLimiter.Middleware())
		r.Post("/", authService.StartSession)
		r.With(authService.RequireUser, csrf.Middleware(cfg.BaseURL)).Delete("/", authService.EndSession)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authService.RequireUser)
		r.Use(apiLimiter.Middleware())
		r.Use(csrf.Middleware(cfg.BaseURL))
		apiHandler.Routes(r)
	})

	return &Router{Handler: r, limiters: []*ratelimit.Limiter{sessionLimiter, apiLimiter}}
}

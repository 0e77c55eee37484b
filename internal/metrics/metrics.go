package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const (
	routeLabelKey   ctxKey = "metrics_route"
	requestIDCtxKey ctxKey = "metrics_request_id"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studycal_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studycal_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studycal_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studycal_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	eventMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studycal_event_mutations_total",
		Help: "Event add/update/remove requests by outcome.",
	}, []string{"operation", "outcome"})

	dragOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studycal_drag_outcomes_total",
		Help: "Finished drag gestures by outcome.",
	}, []string{"outcome"})

	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studycal_render_duration_seconds",
		Help:    "Time spent deriving a calendar view model.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	}, []string{"view"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "studycal_active_sessions",
		Help: "Calendar sessions currently held in memory.",
	})
)

// Middleware records request metrics and enriches the context with labels for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())

			ctx := context.WithValue(r.Context(), routeLabelKey, r.URL.Path)
			if reqID != "" {
				ctx = context.WithValue(ctx, requestIDCtxKey, reqID)
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			// The route pattern is only complete once chi has routed the request.
			route := routePattern(r)
			status := ww.Status()
			method := r.Method
			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route).Inc()
			httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records database latency for a given operation, associating it with request labels when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	route := routeFromContext(ctx)
	dbLatency.WithLabelValues(operation, route).Observe(time.Since(start).Seconds())
}

// RecordMutation counts one event mutation request.
func RecordMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	eventMutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordDrag counts a finished drag gesture ("committed", "cancelled", "failed").
func RecordDrag(outcome string) {
	dragOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRender records how long deriving a view model took.
func ObserveRender(view string, start time.Time) {
	renderDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// SetActiveSessions reports the number of open calendar sessions.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RequestIDFromContext extracts the request ID stored by the metrics middleware.
func RequestIDFromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return reqID
	}
	return ""
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeLabelKey).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

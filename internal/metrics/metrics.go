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

const routeLabelKey ctxKey = "metrics_route"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studio_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studio_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	crmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_crm_requests_total",
		Help: "Total number of GoHighLevel API calls by endpoint and status class.",
	}, []string{"endpoint", "status"})

	crmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studio_crm_request_duration_seconds",
		Help:    "Histogram of GoHighLevel API call latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	syncRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_crm_sync_records_total",
		Help: "Per-record sync outcomes by direction.",
	}, []string{"direction", "outcome"})

	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_crm_sync_runs_total",
		Help: "Completed sync runs by direction and result.",
	}, []string{"direction", "result"})
)

// Middleware records request count, latency and server errors per route.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// chi fills the route pattern in while routing, so read it afterwards.
			route := routePattern(r)
			status := ww.Status()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
			}
		})
	}
}

// WithRoute labels ctx so DB latency observed below it is attributed to route.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeLabelKey, route)
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

// ObserveCRMRequest records one GoHighLevel call. status is the HTTP status, or 0 for transport errors.
func ObserveCRMRequest(endpoint string, status int, start time.Time) {
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	crmRequestsTotal.WithLabelValues(endpoint, class).Inc()
	crmRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// RecordSyncOutcome counts a per-record outcome (synced, failed, skipped, deleted).
func RecordSyncOutcome(direction, outcome string) {
	syncRecordsTotal.WithLabelValues(direction, outcome).Inc()
}

// RecordSyncRun counts a finished run. result is "ok" or "error".
func RecordSyncRun(direction, result string) {
	syncRunsTotal.WithLabelValues(direction, result).Inc()
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

package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestsTotal counts HTTP requests by route pattern and status.
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitkit",
	Name:      "http_requests_total",
	Help:      "Total HTTP requests.",
}, []string{"method", "route", "status"})

// RequestDuration tracks handler latency in seconds.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "habitkit",
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// SyncMerges counts completed server-side merges.
var SyncMerges = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "habitkit",
	Name:      "sync_merges_total",
	Help:      "Total sync merges performed.",
})

// SyncWrites counts writes made by merges, by kind.
var SyncWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitkit",
	Name:      "sync_writes_total",
	Help:      "Total writes applied during sync merges.",
}, []string{"kind"})

// CompletionChanges counts completion state changes.
var CompletionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitkit",
	Name:      "completion_changes_total",
	Help:      "Total completion state changes.",
}, []string{"state"})

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			RequestDuration.WithLabelValues(r.Method, routePattern(r)).Observe(v)
		}))
		next.ServeHTTP(ww, r)
		timer.ObserveDuration()

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(status)).Inc()
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics for the console's own surface.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// opsInFlight mirrors the operation lifecycle counter: every backend
	// operation increments it on start and decrements it on completion.
	opsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_operations_in_flight",
		Help: "Backend operations currently outstanding.",
	})

	opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_operations_total",
			Help: "Completed backend operations by resource and outcome.",
		},
		[]string{"resource", "operation", "outcome"},
	)
)

// Init registers the console metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, opsInFlight, opsTotal)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetOperationsInFlight publishes the current loading-counter value.
func SetOperationsInFlight(n int) {
	opsInFlight.Set(float64(n))
}

// CountOperation records one completed backend operation.
func CountOperation(resource, operation, outcome string) {
	opsTotal.WithLabelValues(resource, operation, outcome).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-entity path segments so metric labels stay
// low-cardinality.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	for _, prefix := range []string{"/parcels/", "/users/"} {
		rest := strings.TrimPrefix(p, prefix)
		if rest == p || rest == "" {
			continue
		}
		parts := strings.SplitN(rest, "/", 2)
		switch {
		case len(parts) == 1:
			if parts[0] == "upload" || parts[0] == "export" || parts[0] == "delete-all" {
				return p
			}
			return prefix + ":id"
		case len(parts) == 2 && !strings.Contains(parts[1], "/"):
			return prefix + ":id/" + parts[1]
		}
	}
	return p
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kairos"

// Generations routinely run for tens of seconds, so the default buckets
// are extended.
var latencyBuckets = []float64{.005, .025, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

var (
	requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http",
		Name: "requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "http",
		Name:    "request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: latencyBuckets,
	}, []string{"route", "method"})

	requestsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "http",
		Name: "requests_active",
		Help: "Requests currently being served.",
	})

	chatOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http",
		Name: "chat_outcomes_total",
		Help: "Chat requests by route and outcome (ok, error, busy, no_model, timeout).",
	}, []string{"route", "outcome"})
)

func init() {
	prometheus.MustRegister(requestCount, requestLatency, requestsActive, chatOutcomes)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// MetricsMiddleware records request counts and latency per chi route.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		requestsActive.Inc()
		began := time.Now()
		defer func() {
			requestsActive.Dec()
			// the pattern is only known once chi has routed the request
			route := routeLabel(r)
			requestCount.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
			requestLatency.WithLabelValues(route, r.Method).Observe(time.Since(began).Seconds())
		}()
		next.ServeHTTP(rec, r)
	})
}

// routeLabel keeps label cardinality bounded: unrouted requests share one
// label instead of carrying their raw path.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return "unmatched"
}

// countChat records how a chat request ended.
func countChat(r *http.Request, outcome string) {
	chatOutcomes.WithLabelValues(routeLabel(r), outcome).Inc()
}

// outcomeFor maps a response status to a chat outcome label.
func outcomeFor(status int) string {
	switch status {
	case http.StatusOK:
		return "ok"
	case http.StatusTooManyRequests:
		return "busy"
	case http.StatusServiceUnavailable:
		return "no_model"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "error"
	}
}

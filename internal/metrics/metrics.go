package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Investigation metrics
	InvestigationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osintdeck_investigations_total",
			Help: "Investigations by indicator kind and outcome",
		},
		[]string{"kind", "status"}, // status: success/no_data/invalid/rate_limited/error
	)

	InvestigationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osintdeck_investigation_duration_seconds",
			Help:    "Investigation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"kind"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osintdeck_rate_limit_rejections_total",
			Help: "Investigations rejected by the per-user rate limiter",
		},
		[]string{"kind"},
	)

	// Enrichment metrics
	EnrichmentCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osintdeck_enrichment_calls_total",
			Help: "Calls to third-party enrichment providers",
		},
		[]string{"provider", "outcome"}, // outcome: ok/error/mock/not_configured/cache_hit
	)

	EnrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osintdeck_enrichment_duration_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osintdeck_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osintdeck_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osintdeck_websocket_connections",
			Help: "Currently connected WebSocket clients",
		},
	)
)

// ObserveEnrichment records one provider call.
func ObserveEnrichment(provider, outcome string, started time.Time) {
	EnrichmentCallsTotal.WithLabelValues(provider, outcome).Inc()
	EnrichmentDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Middleware counts requests and observes their latency. WebSocket upgrades
// pass through unwrapped so hijacking keeps working.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

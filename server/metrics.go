package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors. Each Server owns its own
// registry so collectors never collide across instances.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	TokenRequests   *prometheus.CounterVec
	TokensIssued    *prometheus.CounterVec
	TokenDenials    *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mubarokah_id",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by path and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		TokenRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mubarokah_id",
			Name:      "token_requests_total",
			Help:      "Token endpoint requests by grant type.",
		}, []string{"grant_type"}),
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mubarokah_id",
			Name:      "tokens_issued_total",
			Help:      "Successful token issuances by grant type.",
		}, []string{"grant_type"}),
		TokenDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mubarokah_id",
			Name:      "token_denials_total",
			Help:      "Failed token requests by error code.",
		}, []string{"error"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mubarokah_id",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by path.",
		}, []string{"path"}),
	}
}

func (s *Server) MetricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw, ok := w.(*statusWriter)
		if !ok {
			sw = &statusWriter{ResponseWriter: w, status: http.StatusOK}
		}
		next(sw, r)
		s.metrics.RequestDuration.
			WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	}
}

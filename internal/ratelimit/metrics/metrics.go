package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitChecksTotal   *prometheus.CounterVec
	RateLimitExceededTotal *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RateLimitChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estateproof_ratelimit_checks_total",
			Help: "Total number of rate limit checks by endpoint class and outcome",
		}, []string{"class", "outcome"}),
		RateLimitExceededTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estateproof_ratelimit_exceeded_total",
			Help: "Total number of requests denied by rate limiting, by endpoint class",
		}, []string{"class"}),
	}
}

func (m *Metrics) RecordCheck(class, outcome string) {
	if m == nil {
		return
	}
	m.RateLimitChecksTotal.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) RecordExceeded(class string) {
	if m == nil {
		return
	}
	m.RateLimitExceededTotal.WithLabelValues(class).Inc()
}

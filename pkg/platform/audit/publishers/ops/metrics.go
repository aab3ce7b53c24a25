package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the tracker's drop accounting. Ops events are best-effort,
// so the only way to notice silent loss is through these counters.
type Metrics struct {
	Tracked               prometheus.Counter
	Sampled               prometheus.Counter
	CircuitBreakerDropped prometheus.Counter
	PersistFailures       prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
}

// NewMetrics registers the ops tracking metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Tracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estateproof_audit_ops_tracked_total",
			Help: "Operational audit events persisted",
		}),
		Sampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estateproof_audit_ops_sampled_total",
			Help: "Operational audit events dropped by the sampler",
		}),
		CircuitBreakerDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estateproof_audit_ops_circuit_breaker_dropped_total",
			Help: "Operational audit events dropped while the store breaker was open",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estateproof_audit_ops_persist_failures_total",
			Help: "Operational audit event writes that failed",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "estateproof_audit_ops_circuit_breaker_state",
			Help: "Store breaker state (0=closed, 1=open; open still admits probe writes)",
		}),
	}
}

func (m *Metrics) IncTracked() { m.Tracked.Inc() }

func (m *Metrics) IncSampled() { m.Sampled.Inc() }

func (m *Metrics) IncCircuitBreakerDropped() { m.CircuitBreakerDropped.Inc() }

func (m *Metrics) IncPersistFailures() { m.PersistFailures.Inc() }

// SetCircuitBreakerState records the breaker position after a state change.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
		return
	}
	m.CircuitBreakerState.Set(0)
}

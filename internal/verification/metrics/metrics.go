package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Submissions accepted, by priority assigned later in the pipeline
	SubmissionsTotal prometheus.Counter

	// Stage outcomes by stage name and result ("completed" / "failed")
	StageOutcome *prometheus.CounterVec

	// Per-stage latency
	StageDuration *prometheus.HistogramVec

	// Decisions by outcome ("approved" / "rejected")
	DecisionsTotal *prometheus.CounterVec

	// Time from queue entry to decision
	ReviewLatency prometheus.Histogram

	// Current queue depth by priority
	QueueDepth *prometheus.GaugeVec

	// Queued records past their review SLA, observed at read time
	SLAExpiredTotal prometheus.Counter

	// Cancellations honored
	CancellationsTotal prometheus.Counter
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estateproof_verification_submissions_total",
			Help: "Total accepted property verification submissions",
		}),

		StageOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estateproof_verification_stage_outcomes_total",
			Help: "Pipeline stage outcomes by stage and result",
		}, []string{"stage", "result"}),

		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estateproof_verification_stage_duration_seconds",
			Help:    "Duration of pipeline stages by stage",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}),

		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estateproof_verification_decisions_total",
			Help: "Manual review decisions by outcome",
		}, []string{"outcome"}),

		ReviewLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "estateproof_verification_review_duration_seconds",
			Help:    "Time from queue entry to decision",
			Buckets: prometheus.ExponentialBuckets(60, 4, 10),
		}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "estateproof_verification_queue_depth",
			Help: "Review queue depth by priority",
		}, []string{"priority"}),

		SLAExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estateproof_verification_sla_expired_total",
			Help: "Status reads that observed an expired review SLA",
		}),

		CancellationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estateproof_verification_cancellations_total",
			Help: "Verifications cancelled by the submitter",
		}),
	}
}

// IncSubmissions records an accepted submission.
func (m *Metrics) IncSubmissions() {
	if m != nil {
		m.SubmissionsTotal.Inc()
	}
}

// ObserveStage records one stage outcome and its duration.
func (m *Metrics) ObserveStage(stage, result string, d time.Duration) {
	if m != nil {
		m.StageOutcome.WithLabelValues(stage, result).Inc()
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncDecision records a manual review decision.
func (m *Metrics) IncDecision(outcome string) {
	if m != nil {
		m.DecisionsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveReviewLatency records queue-to-decision time.
func (m *Metrics) ObserveReviewLatency(d time.Duration) {
	if m != nil {
		m.ReviewLatency.Observe(d.Seconds())
	}
}

// SetQueueDepth updates the per-priority queue depth gauge.
func (m *Metrics) SetQueueDepth(priority string, depth int) {
	if m != nil {
		m.QueueDepth.WithLabelValues(priority).Set(float64(depth))
	}
}

// IncSLAExpired records an observed SLA breach.
func (m *Metrics) IncSLAExpired() {
	if m != nil {
		m.SLAExpiredTotal.Inc()
	}
}

// IncCancellations records an honored cancellation.
func (m *Metrics) IncCancellations() {
	if m != nil {
		m.CancellationsTotal.Inc()
	}
}

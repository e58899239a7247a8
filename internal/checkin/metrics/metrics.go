package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for proof issuance and verification.
type Metrics struct {
	// Issuance attempts by outcome: issued, invalid, error
	Issued *prometheus.CounterVec

	// Verification outcomes by reason
	Verifications *prometheus.CounterVec

	// Age of accepted proofs at presentation
	AcceptedAge prometheus.Histogram

	// End-to-end check latency including the replay guard
	CheckLatency prometheus.Histogram
}

// New registers the checkin metrics with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the checkin metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Issued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_proofs_issued_total",
			Help: "Proof issuance attempts by outcome",
		}, []string{"outcome"}),

		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_verifications_total",
			Help: "Proof verification outcomes by reason",
		}, []string{"reason"}),

		AcceptedAge: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_accepted_proof_age_seconds",
			Help:    "Age of accepted proofs when presented",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),

		CheckLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_check_duration_seconds",
			Help:    "Duration of a full check including replay consumption",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
	}
}

// IncrementIssued records an issuance attempt.
func (m *Metrics) IncrementIssued(outcome string) {
	if m != nil {
		m.Issued.WithLabelValues(outcome).Inc()
	}
}

// IncrementVerification records a verification outcome.
func (m *Metrics) IncrementVerification(reason string) {
	if m != nil {
		m.Verifications.WithLabelValues(reason).Inc()
	}
}

// ObserveAcceptedAge records the age of an accepted proof.
func (m *Metrics) ObserveAcceptedAge(d time.Duration) {
	if m != nil {
		m.AcceptedAge.Observe(d.Seconds())
	}
}

// ObserveCheckLatency records the duration of a check.
func (m *Metrics) ObserveCheckLatency(d time.Duration) {
	if m != nil {
		m.CheckLatency.Observe(d.Seconds())
	}
}

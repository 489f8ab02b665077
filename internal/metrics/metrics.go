package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	admissionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "admission_checks_total",
			Help:      "Admission checks by type and outcome (accepted or rejection reason).",
		},
		[]string{"type", "outcome"},
	)

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "reservations_created_total",
			Help:      "Reservations created by type and initial status.",
		},
		[]string{"type", "status"},
	)

	refundDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "refund_decisions_total",
			Help:      "Cancellation refund decisions by percentage tier.",
		},
		[]string{"tier"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, admissionChecks, reservationsCreated, refundDecisions)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncAdmission records an admission outcome: "accepted" or the reason.
func IncAdmission(reservationType, outcome string) {
	admissionChecks.WithLabelValues(reservationType, outcome).Inc()
}

// IncReservationCreated records a created booking.
func IncReservationCreated(reservationType, status string) {
	reservationsCreated.WithLabelValues(reservationType, status).Inc()
}

// IncRefundDecision records a refund tier ("0", "50", "100").
func IncRefundDecision(tier string) {
	refundDecisions.WithLabelValues(tier).Inc()
}

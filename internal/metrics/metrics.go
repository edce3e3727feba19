// Package metrics exposes Prometheus collectors for enrollment and verification.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "face_auth"

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeNoFace      = "no_face"
	OutcomeDuplicate   = "duplicate"
	OutcomeInvalid     = "invalid_input"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Custom registry so tests and the /metrics endpoint see only what we register.
var registry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics registry

var (
	factory = promauto.With(registry)

	registrations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"outcome"})

	verifications = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Verification attempts by outcome.",
	}, []string{"outcome"})

	operationDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of detect, register and verify operations.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	enrolledIdentities = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "enrolled_identities",
		Help:      "Number of enrolled identities seen by the last verification or listing.",
	})
)

func init() { //nolint:gochecknoinits // runtime collectors on the custom registry
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the registry holding every face-auth collector.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func RecordRegistration(outcome string) {
	registrations.WithLabelValues(outcome).Inc()
}

func RecordVerification(outcome string) {
	verifications.WithLabelValues(outcome).Inc()
}

// ObserveDuration records the time elapsed since start for operation.
func ObserveDuration(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func SetEnrolledIdentities(n int) {
	enrolledIdentities.Set(float64(n))
}

// Package metrics exposes Prometheus instrumentation for the engine. The
// match-distance histogram is the threshold-tuning aid: it shows where real
// traffic lands relative to the acceptance cutoff.
package metrics

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recognition direction labels.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics holds the collectors. A nil *Metrics is valid and records
// nothing, so tests and one-shot CLI commands can skip instrumentation.
type Metrics struct {
	registry      *prometheus.Registry
	registrations prometheus.Counter
	recognitions  *prometheus.CounterVec
	matchDistance prometheus.Histogram
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faceattend_registrations_total",
			Help: "Number of successful identity registrations.",
		}),
		recognitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faceattend_recognitions_total",
			Help: "Number of recognition attempts by direction and outcome.",
		}, []string{"direction", "outcome"}),
		matchDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "faceattend_match_distance",
			Help:    "Best embedding distance observed per recognition attempt.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 15),
		}),
	}

	registry.MustRegister(m.registrations, m.recognitions, m.matchDistance)
	return m
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegistrationRecorded counts one successful enrollment.
func (m *Metrics) RegistrationRecorded() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

// RecognitionRecorded counts one recognition attempt.
func (m *Metrics) RecognitionRecorded(direction, outcome string) {
	if m == nil {
		return
	}
	m.recognitions.WithLabelValues(direction, outcome).Inc()
}

// MatchDistanceObserved records the best distance of one matcher query.
// Infinite distances (empty index) are not observable in a histogram and
// are skipped.
func (m *Metrics) MatchDistanceObserved(distance float64) {
	if m == nil {
		return
	}
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return
	}
	m.matchDistance.Observe(distance)
}

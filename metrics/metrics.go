// Package metrics exposes lifecycle outcomes to Prometheus. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"

	"equipment_usage_tracker/db"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "equipment"

type Metrics struct {
	Transitions     *prometheus.CounterVec
	UsageHours      prometheus.Histogram
	StatusOverrides *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Checkout and check-in attempts by outcome.",
		}, []string{"transition", "outcome"}),
		UsageHours: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usage_hours",
			Help:      "Recorded duration of closed usage episodes.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 24, 72, 168},
		}),
		StatusOverrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_overrides_total",
			Help:      "Administrative status changes by target status.",
		}, []string{"status"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_cache_lookups_total",
			Help:      "Derived status cache lookups by result.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Transitions, m.UsageHours, m.StatusOverrides, m.CacheLookups)
	return m
}

// Outcome maps an operation error onto a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, db.ErrValidation):
		return "invalid"
	case errors.Is(err, db.ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, db.ErrNotFound):
		return "not_found"
	case errors.Is(err, db.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, db.ErrConflict):
		return "conflict"
	}
	return "error"
}

func (m *Metrics) Transition(transition string, err error) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(transition, Outcome(err)).Inc()
}

func (m *Metrics) ObserveHours(h float64) {
	if m == nil || h < 0 {
		return
	}
	m.UsageHours.Observe(h)
}

func (m *Metrics) StatusOverride(status string) {
	if m == nil {
		return
	}
	m.StatusOverrides.WithLabelValues(status).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry this Metrics was created on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"equipment_usage_tracker/db"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":                   nil,
		"invalid":              db.ErrValidation,
		"invalid_id":           fmt.Errorf("equipment id: %w", db.ErrInvalidID),
		"not_found":            db.ErrNotFound,
		"conflict":             &db.AlreadyReturnedError{},
		"concurrency_conflict": db.ErrConcurrencyConflict,
		"error":                fmt.Errorf("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Outcome(err), "error %v", err)
	}
}

func TestTransitionCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Transition("checkout", nil)
	m.Transition("checkout", nil)
	m.Transition("checkin", db.ErrConcurrencyConflict)
	m.ObserveHours(1.5)
	m.ObserveHours(-2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("checkout", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("checkin", "concurrency_conflict")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UsageHours))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Transition("checkout", nil)
	m.ObserveHours(1)
	m.StatusOverride("unavailable")
	m.CacheLookup(true)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.StatusOverride("unavailable")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `equipment_status_overrides_total{status="unavailable"} 1`))
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the counter or gauge value of the series name{labels}.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue series
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func TestObserveRecordsOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReply("llm", 200*time.Millisecond, false)
	m.ObserveReply("pattern", time.Millisecond, true)
	m.ObserveIntent("strong_phrase")
	m.ObserveTransition("open", nil)
	m.ObserveTransition("submit", errors.New("invalid"))
	m.ObserveSubmission("accepted")
	m.SetActiveSessions(3)
	m.AddExpired(2)
	m.IncRateLimited()
	m.SetIndexedChunks(12)
	m.ObserveHTTP("/api/chat", 200)
	m.ObserveHTTP("", 503)

	assert.Equal(t, 1.0, value(t, reg, "datacrumbs_widget_replies_total", map[string]string{"source": "llm"}))
	assert.Equal(t, 1.0, value(t, reg, "datacrumbs_widget_completion_errors_total", nil))
	assert.Equal(t, 1.0, value(t, reg, "datacrumbs_widget_enrollment_intents_total", map[string]string{"tier": "strong_phrase"}))
	assert.Equal(t, 1.0, value(t, reg, "datacrumbs_widget_form_transitions_total", map[string]string{"event": "submit", "result": "rejected"}))
	assert.Equal(t, 1.0, value(t, reg, "datacrumbs_widget_submissions_total", map[string]string{"outcome": "accepted"}))
	assert.Equal(t, 3.0, value(t, reg, "datacrumbs_widget_active_sessions", nil))
	assert.Equal(t, 2.0, value(t, reg, "datacrumbs_widget_sessions_expired_total", nil))
	assert.Equal(t, 1.0, value(t, reg, "datacrumbs_widget_rate_limited_total", nil))
	assert.Equal(t, 12.0, value(t, reg, "datacrumbs_widget_indexed_chunks", nil))
	assert.Equal(t, 1.0, value(t, reg, "datacrumbs_widget_http_requests_total", map[string]string{"route": "unmatched", "status": "5xx"}))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReply("llm", time.Second, true)
		m.ObserveIntent("weak_combination")
		m.ObserveTransition("close", nil)
		m.ObserveSubmission("invalid")
		m.SetActiveSessions(1)
		m.AddExpired(1)
		m.IncRateLimited()
		m.SetIndexedChunks(1)
		m.ObserveHTTP("/", 200)
	})
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

// Package metrics defines the Prometheus instruments of the widget service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "datacrumbs"
	subsystem = "widget"
)

// Metrics groups the service instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RepliesTotal      *prometheus.CounterVec
	ReplyDuration     *prometheus.HistogramVec
	CompletionErrors  prometheus.Counter
	IntentsTotal      *prometheus.CounterVec
	TransitionsTotal  *prometheus.CounterVec
	SubmissionsTotal  *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	SessionsExpired   prometheus.Counter
	RateLimitedTotal  prometheus.Counter
	IndexedChunks     prometheus.Gauge
	HTTPRequestsTotal *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RepliesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "replies_total",
				Help:      "Assistant replies by source (llm or pattern)",
			},
			[]string{"source"},
		),
		ReplyDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reply_duration_seconds",
				Help:      "Time to produce an assistant reply",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		),
		CompletionErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "completion_errors_total",
			Help:      "Completion provider failures recovered by the fallback table",
		}),
		IntentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "enrollment_intents_total",
				Help:      "Utterances classified as enrollment intent, by tier",
			},
			[]string{"tier"},
		),
		TransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "form_transitions_total",
				Help:      "Form events by event and result",
			},
			[]string{"event", "result"},
		),
		SubmissionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "submissions_total",
				Help:      "Enrollment submissions by outcome",
			},
			[]string{"outcome"},
		),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		}),
		SessionsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by the idle sweeper",
		}),
		RateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-visitor rate limiter",
		}),
		IndexedChunks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "indexed_chunks",
			Help:      "Chunks held by the knowledge index",
		}),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern and status class",
			},
			[]string{"route", "status"},
		),
	}
}

// ObserveReply records one assistant reply.
func (m *Metrics) ObserveReply(source string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(source).Inc()
	m.ReplyDuration.WithLabelValues(source).Observe(d.Seconds())
	if failed {
		m.CompletionErrors.Inc()
	}
}

// ObserveIntent records a positive classification.
func (m *Metrics) ObserveIntent(tier string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(tier).Inc()
}

// ObserveTransition records a form event and whether it was accepted.
func (m *Metrics) ObserveTransition(event string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.TransitionsTotal.WithLabelValues(event, result).Inc()
}

// ObserveSubmission records a submit outcome: accepted or invalid.
func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// AddExpired counts swept sessions.
func (m *Metrics) AddExpired(n int) {
	if m == nil {
		return
	}
	m.SessionsExpired.Add(float64(n))
}

// IncRateLimited counts one rejected request.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

// SetIndexedChunks sets the index size gauge.
func (m *Metrics) SetIndexedChunks(n int) {
	if m == nil {
		return
	}
	m.IndexedChunks.Set(float64(n))
}

// ObserveHTTP counts a finished request.
func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	m.HTTPRequestsTotal.WithLabelValues(route, class).Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enter             *prometheus.CounterVec
	progress          *prometheus.CounterVec
	conflictRetries   prometheus.Counter
	disqualifications prometheus.Counter
	analytics         *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_enter_total",
			Help: "Contest enter calls by outcome",
		}, []string{"outcome"}),
		progress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_progress_total",
			Help: "Progress log calls by outcome",
		}, []string{"outcome"}),
		conflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_conflict_retries_total",
			Help: "Participation updates retried after a lost conditional write",
		}),
		disqualifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_disqualifications_total",
			Help: "Participants disqualified for exceeding incomplete attempts",
		}),
		analytics: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contest_analytics_duration_seconds",
			Help:    "Time spent computing leaderboard and mastery aggregations",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
	}
	if reg != nil {
		reg.MustRegister(m.enter, m.progress, m.conflictRetries, m.disqualifications, m.analytics)
	}
	return m
}

func (m *Metrics) Enter(outcome string) {
	if m == nil {
		return
	}
	m.enter.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Progress(outcome string) {
	if m == nil {
		return
	}
	m.progress.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ConflictRetry() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}

func (m *Metrics) Disqualified() {
	if m == nil {
		return
	}
	m.disqualifications.Inc()
}

// ObserveAnalytics records the time since start under query.
func (m *Metrics) ObserveAnalytics(query string, start time.Time) {
	if m == nil {
		return
	}
	m.analytics.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

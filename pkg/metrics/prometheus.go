package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	transitionsTotal *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	sessionMinutes   prometheus.Histogram
	persistFailures  prometheus.Counter
	eventsDropped    prometheus.Counter
	staleSessions    prometheus.Gauge
	activeJobs       prometheus.Gauge
}

// NewPrometheusSink creates a Prometheus sink registered on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicejobs_transitions_total",
			Help: "Total number of accepted job operations.",
		}, []string{"action"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicejobs_rejections_total",
			Help: "Total number of rejected job operations.",
		}, []string{"action", "kind"}),
		sessionMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "servicejobs_session_minutes",
			Help:    "Labor minutes recorded by each closed technician session.",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 960, 1440},
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "servicejobs_persist_failures_total",
			Help: "Total number of job snapshots that failed to persist.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "servicejobs_events_dropped_total",
			Help: "Total number of events dropped for slow subscribers.",
		}),
		staleSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servicejobs_stale_sessions",
			Help: "Number of sessions open longer than the watchdog threshold.",
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servicejobs_jobs_in_memory",
			Help: "Number of job aggregates held in memory.",
		}),
	}

	s.register(reg, s.transitionsTotal, "servicejobs_transitions_total")
	s.register(reg, s.rejectionsTotal, "servicejobs_rejections_total")
	s.register(reg, s.sessionMinutes, "servicejobs_session_minutes")
	s.register(reg, s.persistFailures, "servicejobs_persist_failures_total")
	s.register(reg, s.eventsDropped, "servicejobs_events_dropped_total")
	s.register(reg, s.staleSessions, "servicejobs_stale_sessions")
	s.register(reg, s.activeJobs, "servicejobs_jobs_in_memory")
	return s
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		slog.Warn("metrics: failed to register collector", "name", name, "error", err)
	}
}

func (s *PrometheusSink) TransitionApplied(action string) {
	s.transitionsTotal.WithLabelValues(action).Inc()
}

func (s *PrometheusSink) TransitionRejected(action, kind string) {
	s.rejectionsTotal.WithLabelValues(action, kind).Inc()
}

func (s *PrometheusSink) SessionClosed(minutes int) {
	s.sessionMinutes.Observe(float64(minutes))
}

func (s *PrometheusSink) PersistFailed() {
	s.persistFailures.Inc()
}

func (s *PrometheusSink) EventDropped() {
	s.eventsDropped.Inc()
}

func (s *PrometheusSink) StaleSessionsUpdate(count int) {
	s.staleSessions.Set(float64(count))
}

func (s *PrometheusSink) ActiveJobsUpdate(count int) {
	s.activeJobs.Set(float64(count))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg), reg
}

func TestPrometheusSink_ImplementsSink(t *testing.T) {
	var _ Sink = (*PrometheusSink)(nil)
	var _ Sink = (*NoopSink)(nil)
}

func TestPrometheusSink_Transitions(t *testing.T) {
	sink, _ := newTestSink(t)
	sink.TransitionApplied("pause")
	sink.TransitionApplied("pause")
	sink.TransitionRejected("pause", KindInvalidTransition)

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.transitionsTotal.WithLabelValues("pause")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.rejectionsTotal.WithLabelValues("pause", KindInvalidTransition)))
}

func TestPrometheusSink_Gauges(t *testing.T) {
	sink, _ := newTestSink(t)
	sink.StaleSessionsUpdate(3)
	sink.ActiveJobsUpdate(12)
	sink.PersistFailed()
	sink.EventDropped()

	assert.Equal(t, 3.0, testutil.ToFloat64(sink.staleSessions))
	assert.Equal(t, 12.0, testutil.ToFloat64(sink.activeJobs))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.persistFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.eventsDropped))
}

func TestPrometheusSink_SessionHistogram(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.SessionClosed(30)
	sink.SessionClosed(90)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "servicejobs_session_minutes" {
			h := mf.GetMetric()[0].GetHistogram()
			assert.Equal(t, uint64(2), h.GetSampleCount())
			assert.Equal(t, 120.0, h.GetSampleSum())
			return
		}
	}
	t.Fatal("session histogram not registered")
}

func TestPrometheusSink_DuplicateRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheusSink(reg)
	assert.NotPanics(t, func() {
		s := NewPrometheusSink(reg)
		s.TransitionApplied("start")
	})
}

func TestNoopSink(t *testing.T) {
	s := NewNoopSink()
	assert.NotPanics(t, func() {
		s.TransitionApplied("start")
		s.TransitionRejected("start", KindConflict)
		s.SessionClosed(1)
		s.PersistFailed()
		s.EventDropped()
		s.StaleSessionsUpdate(1)
		s.ActiveJobsUpdate(1)
	})
}

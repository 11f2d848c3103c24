package metrics

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TransitionApplied(action string)        {}
func (n *NoopSink) TransitionRejected(action, kind string) {}
func (n *NoopSink) SessionClosed(minutes int)              {}
func (n *NoopSink) PersistFailed()                         {}
func (n *NoopSink) EventDropped()                          {}
func (n *NoopSink) StaleSessionsUpdate(count int)          {}
func (n *NoopSink) ActiveJobsUpdate(count int)             {}

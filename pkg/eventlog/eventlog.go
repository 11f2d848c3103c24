// Package eventlog provides the append-only timeline of a job.
package eventlog

import (
	"iter"
	"time"

	"github.com/jdziat/service-jobs/pkg/core"
)

// Log is an append-only sequence of events. It is not safe for concurrent
// use; the owning aggregate serializes access.
type Log struct {
	events []core.Event
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Restore rebuilds a log from persisted events, renumbering Seq from 1.
func Restore(events []core.Event) (*Log, error) {
	l := New()
	for _, e := range events {
		if _, err := l.Append(e); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append adds e to the end of the log and returns it with Seq assigned.
// Events may share a timestamp but may not go back in time.
func (l *Log) Append(e core.Event) (core.Event, error) {
	if e.Timestamp.IsZero() {
		return core.Event{}, &core.ValidationError{Field: "timestamp", Reason: "event timestamp is required"}
	}
	if last, ok := l.LastTimestamp(); ok && e.Timestamp.Before(last) {
		return core.Event{}, &core.ValidationError{Field: "timestamp", Reason: "event precedes the previous event"}
	}
	e.Seq = len(l.events) + 1
	l.events = append(l.events, e)
	return e, nil
}

// Timeline yields events in append order. The sequence can be ranged over
// any number of times; each pass sees the log as it is when the pass starts.
func (l *Log) Timeline() iter.Seq[core.Event] {
	return func(yield func(core.Event) bool) {
		n := len(l.events)
		for i := 0; i < n; i++ {
			if !yield(l.events[i]) {
				return
			}
		}
	}
}

// Since returns a copy of the events with Seq greater than seq.
func (l *Log) Since(seq int) []core.Event {
	if seq < 0 {
		seq = 0
	}
	if seq >= len(l.events) {
		return nil
	}
	out := make([]core.Event, len(l.events)-seq)
	copy(out, l.events[seq:])
	return out
}

// Events returns a copy of every event.
func (l *Log) Events() []core.Event {
	return l.Since(0)
}

// LastTimestamp returns the timestamp of the newest event.
func (l *Log) LastTimestamp() (time.Time, bool) {
	if len(l.events) == 0 {
		return time.Time{}, false
	}
	return l.events[len(l.events)-1].Timestamp, true
}

// Len returns the number of events appended.
func (l *Log) Len() int {
	return len(l.events)
}

// Package metrics records operational metrics for the job service.
package metrics

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations must not block or return errors.
type Sink interface {
	// TransitionApplied counts an accepted operation that changed a job.
	TransitionApplied(action string)
	// TransitionRejected counts a rejected operation by error kind.
	TransitionRejected(action, kind string)
	// SessionClosed observes the minutes a closed session contributed.
	SessionClosed(minutes int)
	// PersistFailed counts snapshots that could not be saved.
	PersistFailed()
	// EventDropped counts events a slow subscriber did not receive.
	EventDropped()
	// StaleSessionsUpdate sets the number of sessions open past the watchdog threshold.
	StaleSessionsUpdate(count int)
	// ActiveJobsUpdate sets the number of jobs held in memory.
	ActiveJobsUpdate(count int)
}

// Error kinds for TransitionRejected.
const (
	KindInvalidTransition = "invalid_transition"
	KindConflict          = "conflict"
	KindNotFound          = "not_found"
	KindValidation        = "validation"
	KindInternal          = "internal"
)

package core

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrInvalidTransition = errors.New("jobs: invalid transition")
	ErrConflict          = errors.New("jobs: conflict")
	ErrNotFound          = errors.New("jobs: not found")
	ErrValidation        = errors.New("jobs: validation failed")
	ErrStaleSnapshot     = errors.New("jobs: snapshot is older than stored version")
)

// InvalidTransitionError indicates an action that is not legal from the job's
// current status. It is a client error and must not be retried.
type InvalidTransitionError struct {
	JobID  string
	Status Status
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("jobs: cannot %s job %s while %s", e.Action, e.JobID, e.Status)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConflictError indicates a duplicate open session or a double start.
type ConflictError struct {
	JobID        string
	TechnicianID string
	Reason       string
}

func (e *ConflictError) Error() string {
	if e.TechnicianID == "" {
		return fmt.Sprintf("jobs: conflict on job %s: %s", e.JobID, e.Reason)
	}
	return fmt.Sprintf("jobs: conflict on job %s for technician %s: %s", e.JobID, e.TechnicianID, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NotFoundError indicates an unknown job id, or a technician that has no
// session or assignment on the job. TechnicianID is empty for unknown jobs.
type NotFoundError struct {
	JobID        string
	TechnicianID string
}

func (e *NotFoundError) Error() string {
	if e.TechnicianID == "" {
		return fmt.Sprintf("jobs: job %s not found", e.JobID)
	}
	return fmt.Sprintf("jobs: technician %s has no open session on job %s", e.TechnicianID, e.JobID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError indicates malformed input or an out-of-order timestamp.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("jobs: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsRetryable reports whether err may succeed if the same call is repeated.
// Domain errors and context errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrStaleSnapshot),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

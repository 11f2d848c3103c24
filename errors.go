package jobs

import "github.com/jdziat/service-jobs/pkg/core"

// Error types
type (
	InvalidTransitionError = core.InvalidTransitionError
	ConflictError          = core.ConflictError
	NotFoundError          = core.NotFoundError
	ValidationError        = core.ValidationError
)

// Sentinel errors, matched with errors.Is.
var (
	ErrInvalidTransition = core.ErrInvalidTransition
	ErrConflict          = core.ErrConflict
	ErrNotFound          = core.ErrNotFound
	ErrValidation        = core.ErrValidation
	ErrStaleSnapshot     = core.ErrStaleSnapshot
)

// IsRetryable reports whether err may succeed if the call is repeated.
func IsRetryable(err error) bool {
	return core.IsRetryable(err)
}

package core

import (
	"context"
)

// Storage defines the persistence layer for job snapshots.
type Storage interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// SaveSnapshot stores snap. Implementations must return ErrStaleSnapshot
	// when a snapshot with an equal or higher Version is already stored.
	SaveSnapshot(ctx context.Context, snap *JobSnapshot) error

	// LoadSnapshot returns the stored snapshot or a *NotFoundError.
	LoadSnapshot(ctx context.Context, jobID string) (*JobSnapshot, error)

	// ListSnapshots returns stored snapshots, newest first. An empty status
	// matches every job; limit <= 0 means no limit.
	ListSnapshots(ctx context.Context, status Status, limit int) ([]*JobSnapshot, error)
}

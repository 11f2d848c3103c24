// Package jobs tracks service jobs through their lifecycle and records the
// labor of every technician who works on them.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	store, _ := jobs.OpenStorage("sqlite", "jobs.db")
//	store.Migrate(ctx)
//	svc := jobs.New(jobs.WithStorage(store))
//
//	job, _ := svc.CreateJob(ctx, jobs.Metadata{StockNumber: "S-100"})
//	svc.Start(ctx, job.ID, "tech1", time.Now())
//	svc.AddTechnician(ctx, job.ID, "tech2", time.Now())
//	snap, _ := svc.Complete(ctx, job.ID, time.Now(), jobs.WithNote("done"))
//	fmt.Println(snap.TotalLaborMinutes)
package jobs

import (
	"log/slog"
	"time"

	"github.com/jdziat/service-jobs/pkg/aggregate"
	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/duration"
	"github.com/jdziat/service-jobs/pkg/metrics"
	"github.com/jdziat/service-jobs/pkg/retry"
	"github.com/jdziat/service-jobs/pkg/service"
)

type (
	// Service manages jobs and exposes every job operation.
	Service = service.Service

	// Option configures a Service.
	Option = service.Option

	// Job is a single job aggregate, for callers that manage their own
	// persistence.
	Job = aggregate.Aggregate

	// OperationOption annotates an operation with an actor or a note.
	OperationOption = aggregate.Option

	// Status is the lifecycle state of a job.
	Status = core.Status

	// Action names a lifecycle operation.
	Action = core.Action

	// Metadata describes the vehicle the job is for.
	Metadata = core.Metadata

	// Session is one contiguous interval of work by one technician.
	Session = core.Session

	// SessionView is a Session with its computed minutes.
	SessionView = core.SessionView

	// JobSnapshot is an immutable projection of a job.
	JobSnapshot = core.JobSnapshot

	// Event is one entry of a job's audit trail.
	Event = core.Event

	// EventType identifies what an Event records.
	EventType = core.EventType

	// Storage persists job snapshots.
	Storage = core.Storage

	// MetricsSink receives service metrics.
	MetricsSink = metrics.Sink

	// RetryConfig controls persistence retry backoff.
	RetryConfig = retry.Config
)

// Status constants
const (
	StatusPending    = core.StatusPending
	StatusInProgress = core.StatusInProgress
	StatusPaused     = core.StatusPaused
	StatusQCRequired = core.StatusQCRequired
	StatusCompleted  = core.StatusCompleted
	StatusQCApproved = core.StatusQCApproved
	StatusRejected   = core.StatusRejected
)

// Event type constants
const (
	EventStarted           = core.EventStarted
	EventPaused            = core.EventPaused
	EventResumed           = core.EventResumed
	EventTechnicianAdded   = core.EventTechnicianAdded
	EventTechnicianRemoved = core.EventTechnicianRemoved
	EventCompleted         = core.EventCompleted
	EventSentToQC          = core.EventSentToQC
	EventQCApproved        = core.EventQCApproved
	EventQCRejected        = core.EventQCRejected
)

// MaxSpanMinutes caps the minutes a single session can contribute.
const MaxSpanMinutes = duration.MaxSpanMinutes

// New creates a Service.
func New(opts ...Option) *Service {
	return service.New(opts...)
}

// NewJob creates a standalone Pending job.
func NewJob(id string, metadata Metadata, createdAt time.Time) *Job {
	return aggregate.New(id, metadata, createdAt)
}

// RestoreJob rebuilds a standalone job from a snapshot.
func RestoreJob(snap *JobSnapshot) (*Job, error) {
	return aggregate.Restore(snap)
}

// ParseStatus accepts canonical and legacy spellings such as "In Progress".
func ParseStatus(raw string) (Status, error) {
	return core.ParseStatus(raw)
}

// Service options

// WithStorage persists every snapshot and loads unknown jobs from st.
func WithStorage(st Storage) Option {
	return service.WithStorage(st)
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return service.WithLogger(l)
}

// WithMetrics sets the metrics sink.
func WithMetrics(sink MetricsSink) Option {
	return service.WithMetrics(sink)
}

// WithClock sets the clock used for creation times and reads.
func WithClock(now func() time.Time) Option {
	return service.WithClock(now)
}

// WithPersistRetry sets the backoff used when saving snapshots.
func WithPersistRetry(cfg RetryConfig) Option {
	return service.WithPersistRetry(cfg)
}

// WithIDGenerator sets the job id generator.
func WithIDGenerator(gen func() string) Option {
	return service.WithIDGenerator(gen)
}

// WithEventBuffer sets each event subscriber's channel capacity.
func WithEventBuffer(n int) Option {
	return service.WithEventBuffer(n)
}

// Operation options

// WithActor records who performed an operation.
func WithActor(actorID string) OperationOption {
	return aggregate.WithActor(actorID)
}

// WithNote attaches free text to the operation's event.
func WithNote(note string) OperationOption {
	return aggregate.WithNote(note)
}

// Duration helpers

// Span returns the whole minutes between start and end, capped per session.
func Span(start, end time.Time) int {
	return duration.Span(start, end)
}

// ElapsedSince is the wall-clock seconds from start to now.
func ElapsedSince(start, now time.Time) int {
	return duration.ElapsedSince(start, now)
}

// FormatDuration renders minutes as "45m" or "1h 05m".
func FormatDuration(minutes int) string {
	return duration.FormatDuration(minutes)
}

package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jdziat/service-jobs/pkg/aggregate"
	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/metrics"
	"github.com/jdziat/service-jobs/pkg/retry"
	"github.com/jdziat/service-jobs/pkg/security"
)

// Service manages job aggregates and exposes the job operations.
type Service struct {
	storage      core.Storage
	logger       *slog.Logger
	sink         metrics.Sink
	now          func() time.Time
	newID        func() string
	persistRetry retry.Config

	mu   sync.RWMutex
	jobs map[string]*aggregate.Aggregate

	hooksMu      sync.RWMutex
	onTransition []func(context.Context, core.JobSnapshot, core.Event)

	// Event stream
	subsMu      sync.RWMutex
	eventSubs   []chan core.Event
	eventBuffer int
}

// New creates a Service. Without WithStorage it keeps jobs in memory only.
func New(opts ...Option) *Service {
	s := &Service{
		logger:       slog.Default(),
		sink:         metrics.NewNoopSink(),
		now:          time.Now,
		newID:        defaultID,
		persistRetry: retry.DefaultConfig(),
		jobs:         make(map[string]*aggregate.Aggregate),
		eventBuffer:  100,
	}
	for _, opt := range opts {
		opt.applyService(s)
	}
	return s
}

// CreateJob registers a new Pending job carrying metadata.
func (s *Service) CreateJob(ctx context.Context, metadata core.Metadata) (core.JobSnapshot, error) {
	if err := security.ValidateMetadata(metadata); err != nil {
		return core.JobSnapshot{}, err
	}
	id := s.newID()
	createdAt := s.now()
	agg := aggregate.New(id, metadata, createdAt)

	s.mu.Lock()
	if _, exists := s.jobs[id]; exists {
		s.mu.Unlock()
		return core.JobSnapshot{}, &core.ConflictError{JobID: id, Reason: "job id already in use"}
	}
	s.jobs[id] = agg
	count := len(s.jobs)
	s.mu.Unlock()

	s.sink.ActiveJobsUpdate(count)
	snap := agg.Snapshot(createdAt)
	s.persist(ctx, agg, &snap)
	s.logger.Info("job created", "job_id", id)
	return snap, nil
}

// Start puts a Pending job in progress with technicianID on the clock.
func (s *Service) Start(ctx context.Context, jobID, technicianID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionStart, technicianID, at, opts)
}

// AddTechnician assigns a helper to the job.
func (s *Service) AddTechnician(ctx context.Context, jobID, technicianID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionAddTechnician, technicianID, at, opts)
}

// RemoveTechnician unassigns a technician, closing its open session.
func (s *Service) RemoveTechnician(ctx context.Context, jobID, technicianID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionRemoveTechnician, technicianID, at, opts)
}

// Pause stops the clock for every technician on the job.
func (s *Service) Pause(ctx context.Context, jobID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionPause, "", at, opts)
}

// Resume restarts a paused job with technicianID on the clock.
func (s *Service) Resume(ctx context.Context, jobID, technicianID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionResume, technicianID, at, opts)
}

// Complete finishes the job.
func (s *Service) Complete(ctx context.Context, jobID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionComplete, "", at, opts)
}

// SendToQC finishes the work and hands the job to quality control.
func (s *Service) SendToQC(ctx context.Context, jobID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionSendToQC, "", at, opts)
}

// ApproveQC passes quality control.
func (s *Service) ApproveQC(ctx context.Context, jobID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionApproveQC, "", at, opts)
}

// RejectQC sends the job back to work.
func (s *Service) RejectQC(ctx context.Context, jobID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, core.ActionRejectQC, "", at, opts)
}

// Apply runs an arbitrary action. It is the generic form of the named
// operations, used by transports that dispatch on an action name.
func (s *Service) Apply(ctx context.Context, jobID string, action core.Action, technicianID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error) {
	return s.apply(ctx, jobID, action, technicianID, at, opts)
}

// GetSnapshot returns the job's current state, measuring open sessions
// against the service clock.
func (s *Service) GetSnapshot(ctx context.Context, jobID string) (core.JobSnapshot, error) {
	if err := security.ValidateID("job_id", jobID); err != nil {
		return core.JobSnapshot{}, err
	}
	agg, err := s.aggregate(ctx, jobID)
	if err != nil {
		return core.JobSnapshot{}, err
	}
	return agg.Snapshot(s.now()), nil
}

// List returns jobs newest first, optionally filtered by status. Jobs held in
// memory take precedence over their stored copies.
func (s *Service) List(ctx context.Context, status core.Status, limit int) ([]core.JobSnapshot, error) {
	if status != "" && !status.Valid() {
		return nil, &core.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	limit = security.ClampLimit(limit)
	now := s.now()

	byID := make(map[string]core.JobSnapshot)
	for _, snap := range s.Snapshots(now) {
		if status == "" || snap.Status == status {
			byID[snap.ID] = snap
		}
	}
	if s.storage != nil {
		stored, err := s.storage.ListSnapshots(ctx, status, limit)
		if err != nil {
			return nil, fmt.Errorf("jobs: list stored jobs: %w", err)
		}
		for _, snap := range stored {
			if _, inMemory := s.lookup(snap.ID); !inMemory {
				byID[snap.ID] = *snap
			}
		}
	}

	out := make([]core.JobSnapshot, 0, len(byID))
	for _, snap := range byID {
		out = append(out, snap)
	}
	slices.SortFunc(out, func(a, b core.JobSnapshot) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Snapshots returns a snapshot of every job held in memory, measured at now.
// Each snapshot is taken under its own job's lock.
func (s *Service) Snapshots(now time.Time) []core.JobSnapshot {
	s.mu.RLock()
	aggs := make([]*aggregate.Aggregate, 0, len(s.jobs))
	for _, a := range s.jobs {
		aggs = append(aggs, a)
	}
	s.mu.RUnlock()

	out := make([]core.JobSnapshot, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, a.Snapshot(now))
	}
	return out
}

// Evict drops a terminal job from memory. Later reads load it from storage.
// A job whose latest version is not yet stored is saved first and kept if
// that save fails. It refuses without storage, since the job would be lost.
func (s *Service) Evict(ctx context.Context, jobID string) bool {
	if s.storage == nil {
		return false
	}
	a, ok := s.lookup(jobID)
	if !ok {
		return false
	}
	snap := a.Snapshot(s.now())
	if !snap.Status.Terminal() {
		return false
	}
	if !a.Persisted() {
		s.persist(ctx, a, &snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[jobID] != a || !a.Persisted() {
		return false
	}
	delete(s.jobs, jobID)
	s.sink.ActiveJobsUpdate(len(s.jobs))
	return true
}

// OnTransition registers a callback run after every state-changing operation,
// outside the job's lock.
func (s *Service) OnTransition(fn func(context.Context, core.JobSnapshot, core.Event)) {
	s.hooksMu.Lock()
	s.onTransition = append(s.onTransition, fn)
	s.hooksMu.Unlock()
}

// Events returns a channel receiving every appended job event.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (s *Service) Events() <-chan core.Event {
	ch := make(chan core.Event, s.eventBuffer)
	s.subsMu.Lock()
	s.eventSubs = append(s.eventSubs, ch)
	s.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; callers must stop reading before calling Unsubscribe.
func (s *Service) Unsubscribe(ch <-chan core.Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, sub := range s.eventSubs {
		if sub == ch {
			s.eventSubs = append(s.eventSubs[:i], s.eventSubs[i+1:]...)
			return
		}
	}
}

func (s *Service) emit(e core.Event) {
	s.subsMu.RLock()
	subs := make([]chan core.Event, len(s.eventSubs))
	copy(subs, s.eventSubs)
	s.subsMu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop if full so a slow consumer never blocks an operation
			s.sink.EventDropped()
		}
	}
}

func (s *Service) apply(ctx context.Context, jobID string, action core.Action, technicianID string, at time.Time, opts []aggregate.Option) (core.JobSnapshot, error) {
	req := aggregate.Request(action, technicianID, at, opts...)
	req.Note = security.SanitizeNote(req.Note)

	if err := s.validate(jobID, technicianID, req.ActorID); err != nil {
		return core.JobSnapshot{}, s.reject(jobID, action, err)
	}
	agg, err := s.aggregate(ctx, jobID)
	if err != nil {
		return core.JobSnapshot{}, s.reject(jobID, action, err)
	}

	res, err := agg.Apply(req)
	if err != nil {
		return core.JobSnapshot{}, s.reject(jobID, action, err)
	}
	if !res.Outcome.Changed {
		s.logger.Debug("job operation was a no-op", "job_id", jobID, "action", action, "technician_id", technicianID)
		return res.Snapshot, nil
	}

	s.sink.TransitionApplied(string(action))
	for _, m := range res.Outcome.Closed {
		s.sink.SessionClosed(m)
	}
	s.logger.Info("job transition",
		"job_id", jobID,
		"action", action,
		"from", res.Outcome.From,
		"to", res.Outcome.To,
		"technician_id", technicianID,
		"version", res.Snapshot.Version,
	)

	s.persist(ctx, agg, &res.Snapshot)
	s.emit(res.Outcome.Event)
	s.callHooks(ctx, res.Snapshot, res.Outcome.Event)
	return res.Snapshot, nil
}

func (s *Service) validate(jobID, technicianID, actorID string) error {
	if err := security.ValidateID("job_id", jobID); err != nil {
		return err
	}
	if technicianID != "" {
		if err := security.ValidateTechnicianID(technicianID); err != nil {
			return err
		}
	}
	return security.ValidateActorID(actorID)
}

// aggregate returns the in-memory aggregate for jobID, loading it from
// storage on first use.
func (s *Service) aggregate(ctx context.Context, jobID string) (*aggregate.Aggregate, error) {
	if a, ok := s.lookup(jobID); ok {
		return a, nil
	}
	if s.storage == nil {
		return nil, &core.NotFoundError{JobID: jobID}
	}

	snap, err := s.storage.LoadSnapshot(ctx, jobID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("jobs: load job %s: %w", jobID, err)
	}
	restored, err := aggregate.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("jobs: restore job %s: %w", jobID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have loaded the job while we were reading it.
	if existing, ok := s.jobs[jobID]; ok {
		return existing, nil
	}
	s.jobs[jobID] = restored
	s.sink.ActiveJobsUpdate(len(s.jobs))
	return restored, nil
}

func (s *Service) lookup(jobID string) (*aggregate.Aggregate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.jobs[jobID]
	return a, ok
}

// persist saves snap with retry and marks agg as stored up to snap's
// version. Failures are logged and counted; the in-memory aggregate stays
// authoritative and the next save carries the full state.
func (s *Service) persist(ctx context.Context, agg *aggregate.Aggregate, snap *core.JobSnapshot) {
	if s.storage == nil {
		return
	}
	err := retry.Do(ctx, s.persistRetry, func() error {
		return s.storage.SaveSnapshot(ctx, snap)
	})
	switch {
	case err == nil:
		agg.MarkPersisted(snap.Version)
	case errors.Is(err, core.ErrStaleSnapshot):
		agg.MarkPersisted(snap.Version)
		s.logger.Debug("skipped stale snapshot", "job_id", snap.ID, "version", snap.Version)
	default:
		s.sink.PersistFailed()
		s.logger.Error("failed to persist job snapshot", "job_id", snap.ID, "version", snap.Version, "error", err)
	}
}

func (s *Service) callHooks(ctx context.Context, snap core.JobSnapshot, e core.Event) {
	s.hooksMu.RLock()
	hooks := make([]func(context.Context, core.JobSnapshot, core.Event), len(s.onTransition))
	copy(hooks, s.onTransition)
	s.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, snap, e)
	}
}

func (s *Service) reject(jobID string, action core.Action, err error) error {
	kind := KindOf(err)
	s.sink.TransitionRejected(string(action), kind)
	if kind == metrics.KindInternal {
		s.logger.Error("job operation failed", "job_id", jobID, "action", action, "error", err)
	} else {
		s.logger.Debug("job operation rejected", "job_id", jobID, "action", action, "kind", kind, "error", err)
	}
	return err
}

// KindOf classifies err into one of the metrics error kinds.
func KindOf(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidTransition):
		return metrics.KindInvalidTransition
	case errors.Is(err, core.ErrConflict):
		return metrics.KindConflict
	case errors.Is(err, core.ErrNotFound):
		return metrics.KindNotFound
	case errors.Is(err, core.ErrValidation):
		return metrics.KindValidation
	default:
		return metrics.KindInternal
	}
}

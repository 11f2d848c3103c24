// Package aggregate provides the Job aggregate: the state machine, session
// ledger and event log of one job behind a single lock.
//
// Every operation holds the lock for its whole duration and returns an
// immutable JobSnapshot. No operation blocks on I/O, so the lock is held only
// for in-memory work; persistence and notification happen in the caller after
// the operation returns.
package aggregate

import (
	"sync"
	"time"

	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/duration"
	"github.com/jdziat/service-jobs/pkg/eventlog"
	"github.com/jdziat/service-jobs/pkg/ledger"
	"github.com/jdziat/service-jobs/pkg/lifecycle"
)

// Aggregate is the consistency boundary of one job.
type Aggregate struct {
	mu       sync.Mutex
	state    *lifecycle.State
	metadata core.Metadata
	version  int64

	// persisted is the highest version known to be in storage.
	persisted int64
}

// Result is the outcome of one operation.
type Result struct {
	Snapshot core.JobSnapshot
	Outcome  lifecycle.Outcome
}

// New creates a Pending job.
func New(id string, metadata core.Metadata, createdAt time.Time) *Aggregate {
	return &Aggregate{
		state:    lifecycle.NewState(id, createdAt),
		metadata: metadata.Clone(),
		version:  1,
	}
}

// Restore rebuilds an aggregate from a persisted snapshot.
func Restore(snap *core.JobSnapshot) (*Aggregate, error) {
	if snap == nil || snap.ID == "" {
		return nil, &core.ValidationError{Field: "snapshot", Reason: "snapshot without id"}
	}
	if !snap.Status.Valid() {
		return nil, &core.ValidationError{Field: "status", Reason: "unknown status " + string(snap.Status)}
	}
	sessions := make([]core.Session, len(snap.Sessions))
	for i, sv := range snap.Sessions {
		sessions[i] = sv.Session
	}
	l, err := ledger.Restore(snap.ID, sessions)
	if err != nil {
		return nil, err
	}
	log, err := eventlog.Restore(snap.Events)
	if err != nil {
		return nil, err
	}
	state := &lifecycle.State{
		ID:          snap.ID,
		Status:      snap.Status,
		CreatedAt:   snap.CreatedAt,
		StartTime:   cloneTime(snap.StartTime),
		CompletedAt: cloneTime(snap.CompletedAt),
		Technicians: append([]string(nil), snap.Technicians...),
		Ledger:      l,
		Log:         log,
	}
	return &Aggregate{
		state:     state,
		metadata:  snap.Metadata.Clone(),
		version:   snap.Version,
		persisted: snap.Version,
	}, nil
}

// ID returns the job id.
func (a *Aggregate) ID() string {
	return a.state.ID
}

// Apply runs req under the lock. A rejected request changes nothing.
func (a *Aggregate) Apply(req lifecycle.Request) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out, err := lifecycle.Apply(a.state, req)
	if err != nil {
		return Result{}, err
	}
	if out.Changed {
		a.version++
	}
	return Result{Snapshot: a.snapshotLocked(req.At), Outcome: out}, nil
}

// Start puts a Pending job in progress with technicianID on the clock.
func (a *Aggregate) Start(technicianID string, at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionStart, technicianID, at, opts)
}

// AddTechnician assigns a helper, opening a session if the job is in progress.
func (a *Aggregate) AddTechnician(technicianID string, at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionAddTechnician, technicianID, at, opts)
}

// RemoveTechnician unassigns technicianID, closing its open session if any.
func (a *Aggregate) RemoveTechnician(technicianID string, at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionRemoveTechnician, technicianID, at, opts)
}

// Pause stops the clock for every technician.
func (a *Aggregate) Pause(at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionPause, "", at, opts)
}

// Resume restarts a paused job with technicianID on the clock.
func (a *Aggregate) Resume(technicianID string, at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionResume, technicianID, at, opts)
}

// Complete finishes the job, closing any open sessions.
func (a *Aggregate) Complete(at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionComplete, "", at, opts)
}

// SendToQC finishes the work and hands the job to quality control.
func (a *Aggregate) SendToQC(at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionSendToQC, "", at, opts)
}

// ApproveQC passes quality control.
func (a *Aggregate) ApproveQC(at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionApproveQC, "", at, opts)
}

// RejectQC sends the job back to work and clears its completion time.
func (a *Aggregate) RejectQC(at time.Time, opts ...Option) (core.JobSnapshot, error) {
	return a.do(core.ActionRejectQC, "", at, opts)
}

// Snapshot returns the current state with open sessions measured against now.
func (a *Aggregate) Snapshot(now time.Time) core.JobSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(now)
}

// TotalLaborMinutes sums every session, measuring open ones against now.
func (a *Aggregate) TotalLaborMinutes(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Ledger.TotalLaborMinutes(now)
}

// ElapsedSeconds is the wall-clock time since the job first started, for live
// timers. It ignores pauses, unlike TotalLaborMinutes, and stops at the
// completion time once the job is finished.
func (a *Aggregate) ElapsedSeconds(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return elapsed(a.state.StartTime, a.state.CompletedAt, a.state.Ledger.HasOpenSessions(), now)
}

// Elapsed is ElapsedSeconds for a snapshot, measured at snap.AsOf.
func Elapsed(snap core.JobSnapshot) int {
	return elapsed(snap.StartTime, snap.CompletedAt, snap.HasOpenSessions(), snap.AsOf)
}

func elapsed(start, completedAt *time.Time, open bool, now time.Time) int {
	if start == nil {
		return 0
	}
	end := now
	if completedAt != nil && !open {
		end = *completedAt
	}
	return duration.ElapsedSince(*start, end)
}

// MarkPersisted records that version is in storage. Older versions are
// ignored.
func (a *Aggregate) MarkPersisted(version int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if version > a.persisted {
		a.persisted = version
	}
}

// Persisted reports whether the current version is in storage.
func (a *Aggregate) Persisted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persisted >= a.version
}

func (a *Aggregate) do(action core.Action, technicianID string, at time.Time, opts []Option) (core.JobSnapshot, error) {
	res, err := a.Apply(Request(action, technicianID, at, opts...))
	if err != nil {
		return core.JobSnapshot{}, err
	}
	return res.Snapshot, nil
}

func (a *Aggregate) snapshotLocked(now time.Time) core.JobSnapshot {
	s := a.state
	sessions := s.Ledger.Sessions()
	views := make([]core.SessionView, len(sessions))
	for i, sess := range sessions {
		views[i] = core.SessionView{
			Session: sess,
			Minutes: duration.SpanOpen(sess.StartTime, sess.EndTime, now),
		}
	}
	return core.JobSnapshot{
		ID:                s.ID,
		Status:            s.Status,
		CreatedAt:         s.CreatedAt,
		StartTime:         cloneTime(s.StartTime),
		CompletedAt:       cloneTime(s.CompletedAt),
		Metadata:          a.metadata.Clone(),
		Technicians:       append([]string{}, s.Technicians...),
		ActiveTechnicians: s.Ledger.OpenTechnicians(),
		Sessions:          views,
		Events:            s.Log.Events(),
		TotalLaborMinutes: s.Ledger.TotalLaborMinutes(now),
		LaborByTechnician: s.Ledger.LaborByTechnician(now),
		Version:           a.version,
		AsOf:              now,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Package lifecycle implements the job state machine.
//
// Apply validates an action against the transition table and, when it is
// legal, performs its side effects on the session ledger and event log.
// Every check runs before the first mutation, so a rejected action leaves the
// job exactly as it was.
package lifecycle

import (
	"slices"
	"time"

	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/eventlog"
	"github.com/jdziat/service-jobs/pkg/ledger"
)

// State is the mutable lifecycle state of one job.
type State struct {
	ID          string
	Status      core.Status
	CreatedAt   time.Time
	StartTime   *time.Time
	CompletedAt *time.Time

	// Technicians is the ordered roster of assigned technicians.
	Technicians []string

	Ledger *ledger.Ledger
	Log    *eventlog.Log
}

// NewState returns a Pending job created at createdAt.
func NewState(id string, createdAt time.Time) *State {
	return &State{
		ID:        id,
		Status:    core.StatusPending,
		CreatedAt: createdAt,
		Ledger:    ledger.New(id),
		Log:       eventlog.New(),
	}
}

// Request is one action invoked against a job.
type Request struct {
	Action       core.Action
	TechnicianID string
	ActorID      string
	Note         string
	At           time.Time
}

// Outcome describes what Apply changed.
type Outcome struct {
	// Changed is false for an accepted no-op such as a retried Start.
	Changed bool
	From    core.Status
	To      core.Status
	Event   core.Event
	// Closed lists the minutes of every session the action closed.
	Closed []int
}

type rule struct {
	from       []core.Status
	to         core.Status // empty keeps the current status
	event      core.EventType
	technician bool // the action names a technician
}

var rules = map[core.Action]rule{
	core.ActionStart: {
		from: []core.Status{core.StatusPending}, to: core.StatusInProgress,
		event: core.EventStarted, technician: true,
	},
	core.ActionAddTechnician: {
		from:  []core.Status{core.StatusInProgress, core.StatusPaused},
		event: core.EventTechnicianAdded, technician: true,
	},
	core.ActionRemoveTechnician: {
		from:  []core.Status{core.StatusInProgress, core.StatusPaused, core.StatusQCRequired},
		event: core.EventTechnicianRemoved, technician: true,
	},
	core.ActionPause: {
		from: []core.Status{core.StatusInProgress}, to: core.StatusPaused,
		event: core.EventPaused,
	},
	core.ActionResume: {
		from: []core.Status{core.StatusPaused}, to: core.StatusInProgress,
		event: core.EventResumed, technician: true,
	},
	core.ActionComplete: {
		from: []core.Status{core.StatusInProgress, core.StatusPaused}, to: core.StatusCompleted,
		event: core.EventCompleted,
	},
	core.ActionSendToQC: {
		from: []core.Status{core.StatusInProgress, core.StatusPaused}, to: core.StatusQCRequired,
		event: core.EventSentToQC,
	},
	core.ActionApproveQC: {
		from: []core.Status{core.StatusQCRequired}, to: core.StatusQCApproved,
		event: core.EventQCApproved,
	},
	core.ActionRejectQC: {
		from: []core.Status{core.StatusQCRequired}, to: core.StatusInProgress,
		event: core.EventQCRejected,
	},
}

// Allowed returns the statuses from which action may be applied.
func Allowed(action core.Action) []core.Status {
	return slices.Clone(rules[action].from)
}

// CanApply reports whether the transition table permits action from status.
func CanApply(status core.Status, action core.Action) bool {
	r, ok := rules[action]
	return ok && slices.Contains(r.from, status)
}

// Next returns the status action leads to from status, or an
// InvalidTransitionError.
func Next(jobID string, status core.Status, action core.Action) (core.Status, error) {
	if !CanApply(status, action) {
		return "", &core.InvalidTransitionError{JobID: jobID, Status: status, Action: action}
	}
	if to := rules[action].to; to != "" {
		return to, nil
	}
	return status, nil
}

// Apply runs req against s.
func Apply(s *State, req Request) (Outcome, error) {
	r, ok := rules[req.Action]
	if !ok {
		return Outcome{}, &core.ValidationError{Field: "action", Reason: "unknown action " + string(req.Action)}
	}
	startRetry := req.Action == core.ActionStart && s.Status == core.StatusInProgress
	if !startRetry && !CanApply(s.Status, req.Action) {
		return Outcome{}, &core.InvalidTransitionError{JobID: s.ID, Status: s.Status, Action: req.Action}
	}
	if err := checkRequest(s, r, req); err != nil {
		return Outcome{}, err
	}

	// A retried Start by the technician already on the clock is accepted as-is.
	if startRetry {
		if s.Ledger.IsOpen(req.TechnicianID) {
			return Outcome{From: s.Status, To: s.Status}, nil
		}
		return Outcome{}, &core.ConflictError{
			JobID: s.ID, TechnicianID: req.TechnicianID,
			Reason: "job already started; add the technician instead",
		}
	}

	to, err := Next(s.ID, s.Status, req.Action)
	if err != nil {
		return Outcome{}, err
	}
	if err := precheck(s, req); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Changed: true, From: s.Status, To: to}
	out.Closed = commit(s, req)
	s.Status = to

	actor := req.ActorID
	if actor == "" {
		actor = req.TechnicianID
	}
	ev, err := s.Log.Append(core.Event{
		JobID:        s.ID,
		Type:         r.event,
		Timestamp:    req.At,
		ActorID:      actor,
		TechnicianID: req.TechnicianID,
		Note:         req.Note,
		From:         out.From,
		To:           to,
	})
	if err != nil {
		// Unreachable: checkRequest already ordered At after the last event.
		panic("lifecycle: append after validation failed: " + err.Error())
	}
	out.Event = ev
	return out, nil
}

// checkRequest validates the timestamp and technician of a permitted action.
func checkRequest(s *State, r rule, req Request) error {
	if req.At.IsZero() {
		return &core.ValidationError{Field: "at", Reason: "timestamp is required"}
	}
	floor := s.CreatedAt
	if last, ok := s.Log.LastTimestamp(); ok && last.After(floor) {
		floor = last
	}
	if req.At.Before(floor) {
		return &core.ValidationError{Field: "at", Reason: "timestamp precedes the job's latest event"}
	}
	if r.technician && req.TechnicianID == "" {
		return &core.ValidationError{Field: "technician_id", Reason: "technician is required"}
	}
	return nil
}

// precheck finds every error the side effects of req could hit.
func precheck(s *State, req Request) error {
	switch req.Action {
	case core.ActionStart, core.ActionResume:
		if s.Ledger.IsOpen(req.TechnicianID) {
			return &core.ConflictError{JobID: s.ID, TechnicianID: req.TechnicianID, Reason: "session already open"}
		}
	case core.ActionAddTechnician:
		if s.Status == core.StatusInProgress && s.Ledger.IsOpen(req.TechnicianID) {
			return &core.ConflictError{JobID: s.ID, TechnicianID: req.TechnicianID, Reason: "session already open"}
		}
		if s.Status == core.StatusPaused && s.assigned(req.TechnicianID) {
			return &core.ConflictError{JobID: s.ID, TechnicianID: req.TechnicianID, Reason: "technician already assigned"}
		}
	case core.ActionRemoveTechnician:
		if !s.Ledger.IsOpen(req.TechnicianID) && !s.assigned(req.TechnicianID) {
			return &core.NotFoundError{JobID: s.ID, TechnicianID: req.TechnicianID}
		}
		if s.Ledger.IsOpen(req.TechnicianID) {
			return s.Ledger.CanClose(req.At)
		}
	case core.ActionPause, core.ActionComplete, core.ActionSendToQC:
		return s.Ledger.CanClose(req.At)
	}
	return nil
}

// commit performs the side effects of a prechecked request and returns the
// minutes of any sessions it closed.
func commit(s *State, req Request) []int {
	var closed []int
	switch req.Action {
	case core.ActionStart:
		if s.StartTime == nil {
			t := req.At
			s.StartTime = &t
		}
		mustOpen(s, req)
		s.assign(req.TechnicianID)
	case core.ActionAddTechnician:
		if s.Status == core.StatusInProgress {
			mustOpen(s, req)
		}
		s.assign(req.TechnicianID)
	case core.ActionRemoveTechnician:
		if s.Ledger.IsOpen(req.TechnicianID) {
			m, err := s.Ledger.CloseSession(req.TechnicianID, req.At)
			if err != nil {
				panic("lifecycle: close after precheck failed: " + err.Error())
			}
			closed = append(closed, m)
		}
		s.unassign(req.TechnicianID)
	case core.ActionPause:
		closed = mustCloseAll(s, req.At)
	case core.ActionResume:
		mustOpen(s, req)
		s.assign(req.TechnicianID)
	case core.ActionComplete, core.ActionSendToQC:
		closed = mustCloseAll(s, req.At)
		t := req.At
		s.CompletedAt = &t
	case core.ActionApproveQC:
		if s.CompletedAt == nil {
			t := req.At
			s.CompletedAt = &t
		}
	case core.ActionRejectQC:
		s.CompletedAt = nil
	}
	return closed
}

func mustOpen(s *State, req Request) {
	if err := s.Ledger.OpenSession(req.TechnicianID, req.At); err != nil {
		panic("lifecycle: open after precheck failed: " + err.Error())
	}
}

func mustCloseAll(s *State, at time.Time) []int {
	_, minutes, err := s.Ledger.CloseAll(at)
	if err != nil {
		panic("lifecycle: close all after precheck failed: " + err.Error())
	}
	return minutes
}

func (s *State) assigned(technicianID string) bool {
	return slices.Contains(s.Technicians, technicianID)
}

func (s *State) assign(technicianID string) {
	if !s.assigned(technicianID) {
		s.Technicians = append(s.Technicians, technicianID)
	}
}

func (s *State) unassign(technicianID string) {
	s.Technicians = slices.DeleteFunc(s.Technicians, func(id string) bool { return id == technicianID })
}

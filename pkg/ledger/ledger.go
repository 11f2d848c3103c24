// Package ledger records technician work sessions for a single job.
//
// A Ledger is append-mostly: sessions are only ever appended, and the one
// mutation allowed on an existing entry is closing it. It is not safe for
// concurrent use; the owning aggregate serializes access.
package ledger

import (
	"time"

	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/duration"
)

// Ledger holds the sessions of one job in insertion order.
type Ledger struct {
	jobID    string
	sessions []core.Session
	open     map[string]int // technician id -> index of its open session
}

// New creates an empty ledger for jobID.
func New(jobID string) *Ledger {
	return &Ledger{
		jobID: jobID,
		open:  make(map[string]int),
	}
}

// Restore rebuilds a ledger from persisted sessions, rejecting histories that
// hold two open sessions for one technician or a session that ends before it
// starts.
func Restore(jobID string, sessions []core.Session) (*Ledger, error) {
	l := New(jobID)
	for i, s := range sessions {
		if s.TechnicianID == "" {
			return nil, &core.ValidationError{Field: "sessions", Reason: "session without technician"}
		}
		if s.StartTime.IsZero() {
			return nil, &core.ValidationError{Field: "sessions", Reason: "session without start time"}
		}
		if s.EndTime != nil && s.EndTime.Before(s.StartTime) {
			return nil, &core.ValidationError{Field: "sessions", Reason: "session ends before it starts"}
		}
		if s.Open() {
			if _, dup := l.open[s.TechnicianID]; dup {
				return nil, &core.ConflictError{JobID: jobID, TechnicianID: s.TechnicianID, Reason: "more than one open session"}
			}
			l.open[s.TechnicianID] = i
		}
		l.sessions = append(l.sessions, cloneSession(s))
	}
	return l, nil
}

// OpenSession appends an open session for technicianID starting at at.
// It fails with a ConflictError if the technician already has one open,
// which also absorbs retried double-starts.
func (l *Ledger) OpenSession(technicianID string, at time.Time) error {
	if _, ok := l.open[technicianID]; ok {
		return &core.ConflictError{JobID: l.jobID, TechnicianID: technicianID, Reason: "session already open"}
	}
	if at.IsZero() {
		return &core.ValidationError{Field: "at", Reason: "timestamp is required"}
	}
	l.sessions = append(l.sessions, core.Session{TechnicianID: technicianID, StartTime: at})
	l.open[technicianID] = len(l.sessions) - 1
	return nil
}

// CloseSession ends technicianID's open session at at and returns the minutes
// it contributed.
func (l *Ledger) CloseSession(technicianID string, at time.Time) (int, error) {
	idx, ok := l.open[technicianID]
	if !ok {
		return 0, &core.NotFoundError{JobID: l.jobID, TechnicianID: technicianID}
	}
	if err := l.checkClose(idx, at); err != nil {
		return 0, err
	}
	return l.close(idx, at), nil
}

// CloseAll closes every open session at at. Every session is checked before
// any is closed, so a ValidationError leaves the ledger untouched. It returns
// the closed technician ids in session order and their minutes.
func (l *Ledger) CloseAll(at time.Time) ([]string, []int, error) {
	indexes := l.openIndexes()
	for _, idx := range indexes {
		if err := l.checkClose(idx, at); err != nil {
			return nil, nil, err
		}
	}
	techs := make([]string, 0, len(indexes))
	minutes := make([]int, 0, len(indexes))
	for _, idx := range indexes {
		techs = append(techs, l.sessions[idx].TechnicianID)
		minutes = append(minutes, l.close(idx, at))
	}
	return techs, minutes, nil
}

// CanClose reports the error CloseSession or CloseAll would return for at,
// without mutating anything.
func (l *Ledger) CanClose(at time.Time) error {
	for _, idx := range l.openIndexes() {
		if err := l.checkClose(idx, at); err != nil {
			return err
		}
	}
	return nil
}

// TotalLaborMinutes sums the span of every session, measuring open sessions
// against now. Simultaneous technicians each contribute their own span.
func (l *Ledger) TotalLaborMinutes(now time.Time) int {
	total := 0
	for _, s := range l.sessions {
		total += duration.SpanOpen(s.StartTime, s.EndTime, now)
	}
	return total
}

// LaborByTechnician is TotalLaborMinutes split per technician.
func (l *Ledger) LaborByTechnician(now time.Time) map[string]int {
	out := make(map[string]int)
	for _, s := range l.sessions {
		out[s.TechnicianID] += duration.SpanOpen(s.StartTime, s.EndTime, now)
	}
	return out
}

// HasOpenSessions reports whether any technician is clocked in.
func (l *Ledger) HasOpenSessions() bool {
	return len(l.open) > 0
}

// IsOpen reports whether technicianID has an open session.
func (l *Ledger) IsOpen(technicianID string) bool {
	_, ok := l.open[technicianID]
	return ok
}

// OpenTechnicians returns technicians with open sessions in session order.
func (l *Ledger) OpenTechnicians() []string {
	indexes := l.openIndexes()
	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, l.sessions[idx].TechnicianID)
	}
	return out
}

// Sessions returns a copy of every session in insertion order.
func (l *Ledger) Sessions() []core.Session {
	out := make([]core.Session, len(l.sessions))
	for i, s := range l.sessions {
		out[i] = cloneSession(s)
	}
	return out
}

// Len returns the number of sessions recorded.
func (l *Ledger) Len() int {
	return len(l.sessions)
}

func (l *Ledger) checkClose(idx int, at time.Time) error {
	if at.IsZero() {
		return &core.ValidationError{Field: "at", Reason: "timestamp is required"}
	}
	if at.Before(l.sessions[idx].StartTime) {
		return &core.ValidationError{Field: "at", Reason: "session cannot end before it started"}
	}
	return nil
}

func (l *Ledger) close(idx int, at time.Time) int {
	end := at
	s := &l.sessions[idx]
	s.EndTime = &end
	delete(l.open, s.TechnicianID)
	return duration.Span(s.StartTime, end)
}

// openIndexes returns indexes of open sessions in ascending order.
func (l *Ledger) openIndexes() []int {
	out := make([]int, 0, len(l.open))
	for i, s := range l.sessions {
		if s.Open() {
			out = append(out, i)
		}
	}
	return out
}

func cloneSession(s core.Session) core.Session {
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}

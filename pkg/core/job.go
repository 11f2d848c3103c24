package core

import (
	"time"
)

// Metadata is the vehicle and sales payload carried with a job.
// The lifecycle never interprets it.
type Metadata struct {
	VIN         string            `json:"vin,omitempty" validate:"omitempty,len=17,alphanum"`
	StockNumber string            `json:"stock_number,omitempty" validate:"omitempty,max=64"`
	Priority    string            `json:"priority,omitempty" validate:"omitempty,max=32"`
	SalesPerson string            `json:"sales_person,omitempty" validate:"omitempty,max=128"`
	Extra       map[string]string `json:"extra,omitempty" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=1024"`
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Session is one continuous interval during which a technician worked on a job.
// A nil EndTime means the session is still open.
type Session struct {
	TechnicianID string     `json:"technician_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s Session) Open() bool {
	return s.EndTime == nil
}

// SessionView is a Session plus its computed minutes, as exposed in snapshots.
type SessionView struct {
	Session
	Minutes int `json:"minutes"`
}

// JobSnapshot is an immutable projection of a job taken after an operation.
// It owns all of its slices and maps, so it is safe to serialize or hand to
// another goroutine.
type JobSnapshot struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Metadata    Metadata   `json:"metadata"`

	Technicians       []string      `json:"technicians"`
	ActiveTechnicians []string      `json:"active_technicians"`
	Sessions          []SessionView `json:"sessions"`
	Events            []Event       `json:"events"`

	TotalLaborMinutes int            `json:"total_labor_minutes"`
	LaborByTechnician map[string]int `json:"labor_by_technician"`

	// Version increases by one with every state-changing operation.
	Version int64 `json:"version"`
	// AsOf is the instant open sessions were measured against.
	AsOf time.Time `json:"as_of"`
}

// HasOpenSessions reports whether any technician is currently clocked in.
func (s JobSnapshot) HasOpenSessions() bool {
	return len(s.ActiveTechnicians) > 0
}

package storage

import (
	"time"

	"github.com/jdziat/service-jobs/pkg/core"
)

// jobRecord is the row holding a job's scalar state.
type jobRecord struct {
	ID                string        `gorm:"primaryKey;size:64"`
	Status            core.Status   `gorm:"index;size:32;not null"`
	CreatedAt         time.Time     `gorm:"index;not null"`
	StartTime         *time.Time
	CompletedAt       *time.Time
	Metadata          core.Metadata `gorm:"serializer:json"`
	Technicians       []string      `gorm:"serializer:json"`
	TotalLaborMinutes int
	Version           int64     `gorm:"not null"`
	AsOf              time.Time `gorm:"column:as_of"`
	UpdatedAt         time.Time
}

func (jobRecord) TableName() string { return "service_jobs" }

// sessionRecord is one work session. Position keeps the ledger order.
type sessionRecord struct {
	ID           uint       `gorm:"primaryKey;autoIncrement"`
	JobID        string     `gorm:"index:idx_sessions_job_position,priority:1;size:64;not null"`
	Position     int        `gorm:"index:idx_sessions_job_position,priority:2;not null"`
	TechnicianID string     `gorm:"size:128;not null"`
	StartTime    time.Time  `gorm:"not null"`
	EndTime      *time.Time
}

func (sessionRecord) TableName() string { return "job_sessions" }

// eventRecord is one audit event. Events are append-only.
type eventRecord struct {
	JobID        string         `gorm:"primaryKey;size:64"`
	Seq          int            `gorm:"primaryKey;autoIncrement:false"`
	Type         core.EventType `gorm:"size:32;not null"`
	Timestamp    time.Time      `gorm:"not null"`
	ActorID      string         `gorm:"size:128"`
	TechnicianID string         `gorm:"size:128"`
	Note         string         `gorm:"type:text"`
	FromStatus   core.Status    `gorm:"size:32"`
	ToStatus     core.Status    `gorm:"size:32"`
}

func (eventRecord) TableName() string { return "job_events" }

func toJobRecord(snap *core.JobSnapshot) jobRecord {
	return jobRecord{
		ID:                snap.ID,
		Status:            snap.Status,
		CreatedAt:         snap.CreatedAt,
		StartTime:         snap.StartTime,
		CompletedAt:       snap.CompletedAt,
		Metadata:          snap.Metadata,
		Technicians:       snap.Technicians,
		TotalLaborMinutes: snap.TotalLaborMinutes,
		Version:           snap.Version,
		AsOf:              snap.AsOf,
	}
}

func toSessionRecords(jobID string, sessions []core.SessionView) []sessionRecord {
	out := make([]sessionRecord, len(sessions))
	for i, s := range sessions {
		out[i] = sessionRecord{
			JobID:        jobID,
			Position:     i,
			TechnicianID: s.TechnicianID,
			StartTime:    s.StartTime,
			EndTime:      s.EndTime,
		}
	}
	return out
}

func toEventRecord(e core.Event) eventRecord {
	return eventRecord{
		JobID:        e.JobID,
		Seq:          e.Seq,
		Type:         e.Type,
		Timestamp:    e.Timestamp,
		ActorID:      e.ActorID,
		TechnicianID: e.TechnicianID,
		Note:         e.Note,
		FromStatus:   e.From,
		ToStatus:     e.To,
	}
}

func (r eventRecord) event() core.Event {
	return core.Event{
		Seq:          r.Seq,
		JobID:        r.JobID,
		Type:         r.Type,
		Timestamp:    r.Timestamp.UTC(),
		ActorID:      r.ActorID,
		TechnicianID: r.TechnicianID,
		Note:         r.Note,
		From:         r.FromStatus,
		To:           r.ToStatus,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

package core

import "time"

// EventType identifies what happened in a JobEvent.
type EventType string

const (
	EventStarted           EventType = "started"
	EventPaused            EventType = "paused"
	EventResumed           EventType = "resumed"
	EventTechnicianAdded   EventType = "technician_added"
	EventTechnicianRemoved EventType = "technician_removed"
	EventCompleted         EventType = "completed"
	EventSentToQC          EventType = "sent_to_qc"
	EventQCApproved        EventType = "qc_approved"
	EventQCRejected        EventType = "qc_rejected"
)

// Event is one immutable entry of a job's timeline.
// Seq is the 1-based append position and breaks timestamp ties.
type Event struct {
	Seq          int       `json:"seq"`
	JobID        string    `json:"job_id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ActorID      string    `json:"actor_id,omitempty"`
	TechnicianID string    `json:"technician_id,omitempty"`
	Note         string    `json:"note,omitempty"`
	From         Status    `json:"from"`
	To           Status    `json:"to"`
}

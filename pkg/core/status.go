package core

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Status represents the current state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusQCRequired Status = "qc_required"
	StatusCompleted  Status = "completed"
	StatusQCApproved Status = "qc_approved"
	StatusRejected   Status = "rejected" // Never a transition target; kept for legacy records
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusPaused,
	StatusQCRequired,
	StatusCompleted,
	StatusQCApproved,
	StatusRejected,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further work may be recorded against the job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusQCApproved
}

func (s Status) String() string {
	return string(s)
}

// legacyStatuses maps folded, separator-free spellings to statuses.
var legacyStatuses = map[string]Status{
	"pending":    StatusPending,
	"new":        StatusPending,
	"assigned":   StatusPending,
	"inprogress": StatusInProgress,
	"started":    StatusInProgress,
	"active":     StatusInProgress,
	"paused":     StatusPaused,
	"onhold":     StatusPaused,
	"qcrequired": StatusQCRequired,
	"qc":         StatusQCRequired,
	"pendingqc":  StatusQCRequired,
	"completed":  StatusCompleted,
	"complete":   StatusCompleted,
	"done":       StatusCompleted,
	"qcapproved": StatusQCApproved,
	"approved":   StatusQCApproved,
	"rejected":   StatusRejected,
	"qcrejected": StatusRejected,
}

// ParseStatus converts an external or legacy status string into a Status.
// Matching ignores case, surrounding space, and the separators ' ', '_' and '-',
// so "In Progress", "in_progress" and "IN-PROGRESS" all parse the same.
func ParseStatus(raw string) (Status, error) {
	key := cases.Fold().String(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	if s, ok := legacyStatuses[key]; ok {
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", raw)}
}

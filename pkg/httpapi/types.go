package httpapi

import (
	"time"

	"github.com/jdziat/service-jobs/pkg/aggregate"
	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/duration"
)

// CreateJobRequest is the body of POST /jobs.
type CreateJobRequest struct {
	Metadata core.Metadata `json:"metadata"`
}

// TechnicianRequest is the body of operations that name a technician.
type TechnicianRequest struct {
	TechnicianID string     `json:"technician_id" validate:"required,max=128"`
	At           *time.Time `json:"at,omitempty"`
	Note         string     `json:"note,omitempty" validate:"max=4096"`
}

// ActionRequest is the optional body of the job-wide operations.
type ActionRequest struct {
	At   *time.Time `json:"at,omitempty"`
	Note string     `json:"note,omitempty" validate:"max=4096"`
}

// JobResponse is a snapshot plus values derived for display.
type JobResponse struct {
	core.JobSnapshot
	ElapsedSeconds int    `json:"elapsed_seconds"`
	TotalLabor     string `json:"total_labor"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type TimelineResponse struct {
	JobID  string       `json:"job_id"`
	Events []core.Event `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func newJobResponse(snap core.JobSnapshot) JobResponse {
	return JobResponse{
		JobSnapshot:    snap,
		ElapsedSeconds: aggregate.Elapsed(snap),
		TotalLabor:     duration.FormatDuration(snap.TotalLaborMinutes),
	}
}

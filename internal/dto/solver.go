package dto

import (
	"time"

	"github.com/verve-studios/scheduler-api/internal/models"
)

// SolveRequest is the intake payload for POST /solver/run.
type SolveRequest struct {
	OrganizationID   int64  `json:"organization_id" binding:"required,gt=0"`
	TermID           int64  `json:"term_id" binding:"required,gt=0"`
	StudioLocationID *int64 `json:"studio_location_id" binding:"omitempty,gt=0"`
	SolveMode        string `json:"solve_mode" binding:"omitempty,oneof=PRIORITY_BLOCKS FULL"`
	ForceRunStageA   bool   `json:"force_run_stage_a"`
}

// SolveJobResponse reports a job's identity and lifecycle state.
type SolveJobResponse struct {
	JobID       string           `json:"job_id"`
	Status      models.JobStatus `json:"status"`
	Message     string           `json:"message"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// JobResultsResponse carries the decoded schedule of a completed job.
type JobResultsResponse struct {
	JobID       string               `json:"job_id"`
	Status      models.JobStatus     `json:"status"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Results     *models.SolverOutput `json:"results,omitempty"`
	DownloadURL *string              `json:"download_url,omitempty"`
}

// SolveMessage is the worker message published on the work stream.
type SolveMessage struct {
	JobID       string             `json:"jobId"`
	SolverInput models.SolverInput `json:"solverInput"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus captures the solve job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SolveJob is the persisted record of one scheduling run.
type SolveJob struct {
	JobID          string      `db:"job_id" json:"job_id"`
	OrganizationID int64       `db:"organization_id" json:"organization_id"`
	TermID         int64       `db:"term_id" json:"term_id"`
	Status         JobStatus   `db:"status" json:"status"`
	SubmittedAt    time.Time   `db:"submitted_at" json:"submitted_at"`
	LastUpdatedAt  time.Time   `db:"last_updated_at" json:"last_updated_at"`
	CompletedAt    *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage   *string     `db:"error_message" json:"error_message,omitempty"`
	ResultsURL     *string     `db:"results_url" json:"results_url,omitempty"`
	Results        *JobResults `db:"results" json:"results,omitempty"`
}

// JobResults stores the decoded solver output as JSONB.
type JobResults struct {
	SolverOutput
}

// Value marshals results to JSON for persistence.
func (r JobResults) Value() (driver.Value, error) {
	data, err := json.Marshal(r.SolverOutput)
	if err != nil {
		return nil, fmt.Errorf("marshal job results: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the results struct.
func (r *JobResults) Scan(value interface{}) error {
	if value == nil {
		*r = JobResults{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported results type %T", value)
	}
	if len(data) == 0 {
		*r = JobResults{}
		return nil
	}
	var out SolverOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal job results: %w", err)
	}
	r.SolverOutput = out
	return nil
}

// MarshalJSON flattens the embedded output.
func (r JobResults) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.SolverOutput)
}

// UnmarshalJSON fills the embedded output.
func (r *JobResults) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.SolverOutput)
}

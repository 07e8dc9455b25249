package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/verve-studios/scheduler-api/internal/models"
)

const solveJobColumns = `job_id, organization_id, term_id, status, submitted_at, last_updated_at, completed_at, error_message, results_url, results`

// SolveJobRepository persists solve job lifecycle records.
type SolveJobRepository struct {
	db *sqlx.DB
}

// NewSolveJobRepository constructs the repository.
func NewSolveJobRepository(db *sqlx.DB) *SolveJobRepository {
	return &SolveJobRepository{db: db}
}

// Begin opens a transaction for callers that pair the insert with a publish.
func (r *SolveJobRepository) Begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin solve job tx: %w", err)
	}
	return tx, nil
}

// Create inserts a new job row with generated defaults.
func (r *SolveJobRepository) Create(ctx context.Context, job *models.SolveJob) error {
	return createSolveJob(ctx, r.db, job)
}

// CreateTx inserts a new job row inside an existing transaction.
func (r *SolveJobRepository) CreateTx(ctx context.Context, tx sqlx.ExtContext, job *models.SolveJob) error {
	return createSolveJob(ctx, tx, job)
}

func createSolveJob(ctx context.Context, exec sqlx.ExtContext, job *models.SolveJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	now := time.Now().UTC()
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = now
	}
	if job.LastUpdatedAt.IsZero() {
		job.LastUpdatedAt = now
	}
	const query = `INSERT INTO solve_jobs (job_id, organization_id, term_id, status, submitted_at, last_updated_at, completed_at, error_message, results_url, results)
VALUES (:job_id, :organization_id, :term_id, :status, :submitted_at, :last_updated_at, :completed_at, :error_message, :results_url, :results)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, job); err != nil {
		return fmt.Errorf("create solve job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *SolveJobRepository) GetByID(ctx context.Context, jobID string) (*models.SolveJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM solve_jobs WHERE job_id = $1`, solveJobColumns)
	var job models.SolveJob
	if err := r.db.GetContext(ctx, &job, query, jobID); err != nil {
		return nil, fmt.Errorf("get solve job: %w", err)
	}
	return &job, nil
}

// EnsureProcessing moves a job to PROCESSING, inserting the row when the
// worker sees a message before (or without) the intake insert. Terminal rows
// are left untouched.
func (r *SolveJobRepository) EnsureProcessing(ctx context.Context, jobID string, organizationID, termID int64) error {
	now := time.Now().UTC()
	const query = `INSERT INTO solve_jobs (job_id, organization_id, term_id, status, submitted_at, last_updated_at)
VALUES ($1, $2, $3, 'PROCESSING', $4, $4)
ON CONFLICT (job_id) DO UPDATE SET status = 'PROCESSING', last_updated_at = $4
WHERE solve_jobs.status IN ('QUEUED', 'PROCESSING')`
	if _, err := r.db.ExecContext(ctx, query, jobID, organizationID, termID, now); err != nil {
		return fmt.Errorf("mark solve job processing: %w", err)
	}
	return nil
}

// UpdateSolveJobParams defines the mutable fields.
type UpdateSolveJobParams struct {
	Status       *models.JobStatus
	CompletedAt  *time.Time
	ErrorMessage *string
	ResultsURL   *string
	Results      *models.JobResults
}

// Update persists the provided changes for a job row.
func (r *SolveJobRepository) Update(ctx context.Context, jobID string, params UpdateSolveJobParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.CompletedAt != nil {
		set = append(set, fmt.Sprintf("completed_at = $%d", argPos))
		args = append(args, *params.CompletedAt)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.ResultsURL != nil {
		set = append(set, fmt.Sprintf("results_url = $%d", argPos))
		args = append(args, *params.ResultsURL)
		argPos++
	}
	if params.Results != nil {
		set = append(set, fmt.Sprintf("results = $%d", argPos))
		args = append(args, *params.Results)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	set = append(set, fmt.Sprintf("last_updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	query := fmt.Sprintf("UPDATE solve_jobs SET %s WHERE job_id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, jobID)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update solve job: %w", err)
	}
	return nil
}

// ListStaleProcessing fetches jobs stuck in PROCESSING past a cutoff (used
// for operator forensics after worker crashes).
func (r *SolveJobRepository) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.SolveJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM solve_jobs WHERE status = 'PROCESSING' AND last_updated_at < $1 ORDER BY last_updated_at ASC LIMIT $2`, solveJobColumns)
	var jobs []models.SolveJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list stale solve jobs: %w", err)
	}
	return jobs, nil
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/verve-studios/scheduler-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSolveJobRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSolveJobRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO solve_jobs")).
		WithArgs(sqlmock.AnyArg(), int64(1), int64(2), "QUEUED", sqlmock.AnyArg(), sqlmock.AnyArg(), nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.SolveJob{OrganizationID: 1, TermID: 2}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.JobID)
	require.Equal(t, models.JobStatusQueued, job.Status)

	rows := sqlmock.NewRows([]string{"job_id", "organization_id", "term_id", "status", "submitted_at", "last_updated_at", "completed_at", "error_message", "results_url", "results"}).
		AddRow(job.JobID, int64(1), int64(2), "QUEUED", time.Now(), time.Now(), nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT job_id, organization_id, term_id, status, submitted_at, last_updated_at, completed_at, error_message, results_url, results FROM solve_jobs WHERE job_id = $1")).
		WithArgs(job.JobID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Equal(t, job.JobID, fetched.JobID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSolveJobRepositoryCreateTxRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSolveJobRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO solve_jobs")).
		WithArgs(sqlmock.AnyArg(), int64(1), int64(2), "QUEUED", sqlmock.AnyArg(), sqlmock.AnyArg(), nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	tx, err := repo.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(context.Background(), tx, &models.SolveJob{OrganizationID: 1, TermID: 2}))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSolveJobRepositoryEnsureProcessing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSolveJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (job_id) DO UPDATE SET status = 'PROCESSING'")).
		WithArgs("job-1", int64(1), int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.EnsureProcessing(context.Background(), "job-1", 1, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSolveJobRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSolveJobRepository(db)

	now := time.Now()
	status := models.JobStatusCompleted
	resultsURL := "/solver/results/download/token"
	results := &models.JobResults{SolverOutput: models.SolverOutput{SolverStatus: "OPTIMAL"}}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE solve_jobs SET status = $1, completed_at = $2, results_url = $3, results = $4, last_updated_at = $5 WHERE job_id = $6")).
		WithArgs(status, now, resultsURL, sqlmock.AnyArg(), sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateSolveJobParams{
		Status:      &status,
		CompletedAt: &now,
		ResultsURL:  &resultsURL,
		Results:     results,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSolveJobRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSolveJobRepository(db)

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateSolveJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSolveJobRepositoryListStaleProcessing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSolveJobRepository(db)

	rows := sqlmock.NewRows([]string{"job_id", "organization_id", "term_id", "status", "submitted_at", "last_updated_at", "completed_at", "error_message", "results_url", "results"}).
		AddRow("job-1", int64(1), int64(2), "PROCESSING", time.Now().Add(-time.Hour), time.Now().Add(-time.Hour), nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'PROCESSING' AND last_updated_at < $1 ORDER BY last_updated_at ASC LIMIT $2")).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(rows)

	jobs, err := repo.ListStaleProcessing(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

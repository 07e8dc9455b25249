package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verve-studios/scheduler-api/internal/dto"
	"github.com/verve-studios/scheduler-api/internal/models"
	"github.com/verve-studios/scheduler-api/internal/repository"
)

type workerJobStore interface {
	GetByID(ctx context.Context, jobID string) (*models.SolveJob, error)
	EnsureProcessing(ctx context.Context, jobID string, organizationID, termID int64) error
	Update(ctx context.Context, jobID string, params repository.UpdateSolveJobParams) error
}

type timetableSolver interface {
	Solve(input models.SolverInput) (models.SolverOutput, error)
}

type resultsPersister interface {
	Persist(jobID string, out models.SolverOutput) (string, error)
}

// WorkerService runs one solve per delivered work message. Every message is
// acknowledged by the bus layer after this handler returns, so the terminal
// job write always lands before the ack.
type WorkerService struct {
	jobs    workerJobStore
	solver  timetableSolver
	results resultsPersister
	metrics *MetricsService
	logger  *zap.Logger
}

// NewWorkerService constructs the worker.
func NewWorkerService(jobs workerJobStore, solver timetableSolver, results resultsPersister, logger *zap.Logger) *WorkerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerService{jobs: jobs, solver: solver, results: results, logger: logger}
}

// SetMetrics attaches solve-run instrumentation. Safe to skip; a nil
// MetricsService disables observation.
func (w *WorkerService) SetMetrics(m *MetricsService) {
	w.metrics = m
}

// HandleMessage processes one work message. Malformed payloads are logged
// and dropped without touching any job row; duplicate deliveries of a
// terminal job are no-ops.
func (w *WorkerService) HandleMessage(ctx context.Context, payload []byte) {
	var msg dto.SolveMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		w.logger.Error("malformed work message, dropping", zap.Error(err))
		return
	}
	if msg.JobID == "" {
		w.logger.Error("work message missing job id, dropping")
		return
	}

	organizationID, termID := int64(0), int64(0)
	job, err := w.jobs.GetByID(ctx, msg.JobID)
	switch {
	case err == nil:
		if job.Status.Terminal() {
			w.logger.Info("job already terminal, skipping duplicate delivery",
				zap.String("job_id", msg.JobID),
				zap.String("status", string(job.Status)))
			return
		}
		organizationID, termID = job.OrganizationID, job.TermID
	case errors.Is(err, sql.ErrNoRows):
		// Intake row missing: the message outlived a lost insert. Initialize
		// the row so the run is still tracked.
		w.logger.Warn("work message for unknown job, initializing row", zap.String("job_id", msg.JobID))
	default:
		w.logger.Error("failed to load job, dropping message without a state change",
			zap.String("job_id", msg.JobID), zap.Error(err))
		return
	}

	if err := w.jobs.EnsureProcessing(ctx, msg.JobID, organizationID, termID); err != nil {
		w.logger.Error("failed to mark job processing", zap.String("job_id", msg.JobID), zap.Error(err))
		return
	}

	solveStart := time.Now()
	out, err := w.solver.Solve(msg.SolverInput)
	if err != nil {
		w.metrics.ObserveSolveRun("ERROR", 0, time.Since(solveStart))
		w.markFailed(ctx, msg.JobID, fmt.Sprintf("solve failed: %v", err))
		return
	}
	w.metrics.ObserveSolveRun(out.SolverStatus, out.PlacedCount, time.Since(solveStart))

	resultsURL, err := w.results.Persist(msg.JobID, out)
	if err != nil {
		w.markFailed(ctx, msg.JobID, fmt.Sprintf("persist results: %v", err))
		return
	}

	completed := models.JobStatusCompleted
	now := time.Now().UTC()
	results := &models.JobResults{SolverOutput: out}
	if err := w.jobs.Update(ctx, msg.JobID, repository.UpdateSolveJobParams{
		Status:      &completed,
		CompletedAt: &now,
		ResultsURL:  &resultsURL,
		Results:     results,
	}); err != nil {
		w.logger.Error("failed to mark job completed", zap.String("job_id", msg.JobID), zap.Error(err))
		return
	}

	w.logger.Info("solve job completed",
		zap.String("job_id", msg.JobID),
		zap.String("solver_status", out.SolverStatus),
		zap.Int("placed", out.PlacedCount),
		zap.Int("total_requests", out.TotalRequests))
}

func (w *WorkerService) markFailed(ctx context.Context, jobID, message string) {
	failed := models.JobStatusFailed
	now := time.Now().UTC()
	if err := w.jobs.Update(ctx, jobID, repository.UpdateSolveJobParams{
		Status:       &failed,
		CompletedAt:  &now,
		ErrorMessage: &message,
	}); err != nil {
		w.logger.Error("failed to mark job failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	w.logger.Warn("solve job failed", zap.String("job_id", jobID), zap.String("error", message))
}

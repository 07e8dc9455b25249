package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/verve-studios/scheduler-api/internal/dto"
	"github.com/verve-studios/scheduler-api/internal/models"
	appErrors "github.com/verve-studios/scheduler-api/pkg/errors"
)

type solveJobStore interface {
	Begin(ctx context.Context) (*sqlx.Tx, error)
	CreateTx(ctx context.Context, tx sqlx.ExtContext, job *models.SolveJob) error
	GetByID(ctx context.Context, jobID string) (*models.SolveJob, error)
}

type snapshotBuilder interface {
	BuildSnapshot(ctx context.Context, organizationID, termID int64, locationID *int64) (*models.SolverInput, error)
}

type busPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// SolveService coordinates solve job intake and status queries. The QUEUED
// insert and the work-message publish form one transaction: a job row never
// outlives a failed publish.
type SolveService struct {
	jobs      solveJobStore
	assembler snapshotBuilder
	publisher busPublisher
	logger    *zap.Logger
}

// NewSolveService constructs the coordinator.
func NewSolveService(jobs solveJobStore, assembler snapshotBuilder, publisher busPublisher, logger *zap.Logger) *SolveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolveService{
		jobs:      jobs,
		assembler: assembler,
		publisher: publisher,
		logger:    logger,
	}
}

// Submit validates the request scope, persists a QUEUED job, and publishes
// the work message. Publish failure rolls the insert back.
func (s *SolveService) Submit(ctx context.Context, req dto.SolveRequest) (*dto.SolveJobResponse, error) {
	snapshot, err := s.assembler.BuildSnapshot(ctx, req.OrganizationID, req.TermID, req.StudioLocationID)
	if err != nil {
		return nil, err
	}

	job := &models.SolveJob{
		OrganizationID: req.OrganizationID,
		TermID:         req.TermID,
		Status:         models.JobStatusQueued,
	}

	tx, err := s.jobs.Begin(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open submit transaction")
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := s.jobs.CreateTx(ctx, tx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create solve job")
	}

	payload, err := json.Marshal(dto.SolveMessage{JobID: job.JobID, SolverInput: *snapshot})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode work message")
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.logger.Error("work message publish failed, rolling back job insert",
			zap.String("job_id", job.JobID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPublishFailed.Code, appErrors.ErrPublishFailed.Status, appErrors.ErrPublishFailed.Message)
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit solve job")
	}
	tx = nil

	s.logger.Info("solve job submitted",
		zap.String("job_id", job.JobID),
		zap.Int64("organization_id", req.OrganizationID),
		zap.Int64("term_id", req.TermID),
		zap.Int("priority_requests", len(snapshot.PriorityRequests)))

	return &dto.SolveJobResponse{
		JobID:       job.JobID,
		Status:      job.Status,
		Message:     "solve job queued",
		SubmittedAt: job.SubmittedAt,
	}, nil
}

// GetStatus looks up a job's lifecycle state.
func (s *SolveService) GetStatus(ctx context.Context, jobID string) (*dto.SolveJobResponse, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &dto.SolveJobResponse{
		JobID:       job.JobID,
		Status:      job.Status,
		Message:     statusMessage(job),
		SubmittedAt: job.SubmittedAt,
	}, nil
}

// GetResults returns the decoded schedule of a completed job, with a signed
// download link when result files were stored.
func (s *SolveService) GetResults(ctx context.Context, jobID string) (*dto.JobResultsResponse, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("solve job %s is still %s", jobID, job.Status))
	}

	resp := &dto.JobResultsResponse{
		JobID:       job.JobID,
		Status:      job.Status,
		CompletedAt: job.CompletedAt,
	}
	if job.Results != nil {
		out := job.Results.SolverOutput
		resp.Results = &out
	}
	if job.ResultsURL != nil && *job.ResultsURL != "" {
		resp.DownloadURL = job.ResultsURL
	}
	return resp, nil
}

func (s *SolveService) loadJob(ctx context.Context, jobID string) (*models.SolveJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("solve job %s not found", jobID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load solve job")
	}
	return job, nil
}

func statusMessage(job *models.SolveJob) string {
	switch job.Status {
	case models.JobStatusQueued:
		return "solve job queued"
	case models.JobStatusProcessing:
		return "solve in progress"
	case models.JobStatusCompleted:
		if job.Results != nil {
			return fmt.Sprintf("solve completed: %d of %d requests placed",
				job.Results.PlacedCount, job.Results.TotalRequests)
		}
		return "solve completed"
	case models.JobStatusFailed:
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			return *job.ErrorMessage
		}
		return "solve failed"
	default:
		return string(job.Status)
	}
}

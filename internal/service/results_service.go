package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verve-studios/scheduler-api/internal/models"
	appErrors "github.com/verve-studios/scheduler-api/pkg/errors"
	"github.com/verve-studios/scheduler-api/pkg/export"
	"github.com/verve-studios/scheduler-api/pkg/storage"
)

type resultJobReader interface {
	GetByID(ctx context.Context, jobID string) (*models.SolveJob, error)
}

// ResultsService renders solver output into downloadable artifacts (JSON,
// CSV, and PDF) and resolves signed download tokens back to files.
type ResultsService struct {
	store   *storage.ResultStore
	signer  *storage.SignedURLSigner
	jobs    resultJobReader
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	baseURL string
	logger  *zap.Logger
}

// ResultDownload aggregates resolved download data.
type ResultDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// NewResultsService constructs the results service. baseURL prefixes the
// returned download links (e.g. "/api/v1").
func NewResultsService(store *storage.ResultStore, signer *storage.SignedURLSigner, jobs resultJobReader, baseURL string, logger *zap.Logger) *ResultsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsService{
		store:   store,
		signer:  signer,
		jobs:    jobs,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Persist stores the decoded schedule under the job's directory and returns
// a signed download URL for the CSV artifact.
func (s *ResultsService) Persist(jobID string, out models.SolverOutput) (string, error) {
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schedule json: %w", err)
	}
	if _, err := s.store.Save(path.Join(jobID, "schedule.json"), raw); err != nil {
		return "", err
	}

	rows := scheduleRows(out)
	csvBytes, err := s.csv.Render(rows)
	if err != nil {
		return "", err
	}
	csvPath := path.Join(jobID, "schedule.csv")
	if _, err := s.store.Save(csvPath, csvBytes); err != nil {
		return "", err
	}

	pdfBytes, err := s.pdf.Render(rows, "Weekly Priority Blocks")
	if err != nil {
		return "", err
	}
	if _, err := s.store.Save(path.Join(jobID, "schedule.pdf"), pdfBytes); err != nil {
		return "", err
	}

	token, _, err := s.signer.Generate(jobID, storage.ArtifactCSV)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}
	return s.baseURL + "/solver/results/download/" + token, nil
}

// ResolveDownload validates a token and opens the stored result file.
func (s *ResultsService) ResolveDownload(ctx context.Context, token string) (*ResultDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load solve job")
	}
	if job.ResultsURL == nil || !strings.HasSuffix(*job.ResultsURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.JobStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "results not ready")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open result file")
	}
	return &ResultDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired result files periodically.
func (s *ResultsService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.store.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Sugar().Warnw("result cleanup failed", "error", err)
					continue
				}
				if len(deleted) > 0 {
					s.logger.Sugar().Infow("expired result files removed", "count", len(deleted))
				}
			}
		}
	}()
}

// scheduleRows orders the placed blocks by day and start time for the
// tabular exports.
func scheduleRows(out models.SolverOutput) []export.ScheduleRow {
	blocks := append([]models.PlacedBlock(nil), out.PlacedBlocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].StartSlot < blocks[j].StartSlot })

	rows := make([]export.ScheduleRow, 0, len(blocks))
	for _, block := range blocks {
		location := ""
		if block.LocationName != nil {
			location = *block.LocationName
		}
		rows = append(rows, export.ScheduleRow{
			Day:        block.DayOfWeek.String(),
			Start:      block.StartTime.String(),
			End:        block.EndTime.String(),
			Instructor: block.InstructorName,
			Room:       block.RoomName,
			Location:   location,
		})
	}
	return rows
}

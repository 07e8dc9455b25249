package handler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/verve-studios/scheduler-api/internal/dto"
	"github.com/verve-studios/scheduler-api/internal/service"
	appErrors "github.com/verve-studios/scheduler-api/pkg/errors"
	"github.com/verve-studios/scheduler-api/pkg/response"
)

type solveCoordinator interface {
	Submit(ctx context.Context, req dto.SolveRequest) (*dto.SolveJobResponse, error)
	GetStatus(ctx context.Context, jobID string) (*dto.SolveJobResponse, error)
	GetResults(ctx context.Context, jobID string) (*dto.JobResultsResponse, error)
}

// SolverHandler exposes solve job intake, status, and result endpoints.
type SolverHandler struct {
	solve   solveCoordinator
	results *service.ResultsService
}

// NewSolverHandler constructs handler.
func NewSolverHandler(solve solveCoordinator, results *service.ResultsService) *SolverHandler {
	return &SolverHandler{solve: solve, results: results}
}

// Run godoc
// @Summary Submit a scheduling run
// @Tags Solver
// @Accept json
// @Produce json
// @Param request body dto.SolveRequest true "Solve request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /solver/run [post]
func (h *SolverHandler) Run(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid solve request"))
		return
	}
	resp, err := h.solve.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// Status godoc
// @Summary Solve job status
// @Tags Solver
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /solver/status/{jobId} [get]
func (h *SolverHandler) Status(c *gin.Context) {
	resp, err := h.solve.GetStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// Results godoc
// @Summary Decoded schedule of a completed job
// @Tags Solver
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /solver/results/{jobId} [get]
func (h *SolverHandler) Results(c *gin.Context) {
	resp, err := h.solve.GetResults(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// Download godoc
// @Summary Download a result artifact by signed token
// @Tags Solver
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /solver/results/download/{token} [get]
func (h *SolverHandler) Download(c *gin.Context) {
	download, err := h.results.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat result file"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(download.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, nil)
}

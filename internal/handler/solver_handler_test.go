package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verve-studios/scheduler-api/internal/dto"
	"github.com/verve-studios/scheduler-api/internal/models"
	appErrors "github.com/verve-studios/scheduler-api/pkg/errors"
)

type solveCoordinatorMock struct {
	submitResp  *dto.SolveJobResponse
	submitErr   error
	statusResp  *dto.SolveJobResponse
	statusErr   error
	resultsResp *dto.JobResultsResponse
	resultsErr  error
}

func (m *solveCoordinatorMock) Submit(ctx context.Context, req dto.SolveRequest) (*dto.SolveJobResponse, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.submitResp, nil
}

func (m *solveCoordinatorMock) GetStatus(ctx context.Context, jobID string) (*dto.SolveJobResponse, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.statusResp, nil
}

func (m *solveCoordinatorMock) GetResults(ctx context.Context, jobID string) (*dto.JobResultsResponse, error) {
	if m.resultsErr != nil {
		return nil, m.resultsErr
	}
	return m.resultsResp, nil
}

func TestSolverHandlerRunAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &solveCoordinatorMock{submitResp: &dto.SolveJobResponse{
		JobID:       "job-1",
		Status:      models.JobStatusQueued,
		Message:     "solve job queued",
		SubmittedAt: time.Now(),
	}}
	handler := NewSolverHandler(mock, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.SolveRequest{OrganizationID: 1, TermID: 2})
	req, _ := http.NewRequest(http.MethodPost, "/solver/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Run(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	var envelope struct {
		Data dto.SolveJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data.JobID)
	assert.Equal(t, models.JobStatusQueued, envelope.Data.Status)
}

func TestSolverHandlerRunInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSolverHandler(&solveCoordinatorMock{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/solver/run", bytes.NewReader([]byte(`{"term_id":2}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Run(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSolverHandlerRunPublishFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &solveCoordinatorMock{submitErr: appErrors.ErrPublishFailed}
	handler := NewSolverHandler(mock, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.SolveRequest{OrganizationID: 1, TermID: 2})
	req, _ := http.NewRequest(http.MethodPost, "/solver/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Run(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSolverHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &solveCoordinatorMock{statusErr: appErrors.ErrNotFound}
	handler := NewSolverHandler(mock, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/solver/status/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "jobId", Value: "missing"}}

	handler.Status(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSolverHandlerStatusOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &solveCoordinatorMock{statusResp: &dto.SolveJobResponse{
		JobID:   "job-1",
		Status:  models.JobStatusCompleted,
		Message: "solve completed: 3 of 4 requests placed",
	}}
	handler := NewSolverHandler(mock, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/solver/status/job-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "jobId", Value: "job-1"}}

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.SolveJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.JobStatusCompleted, envelope.Data.Status)
}

func TestSolverHandlerResultsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &solveCoordinatorMock{resultsResp: &dto.JobResultsResponse{
		JobID:   "job-1",
		Status:  models.JobStatusCompleted,
		Results: &models.SolverOutput{SolverStatus: "OPTIMAL", PlacedCount: 1, TotalRequests: 1},
	}}
	handler := NewSolverHandler(mock, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/solver/results/job-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "jobId", Value: "job-1"}}

	handler.Results(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.JobResultsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Results)
	assert.Equal(t, "OPTIMAL", envelope.Data.Results.SolverStatus)
}

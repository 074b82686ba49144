package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type timetableSolverMock struct {
	captured   dto.GenerateTimetableRequest
	generated  *dto.GenerateTimetableResponse
	violations []dto.ViolationDTO
	run        *models.SolveRun
	err        error
	deleted    string
}

func (m *timetableSolverMock) Generate(_ context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	if m.generated != nil {
		return m.generated, nil
	}
	return &dto.GenerateTimetableResponse{ProposalID: "proposal-1", Status: service.ProposalStatusCompleted}, nil
}

func (m *timetableSolverMock) GetProposal(_ context.Context, id string) (*dto.GenerateTimetableResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateTimetableResponse{ProposalID: id, Status: service.ProposalStatusCompleted}, nil
}

func (m *timetableSolverMock) Violations(_ context.Context, _ string) ([]dto.ViolationDTO, error) {
	return m.violations, m.err
}

func (m *timetableSolverMock) Save(_ context.Context, _ string, req dto.SaveTimetableRequest) (*models.SolveRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	run := m.run
	if run == nil {
		run = &models.SolveRun{ID: "run-1", Label: req.Label, Version: 1, Status: models.SolveRunStatusDraft}
	}
	return run, nil
}

func (m *timetableSolverMock) ListRuns(_ context.Context, _ dto.SolveRunQuery) ([]models.SolveRun, *models.Pagination, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.SolveRun{{ID: "run-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *timetableSolverMock) GetRun(_ context.Context, id string) (*models.SolveRun, []models.SolveRunSlot, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return &models.SolveRun{ID: id}, []models.SolveRunSlot{{SolveRunID: id, ActivityID: "a1"}}, nil
}

func (m *timetableSolverMock) PublishRun(_ context.Context, _ string) error { return m.err }

func (m *timetableSolverMock) DeleteRun(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

type exportRendererMock struct {
	result  *service.ExportResult
	relPath string
	file    string
	err     error
}

func (m *exportRendererMock) Generate(_ context.Context, _ string, format service.ExportFormat) (*service.ExportResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &service.ExportResult{Format: format, Token: "tok", URL: "/api/v1/export/tok"}, nil
}

func (m *exportRendererMock) RenderText(_ context.Context, _ string) (string, error) {
	return "timetable", m.err
}

func (m *exportRendererMock) ParseToken(_ string, _ bool) (string, string, time.Time, error) {
	if m.err != nil {
		return "", "", time.Time{}, m.err
	}
	return "proposal-1", m.relPath, time.Now().Add(time.Hour), nil
}

func (m *exportRendererMock) Open(_ string) (*os.File, error) {
	if m.file == "" {
		return nil, os.ErrNotExist
	}
	return os.Open(m.file)
}

func validTimetablePayload() []byte {
	return []byte(`{
		"label": "autumn",
		"days": 5,
		"periodsPerDay": 8,
		"rooms": [{"id": "r1", "name": "Room 101"}],
		"activities": [{"id": "a1", "name": "Math 10A", "totalDuration": 1}]
	}`)
}

func newTimetableTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestTimetableGenerateSuccess(t *testing.T) {
	mockSvc := &timetableSolverMock{}
	handler := &TimetableHandler{solver: mockSvc}
	c, w := newTimetableTestContext(t, http.MethodPost, "/timetables/generate", validTimetablePayload())

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "autumn", mockSvc.captured.Label)
	require.Equal(t, 5, mockSvc.captured.Days)
	require.Len(t, mockSvc.captured.Activities, 1)
}

func TestTimetableGenerateAsyncAccepted(t *testing.T) {
	mockSvc := &timetableSolverMock{
		generated: &dto.GenerateTimetableResponse{ProposalID: "proposal-1", Status: service.ProposalStatusPending},
	}
	handler := &TimetableHandler{solver: mockSvc}
	c, w := newTimetableTestContext(t, http.MethodPost, "/timetables/generate", validTimetablePayload())

	handler.Generate(c)

	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestTimetableGenerateMalformedJSON(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}}
	c, w := newTimetableTestContext(t, http.MethodPost, "/timetables/generate", []byte(`{"label":`))

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableGenerateServiceError(t *testing.T) {
	mockSvc := &timetableSolverMock{err: appErrors.Clone(appErrors.ErrValidation, "bad input")}
	handler := &TimetableHandler{solver: mockSvc}
	c, w := newTimetableTestContext(t, http.MethodPost, "/timetables/generate", validTimetablePayload())

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableGetProposal(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}}
	c, w := newTimetableTestContext(t, http.MethodGet, "/timetables/proposal-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.GetProposal(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data dto.GenerateTimetableResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "proposal-1", envelope.Data.ProposalID)
}

func TestTimetableViolations(t *testing.T) {
	mockSvc := &timetableSolverMock{violations: []dto.ViolationDTO{{Type: "TEACHER_NOT_AVAILABLE", Count: 2}}}
	handler := &TimetableHandler{solver: mockSvc}
	c, w := newTimetableTestContext(t, http.MethodGet, "/timetables/proposal-1/violations", nil)
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.Violations(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "TEACHER_NOT_AVAILABLE")
}

func TestTimetableSaveCreated(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}}
	c, w := newTimetableTestContext(t, http.MethodPost, "/timetables/proposal-1/save", []byte(`{"label":"final"}`))
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.Save(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "final")
}

func TestTimetableSaveInfeasible(t *testing.T) {
	mockSvc := &timetableSolverMock{err: appErrors.Clone(appErrors.ErrInfeasible, "unplaced activities")}
	handler := &TimetableHandler{solver: mockSvc}
	c, w := newTimetableTestContext(t, http.MethodPost, "/timetables/proposal-1/save", nil)
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.Save(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTimetableExportReturnsSignedURL(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}, exports: &exportRendererMock{}}
	c, w := newTimetableTestContext(t, http.MethodGet, "/timetables/proposal-1/export?format=pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "/api/v1/export/tok")
}

func TestTimetableExportTextInline(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}, exports: &exportRendererMock{}}
	c, w := newTimetableTestContext(t, http.MethodGet, "/timetables/proposal-1/export?format=text", nil)
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"content":"timetable"`)
}

func TestTimetableExportRejectsUnknownFormat(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}, exports: &exportRendererMock{}}
	c, w := newTimetableTestContext(t, http.MethodGet, "/timetables/proposal-1/export?format=docx", nil)
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableExportDisabled(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}}
	c, w := newTimetableTestContext(t, http.MethodGet, "/timetables/proposal-1/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "proposal-1"}}

	handler.Export(c)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestTimetableDownload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timetable_prop_20260101.csv")
	require.NoError(t, os.WriteFile(path, []byte("Section,Entity\n"), 0o644))

	handler := &TimetableHandler{
		solver:  &timetableSolverMock{},
		exports: &exportRendererMock{relPath: "timetable_prop_20260101.csv", file: path},
	}
	c, w := newTimetableTestContext(t, http.MethodGet, "/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "timetable_prop_20260101.csv")
	require.Contains(t, w.Body.String(), "Section,Entity")
}

func TestTimetableDownloadInvalidToken(t *testing.T) {
	handler := &TimetableHandler{
		solver:  &timetableSolverMock{},
		exports: &exportRendererMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "bad token")},
	}
	c, w := newTimetableTestContext(t, http.MethodGet, "/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTimetableListRuns(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}}
	c, w := newTimetableTestContext(t, http.MethodGet, "/runs?status=DRAFT&page=1", nil)

	handler.ListRuns(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "run-1")
	require.Contains(t, w.Body.String(), "pagination")
}

func TestTimetableGetRun(t *testing.T) {
	handler := &TimetableHandler{solver: &timetableSolverMock{}}
	c, w := newTimetableTestContext(t, http.MethodGet, "/runs/run-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.GetRun(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "slots")
}

func TestTimetablePublishRunConflict(t *testing.T) {
	mockSvc := &timetableSolverMock{err: appErrors.Clone(appErrors.ErrConflict, "only draft runs can be published")}
	handler := &TimetableHandler{solver: mockSvc}
	c, w := newTimetableTestContext(t, http.MethodPost, "/runs/run-1/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.PublishRun(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTimetableDeleteRun(t *testing.T) {
	mockSvc := &timetableSolverMock{}
	handler := &TimetableHandler{solver: mockSvc}
	c, w := newTimetableTestContext(t, http.MethodDelete, "/runs/run-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.DeleteRun(c)
	// CreateTestContext never finalizes a bodyless response; flush the status
	// the way the engine would at the end of the handler chain.
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "run-1", mockSvc.deleted)
}

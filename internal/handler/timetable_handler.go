package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

const maxActivities = 2048

type timetableSolver interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	GetProposal(ctx context.Context, id string) (*dto.GenerateTimetableResponse, error)
	Violations(ctx context.Context, id string) ([]dto.ViolationDTO, error)
	Save(ctx context.Context, id string, req dto.SaveTimetableRequest) (*models.SolveRun, error)
	ListRuns(ctx context.Context, query dto.SolveRunQuery) ([]models.SolveRun, *models.Pagination, error)
	GetRun(ctx context.Context, id string) (*models.SolveRun, []models.SolveRunSlot, error)
	PublishRun(ctx context.Context, id string) error
	DeleteRun(ctx context.Context, id string) error
}

type timetableExportRenderer interface {
	Generate(ctx context.Context, proposalID string, format service.ExportFormat) (*service.ExportResult, error)
	RenderText(ctx context.Context, proposalID string) (string, error)
	ParseToken(token string, allowExpired bool) (proposalID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
}

// TimetableHandler exposes solver and export endpoints.
type TimetableHandler struct {
	solver  timetableSolver
	exports timetableExportRenderer
}

// NewTimetableHandler constructs the handler. The export service may be nil
// when file storage is disabled.
func NewTimetableHandler(solver *service.SolverService, exports *service.ExportService) *TimetableHandler {
	h := &TimetableHandler{solver: solver}
	if exports != nil {
		h.exports = exports
	}
	return h
}

// Generate godoc
// @Summary Generate a timetable proposal
// @Description Solves the submitted problem inline, or enqueues it when async=true and returns a PENDING proposal.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if len(req.Activities) > maxActivities {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "activities exceed supported limit"))
		return
	}
	result, err := h.solver.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Status == service.ProposalStatusPending {
		status = http.StatusAccepted
	}
	response.JSON(c, status, result, nil)
}

// GetProposal godoc
// @Summary Get the state of a timetable proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) GetProposal(c *gin.Context) {
	result, err := h.solver.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Violations godoc
// @Summary List unsatisfied constraints for a completed proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/violations [get]
func (h *TimetableHandler) Violations(c *gin.Context) {
	violations, err := h.solver.Violations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, violations, nil)
}

// Save godoc
// @Summary Persist a completed proposal as a versioned run
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.SaveTimetableRequest false "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/{id}/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
			return
		}
	}
	run, err := h.solver.Save(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// Export godoc
// @Summary Render a completed proposal as a downloadable file
// @Description format may be csv (default), pdf, or text. csv and pdf return a signed download URL; text is returned inline.
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Param format query string false "Export format" Enums(csv, pdf, text)
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage is disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if format == service.ExportFormatText {
		text, renderErr := h.exports.RenderText(c.Request.Context(), c.Param("id"))
		if renderErr != nil {
			response.Error(c, renderErr)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"format": string(format), "content": text}, nil)
		return
	}
	result, err := h.exports.Generate(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a previously exported timetable file
// @Tags Timetables
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /export/{token} [get]
func (h *TimetableHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage is disabled"))
		return
	}
	_, relPath, _, err := h.exports.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid or expired download token"))
		return
	}
	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file"))
		return
	}
	filename := filepath.Base(relPath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, exportContentType(filename), payload)
}

// ListRuns godoc
// @Summary List persisted timetable runs
// @Tags Runs
// @Produce json
// @Param status query string false "Filter by status" Enums(DRAFT, PUBLISHED, ARCHIVED)
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /runs [get]
func (h *TimetableHandler) ListRuns(c *gin.Context) {
	var query dto.SolveRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run query"))
		return
	}
	runs, pagination, err := h.solver.ListRuns(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// GetRun godoc
// @Summary Get one persisted run with its slots
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *TimetableHandler) GetRun(c *gin.Context) {
	run, slots, err := h.solver.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"run": run, "slots": slots}, nil)
}

// PublishRun godoc
// @Summary Publish a draft run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /runs/{id}/publish [post]
func (h *TimetableHandler) PublishRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.solver.PublishRun(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id, "status": models.SolveRunStatusPublished}, nil)
}

// DeleteRun godoc
// @Summary Delete a draft run
// @Tags Runs
// @Param id path string true "Run ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /runs/{id} [delete]
func (h *TimetableHandler) DeleteRun(c *gin.Context) {
	if err := h.solver.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func exportContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

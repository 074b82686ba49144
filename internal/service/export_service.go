package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/engine"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/export"
	"github.com/noah-isme/timetable-engine/pkg/storage"
)

// ExportFormat enumerates supported render targets.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatText ExportFormat = "text"
)

type timetableExporter interface {
	ExportView(ctx context.Context, proposalID string) (*engine.ScheduleExport, string, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type renderCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	CacheTTL  time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ExportFormat
	ContentType  string
	ExpiresAt    time.Time
}

// ExportService renders timetable proposals into downloadable files.
type ExportService struct {
	solver  timetableExporter
	storage fileStorage
	cache   renderCache
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. The cache may be nil.
func NewExportService(solver timetableExporter, files fileStorage, cache renderCache, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		solver:  solver,
		storage: files,
		cache:   cache,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// RenderText returns the plain-text rendering of a proposal, cached when possible.
func (s *ExportService) RenderText(ctx context.Context, proposalID string) (string, error) {
	cacheKey := fmt.Sprintf("export:text:%s", proposalID)
	if s.cache != nil {
		var cached string
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	view, _, err := s.solver.ExportView(ctx, proposalID)
	if err != nil {
		return "", err
	}
	text := engine.RenderText(view)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, text, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache rendered timetable", zap.String("proposal_id", proposalID), zap.Error(err))
		}
	}
	return text, nil
}

// Generate renders the proposal in the requested format and stores the file.
func (s *ExportService) Generate(ctx context.Context, proposalID string, format ExportFormat) (*ExportResult, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage is disabled")
	}

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case ExportFormatText:
		text, renderErr := s.RenderText(ctx, proposalID)
		if renderErr != nil {
			return nil, renderErr
		}
		payload = []byte(text)
		contentType = "text/plain; charset=utf-8"
	case ExportFormatCSV, ExportFormatPDF:
		view, label, viewErr := s.solver.ExportView(ctx, proposalID)
		if viewErr != nil {
			return nil, viewErr
		}
		dataset := flattenSchedule(view)
		if format == ExportFormatCSV {
			payload, err = s.csv.Render(dataset)
			contentType = "text/csv"
		} else {
			title := label
			if title == "" {
				title = "Timetable"
			}
			payload, err = s.pdf.Render(dataset, title)
			contentType = "application/pdf"
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	filename := buildExportFilename(proposalID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(proposalID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       format,
		ContentType:  contentType,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (proposalID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// ParseExportFormat normalises a format query value.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return ExportFormatCSV, nil
	case "pdf":
		return ExportFormatPDF, nil
	case "text", "txt":
		return ExportFormatText, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

func buildExportFilename(proposalID string, format ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	ext := string(format)
	if format == ExportFormatText {
		ext = "txt"
	}
	return fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(proposalID), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

var exportHeaders = []string{"Section", "Entity", "Day", "Hours", "Activity", "Subject", "Teachers", "Student Sets", "Room"}

// flattenSchedule turns the bucketed export into deterministic tabular rows.
func flattenSchedule(view *engine.ScheduleExport) export.Dataset {
	rows := make([]map[string]string, 0)
	rows = append(rows, sectionRows("Teachers", view.Teachers)...)
	rows = append(rows, sectionRows("Student Sets", view.StudentSets)...)
	rows = append(rows, sectionRows("Rooms", view.Rooms)...)
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func sectionRows(section string, buckets map[string]map[int][]engine.ScheduleEntry) []map[string]string {
	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows []map[string]string
	for _, id := range ids {
		days := buckets[id]
		dayKeys := make([]int, 0, len(days))
		for day := range days {
			dayKeys = append(dayKeys, day)
		}
		sort.Ints(dayKeys)
		for _, day := range dayKeys {
			for _, entry := range days[day] {
				rows = append(rows, map[string]string{
					"Section":      section,
					"Entity":       id,
					"Day":          engine.DayName(day),
					"Hours":        fmt.Sprintf("%d-%d", entry.StartHour, entry.EndHour),
					"Activity":     entry.ActivityName,
					"Subject":      entry.SubjectName,
					"Teachers":     strings.Join(entry.TeacherNames, ", "),
					"Student Sets": strings.Join(entry.StudentSetNames, ", "),
					"Room":         entry.RoomName,
				})
			}
		}
	}
	return rows
}

package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/engine"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/storage"
)

type stubExporter struct {
	view  *engine.ScheduleExport
	label string
	err   error
	calls int
}

func (s *stubExporter) ExportView(_ context.Context, _ string) (*engine.ScheduleExport, string, error) {
	s.calls++
	if s.err != nil {
		return nil, "", s.err
	}
	return s.view, s.label, nil
}

type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{values: make(map[string][]byte)} }

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func exportViewFixture() *engine.ScheduleExport {
	entry := engine.ScheduleEntry{
		ActivityID:      "a1",
		ActivityName:    "Math 10A",
		SubjectName:     "Mathematics",
		Day:             0,
		StartHour:       1,
		EndHour:         2,
		RoomID:          "r1",
		RoomName:        "Room 101",
		TeacherNames:    []string{"Ms. Garnet"},
		StudentSetNames: []string{"10A"},
	}
	return &engine.ScheduleExport{
		Teachers:    map[string]map[int][]engine.ScheduleEntry{"t1": {0: {entry}}},
		StudentSets: map[string]map[int][]engine.ScheduleEntry{"g1": {0: {entry}}},
		Rooms:       map[string]map[int][]engine.ScheduleEntry{"r1": {0: {entry}}},
	}
}

func newExportFixture(t *testing.T, cache renderCache) (*ExportService, *stubExporter) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	exporter := &stubExporter{view: exportViewFixture(), label: "autumn"}

	svc := NewExportService(exporter, files, cache, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil)
	return svc, exporter
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, _ := newExportFixture(t, nil)

	result, err := svc.Generate(context.Background(), "prop-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, result.Format)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "Section,Entity,Day,Hours,Activity")
	assert.Contains(t, text, "Teachers,t1,Monday,1-2,Math 10A")
	assert.Contains(t, text, "Rooms,r1,")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, _ := newExportFixture(t, nil)

	result, err := svc.Generate(context.Background(), "prop-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	header := make([]byte, 4)
	_, err = file.Read(header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportServiceRenderTextUsesCache(t *testing.T) {
	cache := newMemoryCache()
	svc, exporter := newExportFixture(t, cache)

	first, err := svc.RenderText(context.Background(), "prop-1")
	require.NoError(t, err)
	assert.Contains(t, first, "Teachers")
	assert.Contains(t, first, "Monday")
	assert.Equal(t, 1, exporter.calls)

	second, err := svc.RenderText(context.Background(), "prop-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// second call served from cache
	assert.Equal(t, 1, exporter.calls)
}

func TestExportServiceGenerateRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture(t, nil)
	_, err := svc.Generate(context.Background(), "prop-1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServicePropagatesSolverError(t *testing.T) {
	svc, exporter := newExportFixture(t, nil)
	exporter.err = appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")

	_, err := svc.Generate(context.Background(), "prop-1", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, format)

	format, err = ParseExportFormat("TXT")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatText, format)

	_, err = ParseExportFormat("docx")
	require.Error(t, err)
}

func TestExportServiceTokenRoundTrip(t *testing.T) {
	svc, _ := newExportFixture(t, nil)

	result, err := svc.Generate(context.Background(), "prop-1", ExportFormatText)
	require.NoError(t, err)

	proposalID, relPath, expiresAt, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "prop-1", proposalID)
	assert.Equal(t, result.RelativePath, relPath)
	assert.WithinDuration(t, result.ExpiresAt, expiresAt, time.Second)
}

package dashboard

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/sprint"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

func testServer(t *testing.T) (*Server, *paths.Paths) {
	t.Helper()
	root := t.TempDir()
	p := paths.New(root)
	cfg := config.NewDefaults()
	cfg.Project.Name = "demo"
	store := state.NewStoreAt(p.StateFile())
	bus := NewBus()
	s := NewServer(cfg, p, store, bus, log.New(os.Stderr), "test-version")
	return s, p
}

func TestHandleVersion(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test-version", body["version"])
}

func TestHandleStatusWithNoStateYetDefaultsFresh(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "", body["current_phase"])
}

func TestHandleStoriesAndEpic(t *testing.T) {
	s, p := testServer(t)
	require.NoError(t, os.MkdirAll(p.ImplementationArtifactsDir(), 0o755))
	ss := &sprint.SprintStatus{
		Project: "demo",
		Entries: []sprint.Entry{
			{Key: "1-1-first", Value: "done", Type: sprint.EntryEpicStory},
			{Key: "1-2-second", Value: "backlog", Type: sprint.EntryEpicStory},
		},
		EpicMeta: map[string]string{"epic-1": "in-progress"},
	}
	require.NoError(t, sprint.WriteAtomic(p.SprintStatusFile(), ss, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []sprint.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/epics/1", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var epicBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &epicBody))
	assert.Equal(t, "in-progress", epicBody["status"])
}

func TestHandleReportContentRejectsEscape(t *testing.T) {
	s, p := testServer(t)
	require.NoError(t, os.MkdirAll(p.ProjectRoot, 0o755))

	req := httptest.NewRequest(http.MethodGet, "/api/report/content?path=../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReportContentServesContainedFile(t *testing.T) {
	s, p := testServer(t)
	require.NoError(t, os.MkdirAll(p.ProjectRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.ProjectRoot, "report.txt"), []byte("hello report"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/api/report/content?path=report.txt", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello report", rec.Body.String())
}

func TestConfigGetAndPutRoundTrip(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config/value?path=project.name", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := json.Marshal(map[string]any{"value": "renamed"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPut, "/api/config/value?path=project.name", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "renamed", s.Config.Project.Name)
}

func TestConfigGetRejectsDangerousField(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/config/value?path=notify.webhook_url", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConfigSchemaListsClassifications(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/config/schema", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []configSchemaEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.NotEmpty(t, entries)
}

func TestConfigExportRedactsDangerousFields(t *testing.T) {
	s, _ := testServer(t)
	s.Config.Notify.WebhookURL = "https://secret.example.com/hook"

	req := httptest.NewRequest(http.MethodGet, "/api/config/export?scope=merged", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret.example.com")
	assert.Contains(t, rec.Body.String(), "REDACTED")
}

func TestConfigImportPreviewRejectsInvalidConfig(t *testing.T) {
	s, _ := testServer(t)
	payload := []byte("project:\n  name: \"\"\n")

	req := httptest.NewRequest(http.MethodPost, "/api/config/import/preview", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var preview importPreview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.False(t, preview.Valid)
	assert.NotEmpty(t, preview.Errors)
}

func TestConfigImportRejectsOversizedPayload(t *testing.T) {
	s, _ := testServer(t)
	s.Config.Dashboard.MaxImportBytes = 10

	req := httptest.NewRequest(http.MethodPost, "/api/config/import/preview", bytes.NewReader(make([]byte, 100)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePlaywrightStatusReturnsOK(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/playwright/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	// Whether or not npx/playwright is actually installed in the test
	// environment, the endpoint always returns 200 with an installed flag.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListenWithAutoPortFindsFreePort(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()
	blockedPort := blocker.Addr().(*net.TCPAddr).Port

	ln, port, err := listenWithAutoPort("127.0.0.1", blockedPort, false)
	require.NoError(t, err)
	defer ln.Close()
	assert.NotEqual(t, blockedPort, port)
}

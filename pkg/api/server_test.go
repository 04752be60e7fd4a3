package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/activated"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/files"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/gitops"
	"github.com/quarryhq/quarry/pkg/golden"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/listing"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/storage"
	"github.com/quarryhq/quarry/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	runner := gitcmd.NewExecRunner()

	jobManager, err := jobs.NewManager(storage.NewFileStore(filepath.Join(cfg.DataDir, "jobs.json")), 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { jobManager.Shutdown(time.Second) })

	goldenManager, err := golden.NewManager(cfg, jobManager, runner, nil, nil)
	require.NoError(t, err)
	activatedManager, err := activated.NewManager(cfg, goldenManager, jobManager, runner, nil)
	require.NoError(t, err)

	server := NewServer(
		goldenManager,
		activatedManager,
		jobManager,
		files.NewService(activatedManager),
		gitops.NewService(cfg, activatedManager, runner),
		listing.NewService(goldenManager, activatedManager, jobManager),
	)
	return server.Router()
}

func doRequest(t *testing.T, router http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var userHeaders = map[string]string{headerUser: "alice"}
var adminHeaders = map[string]string{headerUser: "root", headerAdmin: "true"}

func TestHealthEndpointsNeedNoAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	rec = doRequest(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quarry_")
}

func TestAPIRequiresUser(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/jobs/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/admin/golden-repos/", userHeaders)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/admin/golden-repos/", adminHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownJobIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/jobs/nope", userHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "not found")
}

func TestUnknownGoldenRepoIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/admin/golden-repos/ghost", adminHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRepoListEmpty(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/repos/", userHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/stats", userHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "golden_repos")
}

func TestCorrelationIDEchoed(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/healthz", map[string]string{headerCorrelationID: "corr-123"})
	assert.Equal(t, "corr-123", rec.Header().Get(headerCorrelationID))

	// One is generated when the caller sends none
	rec = doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get(headerCorrelationID))
}

func TestStatusForMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", &types.NotFoundError{Resource: "job", Name: "x"}, http.StatusNotFound},
		{"conflict", &types.ConflictError{Msg: "exists"}, http.StatusConflict},
		{"validation", &types.ValidationError{Msg: "bad"}, http.StatusBadRequest},
		{"sandbox", &types.SandboxError{Msg: "escape"}, http.StatusForbidden},
		{"hash mismatch", &types.HashMismatchError{Path: "f"}, http.StatusConflict},
		{"confirmation", &types.ConfirmationInvalidError{Operation: "git_clean"}, http.StatusBadRequest},
		{"git failure", &types.GitCommandError{Msg: "boom"}, http.StatusInternalServerError},
		{"remote unreachable", &types.GitCommandError{Msg: "boom", Stderr: "Could not resolve host"}, http.StatusServiceUnavailable},
		{"cleanup", &types.CleanupError{Msg: "partial"}, http.StatusInternalServerError},
		{"maintenance", &types.MaintenanceError{}, http.StatusServiceUnavailable},
		{"unknown", io.EOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

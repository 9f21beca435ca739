package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxwatch/internal/domain"
	"fxwatch/internal/storage"
	"fxwatch/internal/watcher"
)

type staticCatalog []domain.SourceInfo

func (s staticCatalog) List() []domain.SourceInfo { return s }

type stubChecker struct {
	force  bool
	report watcher.Report
	err    error
}

func (s *stubChecker) Check(_ context.Context, force bool) (watcher.Report, error) {
	s.force = force
	return s.report, s.err
}

func newTestServer(t *testing.T, checker Checker) (*Server, *storage.BadgerRepository) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := storage.NewBadgerRepository(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repo.Close()) })

	deps := Deps{
		Sources: staticCatalog{{ID: "ing", Name: "ING Think", Kind: domain.KindFXDaily}},
		History: repo,
		States:  repo,
	}
	if checker != nil {
		deps.Checker = checker
	}
	return NewServer(deps, logger), repo
}

func do(t *testing.T, s *Server, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec, body := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, _ = do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fxwatch_http_requests_total{method="GET",path="/healthz",status_code="200"}`)
}

func TestSources(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec, body := do(t, s, http.MethodGet, "/api/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "fx_daily", sources[0].(map[string]any)["kind"])
}

func TestHistory(t *testing.T) {
	s, repo := newTestServer(t, nil)
	ctx := context.Background()
	for i, title := range []string{"Le yen rebondit", "La BCE en pause", "Le dollar recule"} {
		_, err := repo.AddArticle(ctx, domain.HistoryEntry{
			URL:   "https://x/" + title,
			Title: title,
			Date:  time.Date(2026, 3, 4, 8+i, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	_, body := do(t, s, http.MethodGet, "/api/history")
	assert.EqualValues(t, 3, body["count"])

	_, body = do(t, s, http.MethodGet, "/api/history?limit=1")
	require.EqualValues(t, 1, body["count"])
	assert.Equal(t, "Le dollar recule", body["entries"].([]any)[0].(map[string]any)["title"])

	_, body = do(t, s, http.MethodGet, "/api/history?q=BCE")
	assert.EqualValues(t, 1, body["count"])

	rec, _ := do(t, s, http.MethodGet, "/api/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStates(t *testing.T) {
	s, repo := newTestServer(t, nil)
	require.NoError(t, repo.SaveState(context.Background(), "ing", domain.WatcherState{LastArticleURL: "https://x/1"}))

	rec, body := do(t, s, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)
	ing := body["states"].(map[string]any)["ing"].(map[string]any)
	assert.Equal(t, "https://x/1", ing["lastArticleUrl"])
}

func TestTriggerCheck(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec, _ := do(t, s, http.MethodPost, "/api/check")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker := &stubChecker{report: watcher.Report{
		Processed: []string{"ing"},
		Failed:    map[string]error{"reuters": errors.New("HTTP 503")},
	}}
	s, _ = newTestServer(t, checker)
	rec, body := do(t, s, http.MethodPost, "/api/check?force=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, checker.force)
	assert.Equal(t, []any{"ing"}, body["processed"])
	assert.Equal(t, "HTTP 503", body["failed"].(map[string]any)["reuters"])

	checker.err = errors.New("load watcher state: closed")
	rec, _ = do(t, s, http.MethodPost, "/api/check")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, checker.force)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

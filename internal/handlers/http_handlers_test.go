package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/database"
	"github.com/antifraude/url-sentinel/internal/domain"
	"github.com/antifraude/url-sentinel/internal/lists"
	"github.com/antifraude/url-sentinel/internal/probe"
)

type stubChecker struct {
	result  *domain.CheckResult
	err     error
	lastURL string
}

func (s *stubChecker) Check(ctx context.Context, rawURL string) (*domain.CheckResult, error) {
	s.lastURL = rawURL
	return s.result, s.err
}

type stubFetcher struct {
	result *probe.FetchResult
	err    error
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*probe.FetchResult, error) {
	return s.result, s.err
}

type emptySource struct{}

func (emptySource) FindActive(ctx context.Context) ([]*database.ListEntry, error) {
	return nil, nil
}

func newTestRouter(checker URLChecker, fetcher PageFetcher) *mux.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Environment: "test"}
	matcher := lists.NewMatcher(emptySource{}, emptySource{}, config.ListsConfig{CacheTTL: time.Minute}, logger)

	handler := NewHTTPHandler(cfg, logger, checker, nil, nil, nil, matcher, fetcher)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthAndStatus(t *testing.T) {
	router := newTestRouter(&stubChecker{}, &stubFetcher{})

	t.Run("Health", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "url-sentinel", body["service"])
	})

	t.Run("Status", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodGet, "/status", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "running", body["status"])
	})
}

func TestHandleCheck(t *testing.T) {
	t.Run("Returns Check Result", func(t *testing.T) {
		checker := &stubChecker{result: &domain.CheckResult{
			ID:            "rec-1",
			Verdict:       domain.VerdictSuspect,
			Score:         90,
			RuleHits:      []string{"FAKE_SHORTENER"},
			Evidence:      []string{"decoy"},
			NormalizedURL: "http://simulador-irpf.site",
			Domain:        "simulador-irpf.site",
			Source:        domain.SourceRules,
			SubmittedAt:   time.Now().UTC(),
		}}
		router := newTestRouter(checker, &stubFetcher{})

		recorder := doJSON(t, router, http.MethodPost, "/check", map[string]string{"url": "simulador-irpf.site"})

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "simulador-irpf.site", checker.lastURL)

		var result domain.CheckResult
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
		assert.Equal(t, domain.VerdictSuspect, result.Verdict)
		assert.Equal(t, 90, result.Score)
		assert.Contains(t, result.RuleHits, "FAKE_SHORTENER")
	})

	t.Run("Missing URL Is Rejected", func(t *testing.T) {
		router := newTestRouter(&stubChecker{}, &stubFetcher{})

		recorder := doJSON(t, router, http.MethodPost, "/check", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Invalid JSON Is Rejected", func(t *testing.T) {
		router := newTestRouter(&stubChecker{}, &stubFetcher{})

		req := httptest.NewRequest(http.MethodPost, "/check", bytes.NewReader([]byte("{not json")))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Pipeline Error Maps To 500", func(t *testing.T) {
		router := newTestRouter(&stubChecker{err: errors.New("db down")}, &stubFetcher{})

		recorder := doJSON(t, router, http.MethodPost, "/check", map[string]string{"url": "http://x.example/"})

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}

func TestHandleProbe(t *testing.T) {
	t.Run("Returns Page Summary", func(t *testing.T) {
		fetcher := &stubFetcher{result: &probe.FetchResult{
			FinalURL:    "http://landing.example/",
			StatusCode:  200,
			ContentType: "text/html",
			Body:        []byte(`<html><head><title>Saque PIX</title></head><body><form><input type="password"></form></body></html>`),
			FetchedAt:   time.Now().UTC(),
		}}
		router := newTestRouter(&stubChecker{}, fetcher)

		recorder := doJSON(t, router, http.MethodPost, "/probe", map[string]string{"url": "http://landing.example/"})

		assert.Equal(t, http.StatusOK, recorder.Code)
		var body struct {
			FinalURL string             `json:"final_url"`
			Summary  *probe.PageSummary `json:"summary"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "http://landing.example/", body.FinalURL)
		require.NotNil(t, body.Summary)
		assert.Equal(t, "Saque PIX", body.Summary.Title)
		assert.True(t, body.Summary.HasPasswordField)
	})

	t.Run("Fetch Failure Maps To 502", func(t *testing.T) {
		router := newTestRouter(&stubChecker{}, &stubFetcher{err: errors.New("refused")})

		recorder := doJSON(t, router, http.MethodPost, "/probe", map[string]string{"url": "http://dead.example/"})

		assert.Equal(t, http.StatusBadGateway, recorder.Code)
	})

	t.Run("Missing URL Is Rejected", func(t *testing.T) {
		router := newTestRouter(&stubChecker{}, &stubFetcher{})

		recorder := doJSON(t, router, http.MethodPost, "/probe", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

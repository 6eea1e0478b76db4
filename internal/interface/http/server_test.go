package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/command"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/epa"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/snapshotfile"
	"github.com/eyd-portfolio/portfolio-analytics/internal/interface/http/handlers"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

const fixture = `
trainee_id: t1
epas:
  - {id: 1, code: E1, title: Assessment}
  - {id: 5, code: E5, title: Prevention}
links:
  - {type: reflection, id: 1, created_at: 2024-01-10T00:00:00Z, epa_ids: [5]}
  - {type: sle_cbd, id: 1, created_at: 2024-01-20T00:00:00Z, epa_ids: [1, 5]}
portfolio:
  counts:
    reflection: {completed: 2, total: 2}
surveys:
  msf:
    responses:
      - {id: r1, submitted_at: 2024-03-01T10:00:00Z, scores: {teamwork: 4}}
`

type envelopeResponse struct {
	Success bool           `json:"success"`
	Data    query.Envelope `json:"data"`
	Error   *APIError      `json:"error"`
}

type testEnv struct {
	server *Server
	store  *countingStore
}

type countingStore struct {
	invalidated []string
}

func (c *countingStore) Get(context.Context, string, string, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *countingStore) Put(context.Context, string, string, string, []byte) error { return nil }

func (c *countingStore) Invalidate(_ context.Context, id string) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}

func newTestServer(t *testing.T, doc string, mutate func(*Config, *Dependencies)) *testEnv {
	t.Helper()

	f, err := snapshotfile.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	src := snapshotfile.NewSource(f)

	builder, err := epa.NewBuilder(catalog.Default(), epa.DefaultIntensityScale())
	require.NoError(t, err)
	registry := survey.DefaultRegistry(5)
	store := &countingStore{}

	cfg := DefaultConfig()
	deps := Dependencies{
		CoverageMatrix:      query.NewGetCoverageMatrixHandler(src, builder, store, nil),
		PortfolioSummary:    query.NewGetPortfolioSummaryHandler(src, store, nil),
		SurveyResults:       query.NewGetSurveyResultsHandler(src, registry, store, nil),
		InvalidateSummaries: command.NewInvalidateSummariesHandler(store, nil),
		Catalog:             catalog.Default(),
		Registry:            registry,
		Features:            config.NewFeatureFlags(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		Logger: logger.Nop(),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	return &testEnv{server: NewServer(cfg, deps), store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelopeResponse {
	t.Helper()
	var body envelopeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestEPAMatrixEndpoint(t *testing.T) {
	env := newTestServer(t, fixture, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/trainees/t1/epa-matrix", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	body := decodeEnvelope(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "coverage", body.Data.Kind)
	assert.Equal(t, "t1", body.Data.TraineeID)
	assert.NotEmpty(t, body.Data.Data)
}

func TestPortfolioSummaryEndpoint(t *testing.T) {
	env := newTestServer(t, fixture, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/trainees/t1/portfolio-summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeEnvelope(t, rec)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(body.Data.Data, &summary))
	assert.Equal(t, "complete", summary["overall_status"])
}

func TestSurveyResultsEndpoint(t *testing.T) {
	env := newTestServer(t, fixture, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/trainees/t1/surveys/MSF/results", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var digest survey.Digest
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data.Data, &digest))
	assert.Equal(t, 1, digest.TotalResponses)
	assert.Len(t, digest.RecentResponses, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/trainees/t1/surveys/msf/results?hide_recent=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "msf:norecent", body.Data.Variant)
}

func TestSurveyResultsEndpoint_RecentDisabledByFlag(t *testing.T) {
	env := newTestServer(t, fixture, func(_ *Config, d *Dependencies) {
		require.NoError(t, d.Features.DisableFeature(config.FeatureRecentResponses))
	})

	rec := env.do(t, http.MethodGet, "/api/v1/trainees/t1/surveys/msf/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "msf:norecent", decodeEnvelope(t, rec).Data.Variant)
}

func TestErrorMapping(t *testing.T) {
	broken := strings.Replace(fixture, "epa_ids: [5]}", "epa_ids: [99]}", 1)
	env := newTestServer(t, broken, nil)

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/api/v1/trainees/t1/epa-matrix", http.StatusUnprocessableEntity, "input_integrity"},
		{"/api/v1/trainees/nobody/portfolio-summary", http.StatusNotFound, "not_found"},
		{"/api/v1/trainees/bad%20id/epa-matrix", http.StatusBadRequest, "invalid_request"},
		{"/api/v1/trainees/t1/surveys/360/results", http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tc.path, nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			body := decodeEnvelope(t, rec)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{shared.Integrityf("epa", "Build", "unknown epa"), http.StatusUnprocessableEntity},
		{shared.ErrTraineeNotFound, http.StatusNotFound},
		{shared.ErrInvalidTraineeID, http.StatusBadRequest},
		{shared.WrapError("query", "Load", shared.ErrInputUnavailable, "down", errors.New("conn reset")), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{shared.Configurationf("catalog", "New", "empty"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", errors.New("something else")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}

func TestInvalidateCacheEndpoint(t *testing.T) {
	env := newTestServer(t, fixture, nil)

	rec := env.do(t, http.MethodDelete, "/api/v1/trainees/t1/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"t1"}, env.store.invalidated)

	for _, id := range []string{"*", "t1*", "%2A"} {
		rec = env.do(t, http.MethodDelete, "/api/v1/trainees/"+id+"/cache", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
	assert.Equal(t, []string{"t1"}, env.store.invalidated)

	disabled := newTestServer(t, fixture, func(_ *Config, d *Dependencies) {
		require.NoError(t, d.Features.DisableFeature(config.FeatureCacheInvalidation))
	})
	rec = disabled.do(t, http.MethodDelete, "/api/v1/trainees/t1/cache", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, disabled.store.invalidated)
}

func TestReferenceEndpoints(t *testing.T) {
	env := newTestServer(t, fixture, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entity_type":"reflection"`)

	rec = env.do(t, http.MethodGet, "/api/v1/questionnaires", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"msf"`)
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	env := newTestServer(t, fixture, func(c *Config, _ *Dependencies) {
		c.APIKeyHashes = []string{string(hash)}
	})

	rec := env.do(t, http.MethodGet, "/api/v1/catalog", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "probes stay open")
}

func TestHealthEndpoints(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", func(context.Context) error { return errors.New("refused") })

	env := newTestServer(t, fixture, func(_ *Config, d *Dependencies) {
		d.HealthChecker = checker
	})

	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/live", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, fixture, nil)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	off := newTestServer(t, fixture, func(_ *Config, d *Dependencies) {
		require.NoError(t, d.Features.DisableFeature(config.FeatureMetricsEndpoint))
	})
	assert.Equal(t, http.StatusNotFound, off.do(t, http.MethodGet, "/metrics", nil).Code)
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestServer(t, fixture, nil)
	rec := env.do(t, http.MethodGet, "/live", map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"request_id":"req-42"`)
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestServer(t, fixture, nil)
	h := env.server.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

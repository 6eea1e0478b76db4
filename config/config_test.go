package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eyd-portfolio-analytics", cfg.App.Name)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, "@every 15m", cfg.Worker.RefreshSchedule)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 5, cfg.Analytics.SurveyRecentLimit)
	assert.Equal(t, "eyd:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_DatabaseFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "eyd")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://eyd:secret@db:5432/eyd?sslmode=disable", cfg.Database.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("WORKER_MAX_FAILURE_RATIO", "0.25")
	t.Setenv("INTENSITY_CUTOFFS", "0.25, 0.5, 0.75")
	t.Setenv("API_KEY_HASHES", "h1, ,h2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.InDelta(t, 0.25, cfg.Worker.MaxFailureRatio, 1e-9)
	assert.Equal(t, []float64{0.25, 0.5, 0.75}, cfg.Analytics.IntensityCutoffs)
	assert.Equal(t, []string{"h1", "h2"}, cfg.HTTP.APIKeyHashes)
}

func TestLoad_MalformedCutoffs(t *testing.T) {
	t.Setenv("INTENSITY_CUTOFFS", "0.3,abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTENSITY_CUTOFFS")
}

func TestValidate_CollectsErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("INTENSITY_CUTOFFS", "0.6,0.3")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "WORKER_CONCURRENCY")
	assert.Contains(t, msg, "INTENSITY_CUTOFFS must be strictly increasing")
}

func TestAnalyticsEngine_Defaults(t *testing.T) {
	cat, scale, err := AnalyticsConfig{}.Engine()
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().Types(), cat.Types())
	assert.Len(t, scale.Classes, 4)
}

func TestAnalyticsEngine_CutoffsNameBands(t *testing.T) {
	_, scale, err := AnalyticsConfig{IntensityCutoffs: []float64{0.5}}.Engine()
	require.NoError(t, err)
	assert.Equal(t, []string{"intensity-none", "intensity-1", "intensity-2"}, scale.Classes)

	_, scale, err = AnalyticsConfig{IntensityCutoffs: []float64{0.2, 0.8}}.Engine()
	require.NoError(t, err)
	assert.Equal(t, "intensity-high", scale.Classes[3])
	assert.Equal(t, []float64{0.2, 0.8}, scale.Cutoffs)
}

func TestAnalyticsEngine_CatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
activities:
  - {type: reflection, display_name: Reflection, short_name: Refl, group: reflection}
  - {type: sle_cbd, display_name: Case-based Discussion, short_name: CbD, group: sle}
intensity:
  cutoffs: [0.5]
  classes: [none, some, most]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cat, scale, err := AnalyticsConfig{CatalogFile: path, IntensityCutoffs: []float64{0.1, 0.2}}.Engine()
	require.NoError(t, err)
	assert.Equal(t, []catalog.ActivityType{catalog.TypeReflection, catalog.TypeSLECaseBasedDiscussion}, cat.Types())
	assert.Equal(t, []string{"none", "some", "most"}, scale.Classes)
}

func TestAnalyticsEngine_BadCatalogFile(t *testing.T) {
	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("activities: [{type: reflection}, {type: reflection}]"), 0o600))
	_, _, err := AnalyticsConfig{CatalogFile: dup}.Engine()
	require.Error(t, err)
	assert.True(t, shared.IsInvalidConfiguration(err))

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("columns: []"), 0o600))
	_, _, err = AnalyticsConfig{CatalogFile: unknown}.Engine()
	assert.Error(t, err)

	_, _, err = AnalyticsConfig{CatalogFile: filepath.Join(dir, "missing.yaml")}.Engine()
	assert.Error(t, err)
}

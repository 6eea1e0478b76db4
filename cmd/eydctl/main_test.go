package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

const snapshot = `
trainee_id: t1
epas:
  - {id: 1, code: E1, title: Assessment}
  - {id: 2, code: E2, title: Management}
links:
  - {type: reflection, id: 1, title: R1, created_at: 2024-01-10T00:00:00Z, epa_ids: [1]}
  - {type: reflection, id: 2, title: R2, created_at: 2024-01-11T00:00:00Z, epa_ids: [1, 2]}
portfolio:
  counts:
    reflection: {completed: 2, total: 2}
surveys:
  msf:
    total_submitted: 2
    responses:
      - {id: r1, submitted_at: 2024-03-01T10:00:00Z, scores: {teamwork: 4}}
      - {id: r2, submitted_at: 2024-03-02T10:00:00Z, scores: {teamwork: 2}}
`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out), stdout.String())
	return out, nil
}

func TestMatrixCommand(t *testing.T) {
	out, err := execute(t, "matrix", "--file", writeSnapshot(t))
	require.NoError(t, err)
	assert.Equal(t, "coverage", out["kind"])
	assert.Equal(t, "t1", out["trainee_id"])
	assert.Equal(t, false, out["cached"])
	assert.NotNil(t, out["data"])
}

func TestPortfolioCommand(t *testing.T) {
	out, err := execute(t, "portfolio", "-f", writeSnapshot(t))
	require.NoError(t, err)
	assert.Equal(t, "portfolio", out["kind"])
}

func TestSurveyCommand(t *testing.T) {
	path := writeSnapshot(t)

	out, err := execute(t, "survey", "msf", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "survey", out["kind"])
	assert.Equal(t, "msf", out["variant"])

	out, err = execute(t, "survey", "msf", "--file", path, "--hide-recent")
	require.NoError(t, err)
	assert.Equal(t, "msf:norecent", out["variant"])

	_, err = execute(t, "survey", "360", "--file", path)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestUnknownTrainee(t *testing.T) {
	_, err := execute(t, "matrix", "--file", writeSnapshot(t), "--trainee", "t2")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestMissingFileFlag(t *testing.T) {
	_, err := execute(t, "matrix")
	assert.Error(t, err)
}

func TestReferenceCommands(t *testing.T) {
	out, err := execute(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "catalog")
	assert.Contains(t, out, "intensity")

	out, err = execute(t, "instruments")
	require.NoError(t, err)
	assert.Len(t, out["questionnaires"], 2)
}

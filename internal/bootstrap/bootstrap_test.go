package bootstrap

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/command"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/snapshotfile"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) key(kind, traineeID, variant string) string {
	return traineeID + "|" + kind + "|" + variant
}

func (m *memStore) Get(_ context.Context, kind, traineeID, variant string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[m.key(kind, traineeID, variant)]
	return v, ok, nil
}

func (m *memStore) Put(_ context.Context, kind, traineeID, variant string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[m.key(kind, traineeID, variant)] = payload
	return nil
}

func (m *memStore) Invalidate(_ context.Context, traineeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, traineeID+"|") {
			delete(m.data, k)
		}
	}
	return nil
}

const doc = `
trainee_id: t1
epas:
  - {id: 1, code: E1}
links:
  - {type: reflection, id: 1, created_at: 2024-01-10T00:00:00Z, epa_ids: [1]}
`

func TestNewEngine(t *testing.T) {
	eng, err := NewEngine(config.AnalyticsConfig{SurveyRecentLimit: 3})
	require.NoError(t, err)
	assert.NotZero(t, eng.Catalog.Len())
	assert.Len(t, eng.Scale.Classes, 4)
	assert.ElementsMatch(t, []string{"msf", "psq"}, eng.Registry.Codes())

	_, err = NewEngine(config.AnalyticsConfig{SurveyRecentLimit: 3, IntensityCutoffs: []float64{0.8, 0.2}})
	assert.Error(t, err)
}

func TestHandlersRefreshFillsStore(t *testing.T) {
	eng, err := NewEngine(config.AnalyticsConfig{SurveyRecentLimit: 5})
	require.NoError(t, err)

	f, err := snapshotfile.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	src := snapshotfile.NewSource(f)

	store := &memStore{}
	h := NewHandlers(Sources{Coverage: src, Portfolio: src, Surveys: src, Trainees: src}, eng, store, logger.Nop())
	require.NotNil(t, h.RefreshSummaries)

	res, err := h.RefreshSummaries.Handle(context.Background(), command.RefreshSummariesCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trainees)
	assert.Equal(t, 1, res.Refreshed)
	assert.Empty(t, res.Failures)

	// coverage + portfolio + one entry per questionnaire
	assert.Len(t, store.data, 2+len(eng.Registry.Codes()))

	require.NoError(t, h.InvalidateSummaries.Handle(context.Background(), command.InvalidateSummariesCommand{TraineeID: "t1"}))
	assert.Empty(t, store.data)
}

func TestHandlersWithoutTrainees(t *testing.T) {
	eng, err := NewEngine(config.AnalyticsConfig{SurveyRecentLimit: 5})
	require.NoError(t, err)
	h := NewHandlers(Sources{}, eng, nil, nil)
	assert.Nil(t, h.RefreshSummaries)
	assert.NotNil(t, h.CoverageMatrix)
}

func TestRedisConfigMapping(t *testing.T) {
	rc := redisConfig(config.RedisConfig{Host: "cache", Port: 6380, PoolSize: 7})
	assert.Equal(t, "cache", rc.Host)
	assert.Equal(t, 6380, rc.Port)
	assert.Equal(t, 7, rc.PoolSize)
	assert.NotEmpty(t, rc.KeyPrefix)
}

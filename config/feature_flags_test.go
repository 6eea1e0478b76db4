package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := NewFeatureFlags()

	assert.True(t, ff.Enabled(FeatureSummaryCache))
	assert.True(t, ff.Enabled(FeatureRecentResponses))
	assert.False(t, ff.Enabled(FeatureRefreshOnStart))
	assert.False(t, ff.Enabled("no.such.feature"))
	assert.Len(t, ff.GetAllFeatures(), 5)
}

func TestFeatureFlags_Environment(t *testing.T) {
	t.Setenv("FEATURE_SURVEY_RECENT_RESPONSES", "false")
	t.Setenv("FEATURE_WORKER_REFRESH_ON_START", "true")
	t.Setenv("FEATURE_CACHE_SUMMARIES", "30")

	ff := LoadFeatureFlags()
	assert.False(t, ff.Enabled(FeatureRecentResponses))
	assert.True(t, ff.Enabled(FeatureRefreshOnStart))
	assert.Equal(t, 30, ff.GetAllFeatures()[FeatureSummaryCache].RolloutPercent)
}

func TestFeatureFlags_RolloutIsStable(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureRecentResponses, 50))

	on := 0
	for i := range 200 {
		id := fmt.Sprintf("t%d", i)
		first := ff.EnabledFor(FeatureRecentResponses, id)
		assert.Equal(t, first, ff.EnabledFor(FeatureRecentResponses, id))
		if first {
			on++
		}
	}
	assert.Greater(t, on, 50)
	assert.Less(t, on, 150)
}

func TestFeatureFlags_Overrides(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureRecentResponses))

	ff.SetTraineeOverride("t1", FeatureRecentResponses, true)
	assert.True(t, ff.EnabledFor(FeatureRecentResponses, "t1"))
	assert.False(t, ff.EnabledFor(FeatureRecentResponses, "t2"))

	ff.ClearTraineeOverrides("t1")
	assert.False(t, ff.EnabledFor(FeatureRecentResponses, "t1"))
}

func TestFeatureFlags_Errors(t *testing.T) {
	ff := NewFeatureFlags()
	assert.ErrorIs(t, ff.SetRolloutPercent("missing", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureSummaryCache, 101), ErrInvalidRolloutPercent)

	var nilFlags *FeatureFlags
	assert.False(t, nilFlags.Enabled(FeatureSummaryCache))
}

func TestFeatureFlags_HidesRecentResponses(t *testing.T) {
	ff := NewFeatureFlags()
	assert.False(t, ff.HidesRecentResponses("t1"))

	ff.SetTraineeOverride("t2", FeatureRecentResponses, false)
	assert.True(t, ff.HidesRecentResponses("t2"))
	assert.False(t, ff.HidesRecentResponses("t1"))

	require.NoError(t, ff.DisableFeature(FeatureRecentResponses))
	assert.True(t, ff.HidesRecentResponses("t1"))

	var none *FeatureFlags
	assert.True(t, none.HidesRecentResponses("t1"))
}

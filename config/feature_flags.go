package config

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Flag names.
const (
	// FeatureSummaryCache reads and writes summaries through the cache.
	FeatureSummaryCache = "cache.summaries"

	// FeatureRecentResponses exposes the recent-responses list of survey digests.
	FeatureRecentResponses = "survey.recent_responses"

	// FeatureCacheInvalidation enables DELETE /api/v1/trainees/{id}/cache.
	FeatureCacheInvalidation = "api.cache_invalidation"

	// FeatureMetricsEndpoint serves /metrics.
	FeatureMetricsEndpoint = "observability.metrics_endpoint"

	// FeatureRefreshOnStart runs a refresh as soon as the worker starts.
	FeatureRefreshOnStart = "worker.refresh_on_start"
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is one flag. RolloutPercent (0-100) selects trainees by a hash of
// their id; the optional window bounds when the flag is live at all.
type Feature struct {
	Name           string
	Description    string
	Enabled        bool
	RolloutPercent int
	EnabledFrom    *time.Time
	EnabledUntil   *time.Time
}

func (f *Feature) live(now time.Time) bool {
	if !f.Enabled {
		return false
	}
	if f.EnabledFrom != nil && now.Before(*f.EnabledFrom) {
		return false
	}
	return f.EnabledUntil == nil || !now.After(*f.EnabledUntil)
}

func (f *Feature) setPercent(p int) {
	f.RolloutPercent = p
	f.Enabled = p > 0
}

// FeatureContext narrows an evaluation to one trainee.
type FeatureContext struct {
	TraineeID string
}

// FeatureFlags holds the toggles of the service. A trainee's rollout bucket
// is stable across restarts. A nil *FeatureFlags reports every flag off.
type FeatureFlags struct {
	mu        sync.RWMutex
	features  map[string]*Feature
	overrides map[string]map[string]bool // trainee -> flag -> on
}

// NewFeatureFlags returns the defaults without reading the environment.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:  map[string]*Feature{},
		overrides: map[string]map[string]bool{},
	}
	for _, d := range []struct {
		name, description string
		on                bool
	}{
		{FeatureSummaryCache, "Cache computed summaries", true},
		{FeatureRecentResponses, "Show recent survey responses", true},
		{FeatureCacheInvalidation, "Allow cache invalidation over the API", true},
		{FeatureMetricsEndpoint, "Expose Prometheus metrics", true},
		{FeatureRefreshOnStart, "Refresh summaries when the worker starts", false},
	} {
		f := &Feature{Name: d.name, Description: d.description}
		if d.on {
			f.setPercent(100)
		}
		ff.features[d.name] = f
	}
	return ff
}

// LoadFeatureFlags applies FEATURE_<NAME>=true|false|<percent> overrides to
// the defaults, e.g. FEATURE_CACHE_SUMMARIES=50. Unparsable values are
// ignored.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	for name, f := range ff.features {
		if p, ok := parseRollout(os.Getenv(envKey(name))); ok {
			f.setPercent(p)
		}
	}
	return ff
}

func parseRollout(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return 100, true
		}
		return 0, true
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}

// envKey maps "cache.summaries" to "FEATURE_CACHE_SUMMARIES".
func envKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled evaluates a flag. Trainee overrides win; a partial rollout
// without a trainee counts as enabled.
func (ff *FeatureFlags) IsEnabled(name string, ctx *FeatureContext) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	trainee := ""
	if ctx != nil {
		trainee = ctx.TraineeID
	}
	if on, ok := ff.overrides[trainee][name]; ok {
		return on
	}

	f, ok := ff.features[name]
	if !ok || !f.live(time.Now()) {
		return false
	}
	if trainee != "" && f.RolloutPercent < 100 {
		return bucket(name, trainee) < f.RolloutPercent
	}
	return f.RolloutPercent > 0
}

// Enabled is IsEnabled without a trainee.
func (ff *FeatureFlags) Enabled(name string) bool {
	return ff.IsEnabled(name, nil)
}

// EnabledFor is IsEnabled for one trainee.
func (ff *FeatureFlags) EnabledFor(name, traineeID string) bool {
	return ff.IsEnabled(name, &FeatureContext{TraineeID: traineeID})
}

// HidesRecentResponses reports whether survey digests of the trainee are
// served without the recent-responses list. The API and the refresh worker
// both pick the cached variant with it.
func (ff *FeatureFlags) HidesRecentResponses(traineeID string) bool {
	return !ff.EnabledFor(FeatureRecentResponses, traineeID)
}

func bucket(name, traineeID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(traineeID))
	return int(h.Sum32() % 100)
}

// SetTraineeOverride forces a flag on or off for one trainee.
func (ff *FeatureFlags) SetTraineeOverride(traineeID, name string, on bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.overrides[traineeID] == nil {
		ff.overrides[traineeID] = map[string]bool{}
	}
	ff.overrides[traineeID][name] = on
}

// ClearTraineeOverrides drops every override of a trainee.
func (ff *FeatureFlags) ClearTraineeOverrides(traineeID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.overrides, traineeID)
}

// SetRolloutPercent changes a flag's rollout; 0 turns it off.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	f, ok := ff.features[name]
	switch {
	case !ok:
		return ErrFeatureNotFound
	case percent < 0 || percent > 100:
		return ErrInvalidRolloutPercent
	}
	f.setPercent(percent)
	return nil
}

// EnableFeature rolls a flag out to everyone.
func (ff *FeatureFlags) EnableFeature(name string) error {
	return ff.SetRolloutPercent(name, 100)
}

// DisableFeature turns a flag off.
func (ff *FeatureFlags) DisableFeature(name string) error {
	return ff.SetRolloutPercent(name, 0)
}

// GetAllFeatures returns a snapshot of every flag.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make(map[string]Feature, len(ff.features))
	for name, f := range ff.features {
		out[name] = *f
	}
	return out
}

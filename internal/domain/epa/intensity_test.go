package epa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntensityScale_Classify(t *testing.T) {
	s := DefaultIntensityScale()

	tests := []struct {
		count, rowMax int
		want          string
	}{
		{0, 0, "intensity-none"},
		{0, 9, "intensity-none"},
		{1, 9, "intensity-low"},
		{3, 9, "intensity-low"},
		{4, 9, "intensity-medium"},
		{6, 9, "intensity-medium"},
		{7, 9, "intensity-high"},
		{9, 9, "intensity-high"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Classify(tt.count, tt.rowMax), "%d/%d", tt.count, tt.rowMax)
	}
}

func TestIntensityScale_Monotonic(t *testing.T) {
	scales := []IntensityScale{
		DefaultIntensityScale(),
		{Cutoffs: []float64{0.25, 0.5, 0.75}, Classes: []string{"q0", "q1", "q2", "q3", "q4"}},
		{Cutoffs: []float64{1}, Classes: []string{"off", "on", "unused"}},
	}

	for _, s := range scales {
		assert.NoError(t, s.Validate())
		rank := make(map[string]int, len(s.Classes))
		for i, c := range s.Classes {
			rank[c] = i
		}
		for rowMax := 1; rowMax <= 20; rowMax++ {
			prev := -1
			for count := 0; count <= rowMax; count++ {
				r := rank[s.Classify(count, rowMax)]
				assert.GreaterOrEqual(t, r, prev, "count %d of %d", count, rowMax)
				prev = r
			}
		}
	}
}

func TestIntensityScale_Validate(t *testing.T) {
	tests := []struct {
		name  string
		scale IntensityScale
	}{
		{"class count", IntensityScale{Cutoffs: []float64{0.5}, Classes: []string{"a", "b"}}},
		{"not increasing", IntensityScale{Cutoffs: []float64{0.5, 0.5}, Classes: []string{"a", "b", "c", "d"}}},
		{"above one", IntensityScale{Cutoffs: []float64{1.5}, Classes: []string{"a", "b", "c"}}},
		{"zero cutoff", IntensityScale{Cutoffs: []float64{0}, Classes: []string{"a", "b", "c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.scale.Validate())
		})
	}
}

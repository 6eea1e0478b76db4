package epa

import (
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// IntensityScale buckets a cell count relative to the busiest cell of its
// row. Cutoffs are ratios in (0, 1], strictly increasing; Classes has one
// entry for zero plus one per band, so len(Classes) == len(Cutoffs)+2.
//
// A count c in a row whose maximum is m gets Classes[0] when c == 0,
// otherwise the first band whose cutoff is >= c/m, or the last class.
// The mapping is deterministic and non-decreasing in c for a fixed m.
type IntensityScale struct {
	Cutoffs []float64 `json:"cutoffs" yaml:"cutoffs"`
	Classes []string  `json:"classes" yaml:"classes"`
}

// DefaultIntensityScale returns the zero/low/medium/high scale split at thirds.
func DefaultIntensityScale() IntensityScale {
	return IntensityScale{
		Cutoffs: []float64{1.0 / 3.0, 2.0 / 3.0},
		Classes: []string{"intensity-none", "intensity-low", "intensity-medium", "intensity-high"},
	}
}

// IsZero reports whether the scale is unset.
func (s IntensityScale) IsZero() bool {
	return len(s.Cutoffs) == 0 && len(s.Classes) == 0
}

// Validate checks the scale shape.
func (s IntensityScale) Validate() error {
	if len(s.Classes) != len(s.Cutoffs)+2 {
		return shared.Configurationf("epa", "IntensityScale",
			"need %d classes for %d cutoffs, got %d", len(s.Cutoffs)+2, len(s.Cutoffs), len(s.Classes))
	}
	prev := 0.0
	for i, c := range s.Cutoffs {
		if c <= prev || c > 1 {
			return shared.Configurationf("epa", "IntensityScale",
				"cutoff %d (%.4f) must be in (%.4f, 1]", i, c, prev)
		}
		prev = c
	}
	return nil
}

// Zero returns the class of an empty cell.
func (s IntensityScale) Zero() string {
	if len(s.Classes) == 0 {
		return ""
	}
	return s.Classes[0]
}

// Classify returns the class for count within a row whose maximum is rowMax.
func (s IntensityScale) Classify(count, rowMax int) string {
	if count <= 0 || rowMax <= 0 {
		return s.Zero()
	}
	ratio := float64(count) / float64(rowMax)
	for i, cutoff := range s.Cutoffs {
		if ratio <= cutoff {
			return s.Classes[i+1]
		}
	}
	return s.Classes[len(s.Classes)-1]
}

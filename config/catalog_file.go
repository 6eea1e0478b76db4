package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/epa"
)

// CatalogFile is the optional YAML override of the activity catalog and the
// intensity scale.
//
//	activities:
//	  - {type: reflection, display_name: Reflection, short_name: Reflection, group: reflection}
//	intensity:
//	  cutoffs: [0.5]
//	  classes: [none, some, most]
type CatalogFile struct {
	Activities []catalog.Entry     `yaml:"activities"`
	Intensity  *epa.IntensityScale `yaml:"intensity"`
}

// LoadCatalogFile reads and decodes path. Unknown keys are rejected.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f CatalogFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", path, err)
	}
	return &f, nil
}

// Engine returns the catalog and intensity scale the summaries run with.
// Precedence: catalog file, then INTENSITY_CUTOFFS, then the defaults.
func (a AnalyticsConfig) Engine() (*catalog.Catalog, epa.IntensityScale, error) {
	cat := catalog.Default()
	scale := epa.DefaultIntensityScale()

	if len(a.IntensityCutoffs) > 0 {
		scale = scaleFromCutoffs(a.IntensityCutoffs)
	}

	if a.CatalogFile != "" {
		f, err := LoadCatalogFile(a.CatalogFile)
		if err != nil {
			return nil, epa.IntensityScale{}, err
		}
		if len(f.Activities) > 0 {
			cat, err = catalog.New(f.Activities...)
			if err != nil {
				return nil, epa.IntensityScale{}, err
			}
		}
		if f.Intensity != nil && !f.Intensity.IsZero() {
			scale = *f.Intensity
		}
	}

	if err := scale.Validate(); err != nil {
		return nil, epa.IntensityScale{}, err
	}
	return cat, scale, nil
}

// scaleFromCutoffs names the bands for a cutoff list. Two cutoffs keep the
// default low/medium/high names.
func scaleFromCutoffs(cutoffs []float64) epa.IntensityScale {
	def := epa.DefaultIntensityScale()
	if len(cutoffs) == len(def.Cutoffs) {
		def.Cutoffs = append([]float64(nil), cutoffs...)
		return def
	}
	classes := make([]string, 0, len(cutoffs)+2)
	classes = append(classes, def.Zero())
	for i := 1; i <= len(cutoffs)+1; i++ {
		classes = append(classes, fmt.Sprintf("intensity-%d", i))
	}
	return epa.IntensityScale{
		Cutoffs: append([]float64(nil), cutoffs...),
		Classes: classes,
	}
}

package epa

import (
	"encoding/json"
	"sort"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

// Column describes one activity kind of the matrix with its total.
// TotalCount equals the sum over all EPAs of the cell counts of the kind.
type Column struct {
	EntityType  catalog.ActivityType `json:"entity_type"`
	DisplayName string               `json:"display_name"`
	ShortName   string               `json:"short_name"`
	StyleClass  string               `json:"style_class"`
	TotalCount  int                  `json:"total_count"`
}

// EPARef identifies an EPA in the progress summary.
type EPARef struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	Title         string `json:"title"`
	ActivityCount int    `json:"activity_count"`
}

// ProgressSummary is derived from a finished matrix in one pass.
type ProgressSummary struct {
	// TotalActivities is the sum of all cell counts. An activity linked to
	// two EPAs counts twice.
	TotalActivities int `json:"total_activities"`

	// TotalEPAMappings is the number of non-empty (EPA, type) cells.
	TotalEPAMappings int `json:"total_epa_mappings"`

	// TotalEPAs is the size of the reference EPA set.
	TotalEPAs int `json:"total_epas"`

	// EPAsWithActivity is the number of rows with at least one activity.
	EPAsWithActivity int `json:"epas_with_activity"`

	// EPAsNotStarted is TotalEPAs - EPAsWithActivity.
	EPAsNotStarted int `json:"epas_not_started"`

	// MostActiveEPA is the row with the largest sum; ties by lowest id.
	// Nil when no EPA has any activity.
	MostActiveEPA *EPARef `json:"most_active_epa"`

	// LeastActiveEPA is the non-empty row with the smallest sum; ties by lowest id.
	LeastActiveEPA *EPARef `json:"least_active_epa"`

	// ActivityTypeTotals mirrors the column totals.
	ActivityTypeTotals map[catalog.ActivityType]int `json:"activity_type_totals"`
}

// CoverageMatrix is the published result of a build. Columns and Progress
// are derived from the cells on every call, so they stay consistent with
// the matrix after SetCell.
type CoverageMatrix struct {
	TraineeID string
	EPAs      []EPA
	Matrix    *Matrix

	entries []catalog.Entry
}

// Cell is a convenience for Matrix.GetCell.
func (cm *CoverageMatrix) Cell(epaID int64, t catalog.ActivityType) Cell {
	return cm.Matrix.GetCell(epaID, t)
}

// SetCell is a convenience for Matrix.SetCell.
func (cm *CoverageMatrix) SetCell(epaID int64, t catalog.ActivityType, activities []ActivitySummary) error {
	return cm.Matrix.SetCell(epaID, t, activities)
}

// Columns returns one column per catalog entry, in catalog order.
func (cm *CoverageMatrix) Columns() []Column {
	return cm.columns(cm.Matrix.counts())
}

// Column returns the column of type t.
func (cm *CoverageMatrix) Column(t catalog.ActivityType) (Column, bool) {
	for _, c := range cm.Columns() {
		if c.EntityType == t {
			return c, true
		}
	}
	return Column{}, false
}

// Progress summarizes the current cells.
func (cm *CoverageMatrix) Progress() ProgressSummary {
	counts := cm.Matrix.counts()
	return summarizeProgress(counts, cm.EPAs, cm.columns(counts))
}

// MarshalJSON encodes the matrix together with its derived columns and
// progress, all taken from the same cell snapshot.
func (cm *CoverageMatrix) MarshalJSON() ([]byte, error) {
	counts := cm.Matrix.counts()
	columns := cm.columns(counts)
	return json.Marshal(struct {
		TraineeID string          `json:"trainee_id"`
		EPAs      []EPA           `json:"epas"`
		Columns   []Column        `json:"columns"`
		Matrix    *Matrix         `json:"matrix"`
		Progress  ProgressSummary `json:"progress"`
	}{cm.TraineeID, cm.EPAs, columns, cm.Matrix, summarizeProgress(counts, cm.EPAs, columns)})
}

func (cm *CoverageMatrix) columns(counts map[cellKey]int) []Column {
	totals := make(map[catalog.ActivityType]int, len(cm.entries))
	for key, n := range counts {
		totals[key.activityType] += n
	}

	columns := make([]Column, len(cm.entries))
	for i, e := range cm.entries {
		columns[i] = Column{
			EntityType:  e.Type,
			DisplayName: e.DisplayName,
			ShortName:   e.ShortName,
			StyleClass:  e.StyleClass,
			TotalCount:  totals[e.Type],
		}
	}
	return columns
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// Builder builds coverage matrices for a fixed catalog and intensity scale.
// A Builder holds no per-call state and may be shared between goroutines.
type Builder struct {
	catalog *catalog.Catalog
	scale   IntensityScale
}

// NewBuilder validates the catalog and scale. A zero scale means the default.
func NewBuilder(cat *catalog.Catalog, scale IntensityScale) (*Builder, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, shared.Configurationf("epa", "NewBuilder", "activity catalog is required")
	}
	if scale.IsZero() {
		scale = DefaultIntensityScale()
	}
	if err := scale.Validate(); err != nil {
		return nil, err
	}
	return &Builder{catalog: cat, scale: scale}, nil
}

// BuildCoverageMatrix builds with the default intensity scale.
func BuildCoverageMatrix(traineeID string, epas []EPA, links []ActivityLink, cat *catalog.Catalog) (*CoverageMatrix, error) {
	b, err := NewBuilder(cat, IntensityScale{})
	if err != nil {
		return nil, err
	}
	return b.Build(traineeID, epas, links)
}

// Build aggregates links into a matrix with one row per EPA of the
// reference set. Fails with ErrInputIntegrity when a link points at an EPA
// outside the reference set, an activity has a type outside the catalog, or
// the same activity is supplied twice.
func (b *Builder) Build(traineeID string, epas []EPA, links []ActivityLink) (*CoverageMatrix, error) {
	const op = "BuildCoverageMatrix"

	rows, byID, err := indexEPAs(epas)
	if err != nil {
		return nil, err
	}

	type activityKey struct {
		t  catalog.ActivityType
		id int64
	}
	seen := make(map[activityKey]struct{}, len(links))
	acc := make(map[cellKey][]ActivitySummary)

	for _, link := range links {
		act := link.Activity
		if !b.catalog.Contains(act.Type) {
			return nil, shared.Integrityf("epa", op, "activity %d has unknown type %q", act.ID, act.Type)
		}
		ak := activityKey{act.Type, act.ID}
		if _, dup := seen[ak]; dup {
			return nil, shared.Integrityf("epa", op, "activity %s/%d supplied more than once", act.Type, act.ID)
		}
		seen[ak] = struct{}{}

		linked := make(map[int64]struct{}, len(link.EPAIDs))
		for _, epaID := range link.EPAIDs {
			if _, ok := byID[epaID]; !ok {
				return nil, shared.Integrityf("epa", op, "activity %s/%d links unknown EPA %d", act.Type, act.ID, epaID)
			}
			if _, again := linked[epaID]; again {
				continue
			}
			linked[epaID] = struct{}{}

			key := cellKey{epaID, act.Type}
			acc[key] = append(acc[key], summarize(act))
		}
	}

	// The matrix is private until returned, so cells are written without
	// taking its lock.
	m := newMatrix(rows, b.scale)
	m.types = make(map[catalog.ActivityType]struct{}, b.catalog.Len())
	for _, t := range b.catalog.Types() {
		m.types[t] = struct{}{}
	}
	for key, items := range acc {
		m.cells[key] = finalize(items)
	}
	for _, id := range rows {
		m.classifyRow(id)
	}

	ordered := make([]EPA, len(rows))
	for i, id := range rows {
		ordered[i] = byID[id]
	}

	return &CoverageMatrix{
		TraineeID: traineeID,
		EPAs:      ordered,
		Matrix:    m,
		entries:   b.catalog.Entries(),
	}, nil
}

// indexEPAs returns row ids sorted ascending and a lookup by id.
func indexEPAs(epas []EPA) ([]int64, map[int64]EPA, error) {
	byID := make(map[int64]EPA, len(epas))
	rows := make([]int64, 0, len(epas))
	for _, e := range epas {
		if _, dup := byID[e.ID]; dup {
			return nil, nil, shared.Integrityf("epa", "BuildCoverageMatrix", "duplicate EPA id %d in reference set", e.ID)
		}
		byID[e.ID] = e
		rows = append(rows, e.ID)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	return rows, byID, nil
}

// summarizeProgress walks a cell snapshot once.
func summarizeProgress(counts map[cellKey]int, epas []EPA, columns []Column) ProgressSummary {
	rowSums := make(map[int64]int, len(epas))
	ps := ProgressSummary{
		TotalEPAs:          len(epas),
		TotalEPAMappings:   len(counts),
		ActivityTypeTotals: make(map[catalog.ActivityType]int, len(columns)),
	}

	for key, n := range counts {
		ps.TotalActivities += n
		rowSums[key.epaID] += n
	}

	// epas is sorted by id, so strict comparisons keep the lowest id on ties.
	for _, e := range epas {
		sum := rowSums[e.ID]
		if sum == 0 {
			continue
		}
		ps.EPAsWithActivity++
		ref := &EPARef{ID: e.ID, Code: e.Code, Title: e.Title, ActivityCount: sum}
		if ps.MostActiveEPA == nil || sum > ps.MostActiveEPA.ActivityCount {
			ps.MostActiveEPA = ref
		}
		if ps.LeastActiveEPA == nil || sum < ps.LeastActiveEPA.ActivityCount {
			ps.LeastActiveEPA = ref
		}
	}
	ps.EPAsNotStarted = ps.TotalEPAs - ps.EPAsWithActivity

	for _, c := range columns {
		ps.ActivityTypeTotals[c.EntityType] = c.TotalCount
	}
	return ps
}

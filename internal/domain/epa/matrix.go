package epa

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CELL
// ══════════════════════════════════════════════════════════════════════════════

// Cell aggregates the activities of one kind mapped to one EPA.
//
// Invariants: Count == len(Activities); Activities are newest first;
// LatestDate is Activities[0].CreatedAt, or nil when Count == 0.
type Cell struct {
	Count          int               `json:"count"`
	Activities     []ActivitySummary `json:"activities"`
	LatestDate     *time.Time        `json:"latest_date"`
	IntensityClass string            `json:"intensity_class"`
}

// IsEmpty reports whether the cell holds no activities.
func (c Cell) IsEmpty() bool {
	return c.Count == 0
}

func (c Cell) clone() Cell {
	out := c
	out.Activities = make([]ActivitySummary, len(c.Activities))
	copy(out.Activities, c.Activities)
	if c.LatestDate != nil {
		t := *c.LatestDate
		out.LatestDate = &t
	}
	return out
}

// sortActivities orders newest first, ties by ascending entity id, then by
// type key so records of different kinds never compare equal.
func sortActivities(items []ActivitySummary) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.EntityType < b.EntityType
	})
}

// finalize derives Count and LatestDate from the activity list.
func finalize(activities []ActivitySummary) Cell {
	sortActivities(activities)
	cell := Cell{
		Count:      len(activities),
		Activities: activities,
	}
	if len(activities) > 0 {
		latest := activities[0].CreatedAt
		cell.LatestDate = &latest
	}
	return cell
}

// ══════════════════════════════════════════════════════════════════════════════
// MATRIX
// ══════════════════════════════════════════════════════════════════════════════

type cellKey struct {
	epaID        int64
	activityType catalog.ActivityType
}

// Matrix is a sparse EPA × activity-type grid. Only cells with at least one
// activity are stored; lookups of absent keys synthesize a zero cell.
// The set of rows is fixed at construction. Safe for concurrent readers;
// SetCell replaces a cell atomically.
type Matrix struct {
	mu     sync.RWMutex
	rows   []int64
	rowSet map[int64]struct{}
	types  map[catalog.ActivityType]struct{} // nil accepts any type
	cells  map[cellKey]Cell
	scale  IntensityScale
}

func newMatrix(rows []int64, scale IntensityScale) *Matrix {
	m := &Matrix{
		rows:   make([]int64, 0, len(rows)),
		rowSet: make(map[int64]struct{}, len(rows)),
		cells:  make(map[cellKey]Cell),
		scale:  scale,
	}
	for _, id := range rows {
		m.addRow(id)
	}
	return m
}

func (m *Matrix) addRow(epaID int64) {
	if _, ok := m.rowSet[epaID]; ok {
		return
	}
	m.rowSet[epaID] = struct{}{}
	m.rows = append(m.rows, epaID)
}

// GetCell returns the cell for (epaID, t). Never fails: an absent key yields
// a zero-count cell with no activities and no latest date.
func (m *Matrix) GetCell(epaID int64, t catalog.ActivityType) Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cell, ok := m.cells[cellKey{epaID, t}]; ok {
		return cell.clone()
	}
	return m.zeroCell()
}

// Has reports whether a non-empty cell exists for (epaID, t).
func (m *Matrix) Has(epaID int64, t catalog.ActivityType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.cells[cellKey{epaID, t}]
	return ok
}

// SetCell replaces the cell at (epaID, t). Count, ordering and LatestDate
// are re-derived from the activities, and intensity classes of the row are
// recomputed, all under one write lock. An empty activity list removes the
// cell. An EPA outside the rows or a type outside the catalog fails with
// ErrInputIntegrity and leaves the matrix unchanged.
func (m *Matrix) SetCell(epaID int64, t catalog.ActivityType, activities []ActivitySummary) error {
	items := make([]ActivitySummary, len(activities))
	copy(items, activities)
	cell := finalize(items)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rowSet[epaID]; !ok {
		return shared.Integrityf("epa", "SetCell", "EPA %d is not a row of the matrix", epaID)
	}
	if _, ok := m.types[t]; m.types != nil && !ok {
		return shared.Integrityf("epa", "SetCell", "unknown activity type %q", t)
	}
	key := cellKey{epaID, t}
	if cell.Count == 0 {
		delete(m.cells, key)
	} else {
		m.cells[key] = cell
	}
	m.classifyRow(epaID)
	return nil
}

// Rows returns the EPA ids in row order.
func (m *Matrix) Rows() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int64, len(m.rows))
	copy(out, m.rows)
	return out
}

// Row returns the cells of one EPA in the order of types.
func (m *Matrix) Row(epaID int64, types []catalog.ActivityType) []Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Cell, len(types))
	for i, t := range types {
		if cell, ok := m.cells[cellKey{epaID, t}]; ok {
			out[i] = cell.clone()
		} else {
			out[i] = m.zeroCell()
		}
	}
	return out
}

// RowTotal returns the sum of cell counts for one EPA.
func (m *Matrix) RowTotal(epaID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.rowTotal(epaID)
}

// ColumnTotal returns the sum of cell counts for one activity type.
func (m *Matrix) ColumnTotal(t catalog.ActivityType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for key, cell := range m.cells {
		if key.activityType == t {
			total += cell.Count
		}
	}
	return total
}

// PopulatedCells returns the number of non-empty cells.
func (m *Matrix) PopulatedCells() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.cells)
}

// MarshalJSON encodes the matrix as {epa_id: {activity_type: cell}}.
// Every row is present; only non-empty cells appear inside a row.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]map[catalog.ActivityType]Cell, len(m.rows))
	for _, id := range m.rows {
		out[id] = make(map[catalog.ActivityType]Cell)
	}
	for key, cell := range m.cells {
		out[key.epaID][key.activityType] = cell
	}
	return json.Marshal(out)
}

// counts copies every cell count under one read lock, so totals derived from
// it agree with each other.
func (m *Matrix) counts() map[cellKey]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[cellKey]int, len(m.cells))
	for key, cell := range m.cells {
		out[key] = cell.Count
	}
	return out
}

func (m *Matrix) rowTotal(epaID int64) int {
	total := 0
	for key, cell := range m.cells {
		if key.epaID == epaID {
			total += cell.Count
		}
	}
	return total
}

func (m *Matrix) zeroCell() Cell {
	return Cell{
		Count:          0,
		Activities:     []ActivitySummary{},
		LatestDate:     nil,
		IntensityClass: m.scale.Zero(),
	}
}

// classifyRow assigns intensity classes relative to the row maximum.
// Caller holds the write lock.
func (m *Matrix) classifyRow(epaID int64) {
	rowMax := 0
	for key, cell := range m.cells {
		if key.epaID == epaID && cell.Count > rowMax {
			rowMax = cell.Count
		}
	}
	for key, cell := range m.cells {
		if key.epaID != epaID {
			continue
		}
		cell.IntensityClass = m.scale.Classify(cell.Count, rowMax)
		m.cells[key] = cell
	}
}

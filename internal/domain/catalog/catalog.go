// Package catalog holds the registry of activity kinds a trainee can record.
// The catalog is an injected value rather than a global: the coverage matrix
// takes its fixed, ordered column set from whichever catalog it is given.
package catalog

import (
	"strings"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY TYPES
// ══════════════════════════════════════════════════════════════════════════════

// ActivityType is the stable key of an activity kind.
type ActivityType string

// String returns the key.
func (t ActivityType) String() string {
	return string(t)
}

// Known activity kinds.
const (
	TypeReflection             ActivityType = "reflection"
	TypeSLECaseBasedDiscussion ActivityType = "sle_cbd"
	TypeSLEDOPS                ActivityType = "sle_dops"
	TypeSLEMiniCEX             ActivityType = "sle_mini_cex"
	TypeSLEDtCT                ActivityType = "sle_dtct"
	TypeSLEDENTL               ActivityType = "sle_dentl"
	TypeSLEProcedureLog        ActivityType = "sle_procedure_log"
	TypeProtectedLearningTime  ActivityType = "protected_learning_time"
	TypeSignificantEvent       ActivityType = "significant_event"
	TypeQualityImprovement     ActivityType = "quality_improvement"
)

// Group classifies activity kinds for display.
type Group string

const (
	GroupReflection Group = "reflection"
	GroupSLE        Group = "sle"
	GroupLearning   Group = "learning"
	GroupGovernance Group = "governance"
)

// Entry describes one activity kind with its display metadata.
type Entry struct {
	// Type is the stable key.
	Type ActivityType `json:"entity_type" yaml:"type"`

	// DisplayName is the full label, e.g. "Case-based Discussion".
	DisplayName string `json:"display_name" yaml:"display_name"`

	// ShortName is the column header label, e.g. "CbD".
	ShortName string `json:"short_name" yaml:"short_name"`

	// StyleClass is an opaque presentation token passed through untouched.
	StyleClass string `json:"style_class" yaml:"style_class"`

	// Group is the display group.
	Group Group `json:"group" yaml:"group"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is an immutable ordered set of activity kinds.
type Catalog struct {
	entries []Entry
	index   map[ActivityType]int
}

// New builds a catalog from entries, preserving their order.
// Returns ErrInvalidConfiguration on empty or duplicate keys.
func New(entries ...Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, shared.Configurationf("catalog", "New", "catalog must contain at least one activity type")
	}

	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[ActivityType]int, len(entries)),
	}

	for _, e := range entries {
		e.Type = ActivityType(strings.TrimSpace(string(e.Type)))
		if e.Type == "" {
			return nil, shared.Configurationf("catalog", "New", "activity type key cannot be empty")
		}
		if _, dup := c.index[e.Type]; dup {
			return nil, shared.Configurationf("catalog", "New", "duplicate activity type %q", e.Type)
		}
		if e.DisplayName == "" {
			e.DisplayName = string(e.Type)
		}
		if e.ShortName == "" {
			e.ShortName = e.DisplayName
		}
		c.index[e.Type] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	return c, nil
}

// MustNew is like New but panics on error. Intended for static definitions.
func MustNew(entries ...Entry) *Catalog {
	c, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return c
}

// Entries returns a copy of the ordered entries.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Types returns the ordered activity type keys.
func (c *Catalog) Types() []ActivityType {
	out := make([]ActivityType, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Type
	}
	return out
}

// Len returns the number of activity kinds.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup returns the entry for t.
func (c *Catalog) Lookup(t ActivityType) (Entry, bool) {
	i, ok := c.index[t]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Contains reports whether t is a known kind.
func (c *Catalog) Contains(t ActivityType) bool {
	_, ok := c.index[t]
	return ok
}

// Position returns the column position of t, or -1.
func (c *Catalog) Position(t ActivityType) int {
	i, ok := c.index[t]
	if !ok {
		return -1
	}
	return i
}

// ByGroup returns the entries of a group in catalog order.
func (c *Catalog) ByGroup(g Group) []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.Group == g {
			out = append(out, e)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// DefaultEntries returns the standard activity kinds in column order.
func DefaultEntries() []Entry {
	return []Entry{
		{Type: TypeReflection, DisplayName: "Reflection", ShortName: "Reflection", StyleClass: "activity-reflection", Group: GroupReflection},
		{Type: TypeSLECaseBasedDiscussion, DisplayName: "Case-based Discussion", ShortName: "CbD", StyleClass: "activity-sle", Group: GroupSLE},
		{Type: TypeSLEDOPS, DisplayName: "Direct Observation of Procedural Skills", ShortName: "DOPS", StyleClass: "activity-sle", Group: GroupSLE},
		{Type: TypeSLEMiniCEX, DisplayName: "Mini Clinical Evaluation Exercise", ShortName: "Mini-CEX", StyleClass: "activity-sle", Group: GroupSLE},
		{Type: TypeSLEDtCT, DisplayName: "Developing the Clinical Teacher", ShortName: "DtCT", StyleClass: "activity-sle", Group: GroupSLE},
		{Type: TypeSLEDENTL, DisplayName: "Direct Evaluation of Non-Technical Learning", ShortName: "DENTL", StyleClass: "activity-sle", Group: GroupSLE},
		{Type: TypeSLEProcedureLog, DisplayName: "Procedure Log", ShortName: "PLog", StyleClass: "activity-sle", Group: GroupSLE},
		{Type: TypeProtectedLearningTime, DisplayName: "Protected Learning Time", ShortName: "PLT", StyleClass: "activity-plt", Group: GroupLearning},
		{Type: TypeSignificantEvent, DisplayName: "Significant Event", ShortName: "SE", StyleClass: "activity-significant-event", Group: GroupGovernance},
		{Type: TypeQualityImprovement, DisplayName: "Quality Improvement Upload", ShortName: "QI", StyleClass: "activity-qi", Group: GroupGovernance},
	}
}

// Default returns the standard catalog.
func Default() *Catalog {
	return MustNew(DefaultEntries()...)
}

// Package epa builds the coverage matrix of a trainee's activities against
// the Entrustable Professional Activities framework.
//
// The package is pure: it consumes an already-consistent snapshot of
// activities and EPA links and publishes a finished CoverageMatrix. It never
// queries storage and keeps no state between calls.
package epa

import (
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFERENCE DATA
// ══════════════════════════════════════════════════════════════════════════════

// EPA is an Entrustable Professional Activity. Immutable reference data.
type EPA struct {
	ID          int64  `json:"id" yaml:"id"`
	Code        string `json:"code" yaml:"code"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

// Activity is a trainee activity record owned by the persistence layer.
// The engine only reads it.
type Activity struct {
	// ID is unique within its Type.
	ID int64 `json:"id" yaml:"id"`

	// Type is the catalog key of the activity kind.
	Type catalog.ActivityType `json:"type" yaml:"type"`

	// Title is the display title.
	Title string `json:"title" yaml:"title"`

	// CreatedAt is when the activity was recorded.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// ActionReference is where a reader can open the activity; passed through.
	ActionReference string `json:"action_reference,omitempty" yaml:"action_reference"`
}

// ActivityLink pairs an activity with the EPAs it is mapped to.
type ActivityLink struct {
	Activity Activity `json:"activity" yaml:"activity"`
	EPAIDs   []int64  `json:"epa_ids" yaml:"epa_ids"`
}

// ActivitySummary is the compact form of an activity stored inside a cell.
type ActivitySummary struct {
	EntityID   int64                `json:"entity_id"`
	Title      string               `json:"title"`
	CreatedAt  time.Time            `json:"created_at"`
	ActionURL  string               `json:"action_url,omitempty"`
	EntityType catalog.ActivityType `json:"entity_type"`
}

func summarize(a Activity) ActivitySummary {
	return ActivitySummary{
		EntityID:   a.ID,
		Title:      a.Title,
		CreatedAt:  a.CreatedAt,
		ActionURL:  a.ActionReference,
		EntityType: a.Type,
	}
}

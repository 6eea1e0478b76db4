// Package portfolio consolidates a trainee's portfolio completion into one
// summary record. Counting is done by the persistence layer; this package
// only classifies and consolidates.
package portfolio

import (
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
)

// Category is a tracked portfolio requirement.
type Category string

const (
	CategoryCBD          Category = "sle_cbd"
	CategoryDOPS         Category = "sle_dops"
	CategoryMiniCEX      Category = "sle_mini_cex"
	CategoryDtCT         Category = "sle_dtct"
	CategoryDENTL        Category = "sle_dentl"
	CategoryProcedureLog Category = "sle_procedure_log"
	CategoryPLT          Category = "protected_learning_time"
	CategoryReflection   Category = "reflection"
	CategoryLearningNeed Category = "learning_need"
)

var categories = []Category{
	CategoryCBD,
	CategoryDOPS,
	CategoryMiniCEX,
	CategoryDtCT,
	CategoryDENTL,
	CategoryProcedureLog,
	CategoryPLT,
	CategoryReflection,
	CategoryLearningNeed,
}

var categoryLabels = map[Category]string{
	CategoryCBD:          "Case-Based Discussion",
	CategoryDOPS:         "DOPS",
	CategoryMiniCEX:      "Mini-CEX",
	CategoryDtCT:         "DtCT",
	CategoryDENTL:        "DENTL",
	CategoryProcedureLog: "Procedure log",
	CategoryPLT:          "Protected learning time",
	CategoryReflection:   "Reflection",
	CategoryLearningNeed: "Learning need",
}

// Categories returns the tracked categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Label returns the display label.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ActivityType returns the catalog type counted by the category, if any.
// Learning needs are not catalog activities.
func (c Category) ActivityType() (catalog.ActivityType, bool) {
	if c == CategoryLearningNeed {
		return "", false
	}
	for _, known := range categories {
		if known == c {
			return catalog.ActivityType(c), true
		}
	}
	return "", false
}

// ══════════════════════════════════════════════════════════════════════════════
// INPUT
// ══════════════════════════════════════════════════════════════════════════════

// Count is a completed/required pair for one category.
type Count struct {
	Completed int `json:"completed" yaml:"completed"`
	Total     int `json:"total" yaml:"total"`
}

// Counts holds the pair of every tracked category.
type Counts struct {
	CBD          Count `json:"sle_cbd" yaml:"sle_cbd"`
	DOPS         Count `json:"sle_dops" yaml:"sle_dops"`
	MiniCEX      Count `json:"sle_mini_cex" yaml:"sle_mini_cex"`
	DtCT         Count `json:"sle_dtct" yaml:"sle_dtct"`
	DENTL        Count `json:"sle_dentl" yaml:"sle_dentl"`
	ProcedureLog Count `json:"sle_procedure_log" yaml:"sle_procedure_log"`
	PLT          Count `json:"protected_learning_time" yaml:"protected_learning_time"`
	Reflection   Count `json:"reflection" yaml:"reflection"`
	LearningNeed Count `json:"learning_need" yaml:"learning_need"`
}

func (c *Counts) field(cat Category) *Count {
	switch cat {
	case CategoryCBD:
		return &c.CBD
	case CategoryDOPS:
		return &c.DOPS
	case CategoryMiniCEX:
		return &c.MiniCEX
	case CategoryDtCT:
		return &c.DtCT
	case CategoryDENTL:
		return &c.DENTL
	case CategoryProcedureLog:
		return &c.ProcedureLog
	case CategoryPLT:
		return &c.PLT
	case CategoryReflection:
		return &c.Reflection
	case CategoryLearningNeed:
		return &c.LearningNeed
	}
	return nil
}

// Get returns the pair for cat. Unknown categories yield a zero pair.
func (c Counts) Get(cat Category) Count {
	if f := c.field(cat); f != nil {
		return *f
	}
	return Count{}
}

// Set stores the pair for cat and reports whether cat is tracked.
func (c *Counts) Set(cat Category, v Count) bool {
	f := c.field(cat)
	if f == nil {
		return false
	}
	*f = v
	return true
}

// Review is the sign-off state of one review panel.
type Review struct {
	SupervisorSignedOff bool       `json:"supervisor_signed_off" yaml:"supervisor_signed_off"`
	PanelSignedOff      bool       `json:"panel_signed_off" yaml:"panel_signed_off"`
	Outcome             string     `json:"outcome,omitempty" yaml:"outcome"`
	SignedOffAt         *time.Time `json:"signed_off_at,omitempty" yaml:"signed_off_at"`
}

// Signatures returns how many of the two sign-offs are present.
func (r Review) Signatures() int {
	n := 0
	if r.SupervisorSignedOff {
		n++
	}
	if r.PanelSignedOff {
		n++
	}
	return n
}

// Milestones holds the two review panels of the training year.
type Milestones struct {
	Interim Review `json:"interim_review" yaml:"interim_review"`
	Final   Review `json:"final_review" yaml:"final_review"`
}

package portfolio

import (
	"encoding/json"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/status"
)

// requiredSignatures per review panel: supervisor and panel.
const requiredSignatures = 2

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED VALUES
// ══════════════════════════════════════════════════════════════════════════════

// Progress is a classified completed/total pair. The status is always
// status.Classify(completed, total); there is no way to set it directly.
type Progress struct {
	category  Category
	completed int
	total     int
	status    status.Status
}

func newProgress(cat Category, c Count) Progress {
	return Progress{
		category:  cat,
		completed: c.Completed,
		total:     c.Total,
		status:    status.Classify(c.Completed, c.Total),
	}
}

func (p Progress) Category() Category    { return p.category }
func (p Progress) Completed() int        { return p.completed }
func (p Progress) Total() int            { return p.total }
func (p Progress) Status() status.Status { return p.status }

// Remaining returns how many more items make the category complete.
func (p Progress) Remaining() int {
	if p.completed >= p.total {
		return 0
	}
	if p.completed < 0 {
		return p.total
	}
	return p.total - p.completed
}

type progressJSON struct {
	Category    Category      `json:"category"`
	Label       string        `json:"label"`
	Completed   int           `json:"completed"`
	Total       int           `json:"total"`
	Remaining   int           `json:"remaining"`
	Status      status.Status `json:"status"`
	StatusLabel string        `json:"status_label"`
}

// MarshalJSON implements json.Marshaler.
func (p Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{
		Category:    p.category,
		Label:       p.category.Label(),
		Completed:   p.completed,
		Total:       p.total,
		Remaining:   p.Remaining(),
		Status:      p.status,
		StatusLabel: p.status.Label(),
	})
}

// ReviewProgress is a review panel with its derived status.
type ReviewProgress struct {
	review Review
	status status.Status
}

func newReviewProgress(r Review) ReviewProgress {
	return ReviewProgress{
		review: r,
		status: status.Classify(r.Signatures(), requiredSignatures),
	}
}

func (r ReviewProgress) Review() Review        { return r.review }
func (r ReviewProgress) Status() status.Status { return r.status }

// MarshalJSON implements json.Marshaler.
func (r ReviewProgress) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Review
		Status      status.Status `json:"status"`
		StatusLabel string        `json:"status_label"`
	}{
		Review:      r.review,
		Status:      r.status,
		StatusLabel: r.status.Label(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// Summary is the consolidated portfolio record of one trainee.
//
// Inputs are kept alongside the derived values; every derived value is
// rebuilt by UpdateStatuses.
type Summary struct {
	TraineeID string

	counts     Counts
	milestones Milestones

	categories        []Progress
	interim           ReviewProgress
	final             ReviewProgress
	categoriesTracked int
	categoriesDone    int
	completionPercent int
	overall           status.Status
}

// Summarize builds a fully derived summary from counts and milestones.
func Summarize(counts Counts, milestones Milestones) *Summary {
	s := &Summary{counts: counts, milestones: milestones}
	s.UpdateStatuses()
	return s
}

// UpdateStatuses recomputes every derived field from the stored inputs.
// It is the only place statuses are assigned, and it is idempotent.
func (s *Summary) UpdateStatuses() {
	s.categories = make([]Progress, len(categories))
	s.categoriesTracked = 0
	s.categoriesDone = 0

	done, required := 0, 0
	for i, cat := range categories {
		p := newProgress(cat, s.counts.Get(cat))
		s.categories[i] = p

		if p.total > 0 {
			s.categoriesTracked++
			required += p.total
			done += min(max(p.completed, 0), p.total)
		}
		if p.total > 0 && p.status == status.Complete {
			s.categoriesDone++
		}
	}

	s.completionPercent = 0
	if required > 0 {
		s.completionPercent = done * 100 / required
	}

	s.interim = newReviewProgress(s.milestones.Interim)
	s.final = newReviewProgress(s.milestones.Final)
	s.overall = status.Classify(s.categoriesDone, s.categoriesTracked)
}

// SetCount replaces the pair of one category and re-derives the summary.
// Returns false for an untracked category.
func (s *Summary) SetCount(cat Category, c Count) bool {
	if !s.counts.Set(cat, c) {
		return false
	}
	s.UpdateStatuses()
	return true
}

// SetMilestones replaces the review states and re-derives the summary.
func (s *Summary) SetMilestones(m Milestones) {
	s.milestones = m
	s.UpdateStatuses()
}

// Counts returns the stored input counts.
func (s *Summary) Counts() Counts { return s.counts }

// Milestones returns the stored review states.
func (s *Summary) Milestones() Milestones { return s.milestones }

// Categories returns the classified categories in display order.
func (s *Summary) Categories() []Progress {
	out := make([]Progress, len(s.categories))
	copy(out, s.categories)
	return out
}

// Category returns the progress of one category.
func (s *Summary) Category(cat Category) (Progress, bool) {
	for _, p := range s.categories {
		if p.category == cat {
			return p, true
		}
	}
	return Progress{}, false
}

// Status returns the status of one category, NotStarted when untracked.
func (s *Summary) Status(cat Category) status.Status {
	if p, ok := s.Category(cat); ok {
		return p.status
	}
	return status.NotStarted
}

func (s *Summary) InterimReview() ReviewProgress { return s.interim }
func (s *Summary) FinalReview() ReviewProgress   { return s.final }
func (s *Summary) OverallStatus() status.Status  { return s.overall }
func (s *Summary) CompletionPercent() int        { return s.completionPercent }

// SLEs returns the progress of the six supervised learning event subtypes.
func (s *Summary) SLEs() []Progress {
	out := make([]Progress, 0, 6)
	for _, p := range s.categories {
		switch p.category {
		case CategoryCBD, CategoryDOPS, CategoryMiniCEX, CategoryDtCT, CategoryDENTL, CategoryProcedureLog:
			out = append(out, p)
		}
	}
	return out
}

type summaryJSON struct {
	TraineeID          string         `json:"trainee_id,omitempty"`
	Categories         []Progress     `json:"categories"`
	InterimReview      ReviewProgress `json:"interim_review"`
	FinalReview        ReviewProgress `json:"final_review"`
	CategoriesTracked  int            `json:"categories_tracked"`
	CategoriesComplete int            `json:"categories_complete"`
	CompletionPercent  int            `json:"completion_percent"`
	OverallStatus      status.Status  `json:"overall_status"`
	OverallLabel       string         `json:"overall_status_label"`
}

// MarshalJSON implements json.Marshaler.
func (s *Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		TraineeID:          s.TraineeID,
		Categories:         s.categories,
		InterimReview:      s.interim,
		FinalReview:        s.final,
		CategoriesTracked:  s.categoriesTracked,
		CategoriesComplete: s.categoriesDone,
		CompletionPercent:  s.completionPercent,
		OverallStatus:      s.overall,
		OverallLabel:       s.overall.Label(),
	})
}

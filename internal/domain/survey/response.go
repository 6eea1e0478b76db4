package survey

import (
	"sort"
	"time"
)

// Response is one submitted questionnaire. Scores may omit questions;
// the sentinel marks "not observed". Comments is keyed by comment field name.
type Response struct {
	ID                string            `json:"id" yaml:"id"`
	QuestionnaireCode string            `json:"questionnaire_code" yaml:"questionnaire_code"`
	SubmittedAt       time.Time         `json:"submitted_at" yaml:"submitted_at"`
	Scores            map[string]int    `json:"scores" yaml:"scores"`
	Comments          map[string]string `json:"comments,omitempty" yaml:"comments"`
}

// ResponseSet is the input of one aggregation call.
type ResponseSet struct {
	Responses []Response `json:"responses" yaml:"responses"`

	// TotalSubmitted counts every submitted response, including ones the
	// collaborator did not pass in full. Zero means len(Responses).
	TotalSubmitted int `json:"total_submitted" yaml:"total_submitted"`
}

func (r Response) clone() Response {
	out := r
	if r.Scores != nil {
		out.Scores = make(map[string]int, len(r.Scores))
		for k, v := range r.Scores {
			out.Scores[k] = v
		}
	}
	if r.Comments != nil {
		out.Comments = make(map[string]string, len(r.Comments))
		for k, v := range r.Comments {
			out.Comments[k] = v
		}
	}
	return out
}

// recent returns copies of the newest responses, ties by ascending id,
// truncated to limit. The input slice is not reordered.
func recent(responses []Response, limit int) []Response {
	if limit <= 0 {
		return []Response{}
	}

	ordered := make([]Response, len(responses))
	copy(ordered, responses)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.After(b.SubmittedAt)
		}
		return a.ID < b.ID
	})

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	for i := range ordered {
		ordered[i] = ordered[i].clone()
	}
	return ordered
}

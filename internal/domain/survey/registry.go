package survey

import (
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// Registry holds the instruments known to the service, in registration order.
type Registry struct {
	ordered []Questionnaire
	byCode  map[string]int
}

// NewRegistry validates each questionnaire and rejects duplicate codes.
func NewRegistry(qs ...Questionnaire) (*Registry, error) {
	r := &Registry{byCode: make(map[string]int, len(qs))}
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byCode[q.Code]; dup {
			return nil, shared.Configurationf("survey", "NewRegistry", "duplicate questionnaire %q", q.Code)
		}
		r.byCode[q.Code] = len(r.ordered)
		r.ordered = append(r.ordered, q.clone())
	}
	return r, nil
}

// DefaultRegistry returns MSF and PSQ with the given recent window.
// A non-positive window keeps each instrument's default.
func DefaultRegistry(recentLimit int) *Registry {
	msf, psq := MSF(), PSQ()
	if recentLimit > 0 {
		msf = msf.WithRecentLimit(recentLimit)
		psq = psq.WithRecentLimit(recentLimit)
	}
	r, err := NewRegistry(msf, psq)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the questionnaire for code.
func (r *Registry) Lookup(code string) (Questionnaire, error) {
	i, ok := r.byCode[code]
	if !ok {
		return Questionnaire{}, shared.WrapError("survey", "Lookup", shared.ErrNotFound,
			"questionnaire "+code, shared.ErrQuestionnaireNotFound)
	}
	return r.ordered[i].clone(), nil
}

// All returns every questionnaire in registration order.
func (r *Registry) All() []Questionnaire {
	out := make([]Questionnaire, len(r.ordered))
	for i, q := range r.ordered {
		out[i] = q.clone()
	}
	return out
}

// Codes returns the registered codes in order.
func (r *Registry) Codes() []string {
	codes := make([]string, len(r.ordered))
	for i, q := range r.ordered {
		codes[i] = q.Code
	}
	return codes
}

// Aggregate looks up code and aggregates set with it. Responses carrying a
// code that is not registered fail with ErrInputIntegrity.
func (r *Registry) Aggregate(code string, set ResponseSet) (*Digest, error) {
	for i, resp := range set.Responses {
		if resp.QuestionnaireCode == "" {
			continue
		}
		if _, ok := r.byCode[resp.QuestionnaireCode]; !ok {
			return nil, shared.Integrityf("survey", "AggregateSurveyResponses",
				"response %d references unknown questionnaire %q", i, resp.QuestionnaireCode)
		}
	}
	q, err := r.Lookup(code)
	if err != nil {
		return nil, err
	}
	return Aggregate(q, set)
}

// Package survey aggregates raw questionnaire responses into result digests.
//
// One engine serves every instrument: multi-source feedback and patient
// satisfaction questionnaires differ only in their Questionnaire definition.
package survey

import (
	"strings"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// DefaultSentinel marks a score as "not observed / not applicable".
const DefaultSentinel = 999

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION
// ══════════════════════════════════════════════════════════════════════════════

// Question is one scored item of an instrument.
type Question struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// Topic groups related questions. Each question belongs to at most one topic.
type Topic struct {
	Key       string   `json:"key" yaml:"key"`
	Title     string   `json:"title" yaml:"title"`
	Questions []string `json:"questions" yaml:"questions"`
}

// CommentFields names the two free-text fields of a response.
type CommentFields struct {
	Positive    string `json:"positive" yaml:"positive"`
	Improvement string `json:"improvement" yaml:"improvement"`
}

// Scale is the declared score range, sentinel excluded. Aggregation does
// not range-check scores against it.
type Scale struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Contains reports whether score is within the scale.
func (s Scale) Contains(score int) bool {
	return score >= s.Min && score <= s.Max
}

// Questionnaire configures the aggregation engine for one instrument.
type Questionnaire struct {
	Code          string        `json:"code" yaml:"code"`
	Title         string        `json:"title" yaml:"title"`
	Questions     []Question    `json:"questions" yaml:"questions"`
	Topics        []Topic       `json:"topics" yaml:"topics"`
	Sentinel      int           `json:"sentinel" yaml:"sentinel"`
	CommentFields CommentFields `json:"comment_fields" yaml:"comment_fields"`
	Scale         Scale         `json:"scale" yaml:"scale"`

	// RecentLimit bounds Digest.RecentResponses. Zero exposes none.
	RecentLimit int `json:"recent_limit" yaml:"recent_limit"`
}

// HasTopics reports whether the instrument has a topic layer.
func (q Questionnaire) HasTopics() bool {
	return len(q.Topics) > 0
}

// QuestionKeys returns the question keys in definition order.
func (q Questionnaire) QuestionKeys() []string {
	keys := make([]string, len(q.Questions))
	for i, question := range q.Questions {
		keys[i] = question.Key
	}
	return keys
}

// WithRecentLimit returns a copy with a different recent window.
func (q Questionnaire) WithRecentLimit(n int) Questionnaire {
	q.RecentLimit = n
	return q
}

// Validate checks that the definition can drive an aggregation.
func (q Questionnaire) Validate() error {
	fail := func(format string, args ...any) error {
		return shared.Configurationf("survey", "Questionnaire", format, args...)
	}

	if strings.TrimSpace(q.Code) == "" {
		return fail("code is required")
	}
	if len(q.Questions) == 0 {
		return fail("%s: at least one question is required", q.Code)
	}
	if q.Scale.Min > q.Scale.Max {
		return fail("%s: scale min %d exceeds max %d", q.Code, q.Scale.Min, q.Scale.Max)
	}
	if q.Scale.Contains(q.Sentinel) {
		return fail("%s: sentinel %d lies inside the score scale", q.Code, q.Sentinel)
	}
	if q.RecentLimit < 0 {
		return fail("%s: recent limit must not be negative", q.Code)
	}
	if q.CommentFields.Positive == "" || q.CommentFields.Improvement == "" {
		return fail("%s: both comment fields are required", q.Code)
	}
	if q.CommentFields.Positive == q.CommentFields.Improvement {
		return fail("%s: comment fields must differ", q.Code)
	}

	known := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if strings.TrimSpace(question.Key) == "" {
			return fail("%s: question key is empty", q.Code)
		}
		if _, dup := known[question.Key]; dup {
			return fail("%s: duplicate question %q", q.Code, question.Key)
		}
		known[question.Key] = struct{}{}
	}

	topics := make(map[string]struct{}, len(q.Topics))
	owner := make(map[string]string, len(q.Questions))
	for _, topic := range q.Topics {
		if strings.TrimSpace(topic.Key) == "" {
			return fail("%s: topic key is empty", q.Code)
		}
		if _, dup := topics[topic.Key]; dup {
			return fail("%s: duplicate topic %q", q.Code, topic.Key)
		}
		topics[topic.Key] = struct{}{}
		if len(topic.Questions) == 0 {
			return fail("%s: topic %q has no questions", q.Code, topic.Key)
		}
		for _, key := range topic.Questions {
			if _, ok := known[key]; !ok {
				return fail("%s: topic %q references unknown question %q", q.Code, topic.Key, key)
			}
			if prev, taken := owner[key]; taken {
				return fail("%s: question %q is in topics %q and %q", q.Code, key, prev, topic.Key)
			}
			owner[key] = topic.Key
		}
	}

	return nil
}

func (q Questionnaire) clone() Questionnaire {
	out := q
	out.Questions = append([]Question(nil), q.Questions...)
	out.Topics = make([]Topic, len(q.Topics))
	for i, t := range q.Topics {
		t.Questions = append([]string(nil), t.Questions...)
		out.Topics[i] = t
	}
	return out
}

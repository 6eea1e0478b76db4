package survey

import (
	"strings"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// Digest is the statistical summary of one instrument's responses.
//
// Averages are computed over present, non-sentinel scores only. A question,
// topic or overall average with no contributing score is undefined and is
// absent from its map (nil for OverallAverage) rather than reported as zero.
type Digest struct {
	Questionnaire  Questionnaire `json:"questionnaire"`
	TotalResponses int           `json:"total_responses"`

	PerQuestionAverage      map[string]float64     `json:"per_question_average"`
	PerQuestionResponses    map[string]int         `json:"per_question_responses"`
	PerQuestionNotObserved  map[string]int         `json:"per_question_not_observed"`
	PerQuestionDistribution map[string]map[int]int `json:"per_question_distribution"`
	PerTopicAverage         map[string]float64     `json:"per_topic_average"`
	OverallAverage          *float64               `json:"overall_average"`

	PositiveComments    []string `json:"positive_comments"`
	ImprovementComments []string `json:"improvement_comments"`

	RecentResponses []Response `json:"recent_responses"`
}

// QuestionAverage returns the average of key and whether it is defined.
func (d *Digest) QuestionAverage(key string) (float64, bool) {
	v, ok := d.PerQuestionAverage[key]
	return v, ok
}

// TopicAverage returns the average of a topic and whether it is defined.
func (d *Digest) TopicAverage(key string) (float64, bool) {
	v, ok := d.PerTopicAverage[key]
	return v, ok
}

type tally struct {
	sum         int
	n           int
	notObserved int
	histogram   map[int]int
}

// Aggregate computes the digest of set for questionnaire q.
//
// Fails with ErrInvalidConfiguration when q is malformed and with
// ErrInputIntegrity when a response belongs to another instrument, scores an
// unknown question or repeats a response id. It also fails when
// TotalSubmitted is smaller than the number of responses supplied. Scores
// outside q.Scale are counted as given.
func Aggregate(q Questionnaire, set ResponseSet) (*Digest, error) {
	const op = "AggregateSurveyResponses"

	if err := q.Validate(); err != nil {
		return nil, err
	}

	total := set.TotalSubmitted
	if total == 0 {
		total = len(set.Responses)
	}
	if total < len(set.Responses) {
		return nil, shared.Integrityf("survey", op,
			"%s: total submitted %d is less than %d responses supplied", q.Code, total, len(set.Responses))
	}

	tallies := make(map[string]*tally, len(q.Questions))
	for _, question := range q.Questions {
		tallies[question.Key] = &tally{histogram: make(map[int]int)}
	}

	positive := []string{}
	improvement := []string{}
	ids := make(map[string]struct{}, len(set.Responses))

	for i, resp := range set.Responses {
		if resp.QuestionnaireCode != "" && resp.QuestionnaireCode != q.Code {
			return nil, shared.Integrityf("survey", op,
				"response %d references questionnaire %q, expected %q", i, resp.QuestionnaireCode, q.Code)
		}
		if resp.ID != "" {
			if _, dup := ids[resp.ID]; dup {
				return nil, shared.Integrityf("survey", op, "response %s supplied more than once", resp.ID)
			}
			ids[resp.ID] = struct{}{}
		}

		for key, score := range resp.Scores {
			t, ok := tallies[key]
			if !ok {
				return nil, shared.Integrityf("survey", op, "response %d scores unknown question %q", i, key)
			}
			if score == q.Sentinel {
				t.notObserved++
				continue
			}
			t.sum += score
			t.n++
			t.histogram[score]++
		}

		if c := strings.TrimSpace(resp.Comments[q.CommentFields.Positive]); c != "" {
			positive = append(positive, c)
		}
		if c := strings.TrimSpace(resp.Comments[q.CommentFields.Improvement]); c != "" {
			improvement = append(improvement, c)
		}
	}

	d := &Digest{
		Questionnaire:           q.clone(),
		TotalResponses:          total,
		PerQuestionAverage:      make(map[string]float64, len(q.Questions)),
		PerQuestionResponses:    make(map[string]int, len(q.Questions)),
		PerQuestionNotObserved:  make(map[string]int, len(q.Questions)),
		PerQuestionDistribution: make(map[string]map[int]int, len(q.Questions)),
		PerTopicAverage:         make(map[string]float64, len(q.Topics)),
		PositiveComments:        positive,
		ImprovementComments:     improvement,
		RecentResponses:         recent(set.Responses, q.RecentLimit),
	}

	for _, question := range q.Questions {
		t := tallies[question.Key]
		d.PerQuestionResponses[question.Key] = t.n
		d.PerQuestionNotObserved[question.Key] = t.notObserved
		d.PerQuestionDistribution[question.Key] = t.histogram
		if t.n > 0 {
			d.PerQuestionAverage[question.Key] = float64(t.sum) / float64(t.n)
		}
	}

	if q.HasTopics() {
		for _, topic := range q.Topics {
			if avg, ok := meanOf(d.PerQuestionAverage, topic.Questions); ok {
				d.PerTopicAverage[topic.Key] = avg
			}
		}
		d.OverallAverage = meanOfAll(d.PerTopicAverage, topicKeys(q.Topics))
	} else {
		d.OverallAverage = meanOfAll(d.PerQuestionAverage, q.QuestionKeys())
	}

	return d, nil
}

// meanOf averages the defined values of keys, in key order.
func meanOf(values map[string]float64, keys []string) (float64, bool) {
	sum, n := 0.0, 0
	for _, k := range keys {
		if v, ok := values[k]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func meanOfAll(values map[string]float64, keys []string) *float64 {
	avg, ok := meanOf(values, keys)
	if !ok {
		return nil
	}
	return &avg
}

func topicKeys(topics []Topic) []string {
	keys := make([]string, len(topics))
	for i, t := range topics {
		keys[i] = t.Key
	}
	return keys
}

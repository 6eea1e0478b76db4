package survey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

func TestInstruments(t *testing.T) {
	msf := MSF()
	require.NoError(t, msf.Validate())
	assert.Len(t, msf.Questions, 17)
	assert.Len(t, msf.Topics, 3)

	covered := 0
	for _, topic := range msf.Topics {
		covered += len(topic.Questions)
	}
	assert.Equal(t, 17, covered)

	psq := PSQ()
	require.NoError(t, psq.Validate())
	assert.Len(t, psq.Questions, 12)
	assert.False(t, psq.HasTopics())
	assert.Equal(t, DefaultSentinel, psq.Sentinel)
}

func TestQuestionnaire_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Questionnaire)
	}{
		{"no code", func(q *Questionnaire) { q.Code = "" }},
		{"no questions", func(q *Questionnaire) { q.Questions = nil }},
		{"duplicate question", func(q *Questionnaire) { q.Questions = append(q.Questions, Question{Key: "q1"}) }},
		{"topic with unknown question", func(q *Questionnaire) { q.Topics[0].Questions = []string{"q9"} }},
		{"question in two topics", func(q *Questionnaire) { q.Topics[1].Questions = []string{"q1"} }},
		{"duplicate topic", func(q *Questionnaire) { q.Topics[1].Key = "alpha" }},
		{"sentinel inside scale", func(q *Questionnaire) { q.Sentinel = 3 }},
		{"inverted scale", func(q *Questionnaire) { q.Scale = Scale{Min: 5, Max: 1} }},
		{"negative recent limit", func(q *Questionnaire) { q.RecentLimit = -1 }},
		{"same comment field", func(q *Questionnaire) { q.CommentFields.Improvement = "good" }},
		{"missing comment field", func(q *Questionnaire) { q.CommentFields.Positive = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := twoTopicQuestionnaire()
			tt.mutate(&q)
			err := q.Validate()
			require.Error(t, err)
			assert.True(t, shared.IsInvalidConfiguration(err))
		})
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(3)
	assert.Equal(t, []string{CodeMSF, CodePSQ}, r.Codes())

	q, err := r.Lookup(CodePSQ)
	require.NoError(t, err)
	assert.Equal(t, 3, q.RecentLimit)

	_, err = r.Lookup("nope")
	assert.True(t, shared.IsNotFound(err))
	assert.ErrorIs(t, err, shared.ErrQuestionnaireNotFound)

	_, err = NewRegistry(MSF(), MSF())
	assert.True(t, shared.IsInvalidConfiguration(err))
}

func TestRegistry_AggregateUnknownCode(t *testing.T) {
	r := DefaultRegistry(0)

	_, err := r.Aggregate(CodeMSF, ResponseSet{Responses: []Response{{ID: "a", QuestionnaireCode: "xyz"}}})
	assert.True(t, shared.IsInputIntegrity(err))

	_, err = r.Aggregate(CodeMSF, ResponseSet{Responses: []Response{{ID: "a", QuestionnaireCode: CodePSQ}}})
	assert.True(t, shared.IsInputIntegrity(err))

	d, err := r.Aggregate(CodePSQ, ResponseSet{Responses: []Response{
		{ID: "a", QuestionnaireCode: CodePSQ, Scores: map[string]int{"listened": 5}},
	}})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, *d.OverallAverage, 1e-9)
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := DefaultRegistry(0)
	q, err := r.Lookup(CodeMSF)
	require.NoError(t, err)
	q.Topics[0].Questions[0] = "changed"

	again, err := r.Lookup(CodeMSF)
	require.NoError(t, err)
	assert.Equal(t, "clinical_knowledge", again.Topics[0].Questions[0])
}

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyd-portfolio/portfolio-analytics/internal/application/command"
)

type stubRefresher struct {
	res *command.RefreshSummariesResult
	err error
	got command.RefreshSummariesCommand
}

func (s *stubRefresher) Handle(_ context.Context, cmd command.RefreshSummariesCommand) (*command.RefreshSummariesResult, error) {
	s.got = cmd
	return s.res, s.err
}

func TestRefreshSummariesJob(t *testing.T) {
	finished := time.Now().Add(-time.Minute)
	stub := &stubRefresher{res: &command.RefreshSummariesResult{
		RunID: "r1", Trainees: 4, Refreshed: 3, FinishedAt: finished,
		Failures: []command.TraineeFailure{{TraineeID: "t4", Kind: "coverage"}, {TraineeID: "t4", Kind: "portfolio"}},
	}}
	job := NewRefreshSummariesJob(stub, DefaultRefreshSummariesConfig())

	_, ok := job.LastRunAge(time.Now())
	assert.False(t, ok)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 4, stub.got.Concurrency)
	assert.Equal(t, "r1", job.LastResult().RunID)

	age, ok := job.LastRunAge(finished.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, time.Minute, age)
}

func TestRefreshSummariesJob_TooManyFailures(t *testing.T) {
	stub := &stubRefresher{res: &command.RefreshSummariesResult{RunID: "r2", Trainees: 4, Refreshed: 1}}
	job := NewRefreshSummariesJob(stub, DefaultRefreshSummariesConfig())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 4")
}

func TestRefreshSummariesJob_ListFailure(t *testing.T) {
	stub := &stubRefresher{err: errors.New("db down")}
	job := NewRefreshSummariesJob(stub, RefreshSummariesConfig{})

	assert.Error(t, job.Run(context.Background()))
	assert.Nil(t, job.LastResult())
	assert.Equal(t, "refresh_summaries", job.Name())
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	fail  bool
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if j.fail {
		return errors.New("job failed")
	}
	return nil
}

func TestRegister(t *testing.T) {
	s := New(Config{})

	require.NoError(t, s.Register(&countingJob{name: "a"}, "@every 15m"))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, "@every 1h"), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, "every fortnight"), ErrInvalidSchedule)
	assert.ErrorIs(t, s.Register(nil, "@hourly"), ErrNilJob)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 15m", jobs[0].Schedule)
}

func TestRunNowRecordsResult(t *testing.T) {
	s := New(Config{})
	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", fail: true}
	require.NoError(t, s.Register(ok, "@hourly"))
	require.NoError(t, s.Register(bad, "@hourly"))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	res, err = s.RunNow(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "job failed", res.Error)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	for _, info := range s.ListJobs() {
		require.NotNil(t, info.LastResult, info.Name)
		assert.EqualValues(t, 1, info.RunCount)
		if info.Name == "bad" {
			assert.EqualValues(t, 1, info.FailCount)
		}
	}
}

func TestScheduleFires(t *testing.T) {
	s := New(Config{})
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, "@every 1s"))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestStopCancelsRunningJob(t *testing.T) {
	s := New(Config{})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, "@every 1s"))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	info := s.ListJobs()[0]
	require.NotNil(t, info.LastResult)
	assert.False(t, info.LastResult.Success)
}

func TestTimeoutBoundsRun(t *testing.T) {
	s := New(Config{Timeout: 20 * time.Millisecond})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, "@hourly"))

	_, err := s.RunNow(context.Background(), "slow")
	assert.Error(t, err)
}

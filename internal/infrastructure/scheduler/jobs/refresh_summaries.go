// Package jobs contains the scheduled jobs of the analytics worker.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH SUMMARIES JOB
// ══════════════════════════════════════════════════════════════════════════════

// Refresher runs one refresh over the trainee population.
type Refresher interface {
	Handle(ctx context.Context, cmd command.RefreshSummariesCommand) (*command.RefreshSummariesResult, error)
}

// RefreshSummariesConfig contains configuration for the refresh job.
type RefreshSummariesConfig struct {
	// Concurrency bounds trainees refreshed in parallel.
	Concurrency int

	// MaxFailureRatio fails the run when more than this share of trainees
	// could not be refreshed. Zero disables the check.
	MaxFailureRatio float64
}

// DefaultRefreshSummariesConfig returns sensible defaults.
func DefaultRefreshSummariesConfig() RefreshSummariesConfig {
	return RefreshSummariesConfig{
		Concurrency:     4,
		MaxFailureRatio: 0.5,
	}
}

// RefreshSummariesJob keeps every active trainee's summaries warm in the cache.
type RefreshSummariesJob struct {
	refresher Refresher
	config    RefreshSummariesConfig

	last atomic.Pointer[command.RefreshSummariesResult]
}

// NewRefreshSummariesJob creates the job.
func NewRefreshSummariesJob(refresher Refresher, config RefreshSummariesConfig) *RefreshSummariesJob {
	return &RefreshSummariesJob{refresher: refresher, config: config}
}

// Name implements scheduler.Job.
func (j *RefreshSummariesJob) Name() string { return "refresh_summaries" }

// Description implements scheduler.Job.
func (j *RefreshSummariesJob) Description() string {
	return "recompute and cache coverage, portfolio and survey summaries of active trainees"
}

// Run refreshes all active trainees. Individual trainee failures are part of
// the result; the run itself fails only when the trainee list is unavailable
// or too many trainees failed.
func (j *RefreshSummariesJob) Run(ctx context.Context) error {
	res, err := j.refresher.Handle(ctx, command.RefreshSummariesCommand{Concurrency: j.config.Concurrency})
	if res != nil {
		j.last.Store(res)
	}
	if err != nil {
		return err
	}

	if j.config.MaxFailureRatio > 0 && res.Trainees > 0 {
		failed := res.Trainees - res.Refreshed
		if float64(failed)/float64(res.Trainees) > j.config.MaxFailureRatio {
			return fmt.Errorf("refresh run %s: %d of %d trainees failed", res.RunID, failed, res.Trainees)
		}
	}
	return nil
}

// LastResult returns the result of the most recent run, or nil.
func (j *RefreshSummariesJob) LastResult() *command.RefreshSummariesResult {
	return j.last.Load()
}

// LastRunAge reports how long ago the last run finished.
func (j *RefreshSummariesJob) LastRunAge(now time.Time) (time.Duration, bool) {
	res := j.last.Load()
	if res == nil {
		return 0, false
	}
	return now.Sub(res.FinishedAt), true
}

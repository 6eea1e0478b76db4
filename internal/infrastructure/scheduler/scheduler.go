// Package scheduler runs the background jobs of the analytics worker on cron
// schedules. A job that is still running when its next tick fires is skipped
// rather than started twice.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of scheduled work. Names are unique within a scheduler. Run
// sees its context cancelled when the scheduler stops.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// JobResult records one execution.
type JobResult struct {
	JobName     string        `json:"job_name"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration_ns"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Manual      bool          `json:"manual,omitempty"`
}

// JobInfo is the state of a registered job as ListJobs reports it.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastResult  *JobResult `json:"last_result,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrInvalidSchedule         = errors.New("invalid schedule")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config configures New. Location defaults to UTC.
type Config struct {
	Logger   *logger.Logger
	Location *time.Location

	// Timeout bounds one execution. Zero means no bound.
	Timeout time.Duration
}

// Scheduler fires registered jobs on their cron specs.
type Scheduler struct {
	mu sync.RWMutex

	log     *logger.Logger
	timeout time.Duration
	cron    *cron.Cron
	jobs    map[string]*scheduledJob

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type scheduledJob struct {
	job       Job
	spec      string
	entry     cron.EntryID
	runCount  int64
	failCount int64
	last      *JobResult
}

// New returns a stopped scheduler. Panics in jobs are recovered and logged.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	log := cfg.Logger.Named("scheduler")
	cl := cronLogger{log: log}

	return &Scheduler{
		log:     log,
		timeout: cfg.Timeout,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs: make(map[string]*scheduledJob),
		ctx:  context.Background(),
	}
}

// Register adds a job on a standard cron spec or descriptor such as
// "@every 15m" or "0 2 * * *".
func (s *Scheduler) Register(job Job, spec string) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, spec: spec}
	id, err := s.cron.AddFunc(spec, func() { s.execute(sj, false) })
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}
	sj.entry = id
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", spec),
		logger.String("description", job.Description()),
	)
	return nil
}

// Start begins firing schedules. Jobs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()

	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether schedules are firing.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.RLock()
	sj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	res := s.run(ctx, sj, true)
	if !res.Success {
		return &res, errors.New(res.Error)
	}
	return &res, nil
}

// ListJobs returns the registered jobs in no particular order.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		info := JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.spec,
			NextRun:     s.cron.Entry(sj.entry).Next,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
		}
		if sj.last != nil {
			last := *sj.last
			info.LastResult = &last
		}
		out = append(out, info)
	}
	return out
}

func (s *Scheduler) execute(sj *scheduledJob, manual bool) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	s.run(ctx, sj, manual)
}

func (s *Scheduler) run(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := sj.job.Name()
	log := s.log.With(logger.String("job", name), logger.Bool("manual", manual))
	log.Info("job started")

	started := time.Now()
	err := sj.job.Run(ctx)
	completed := time.Now()

	res := JobResult{
		JobName:     name,
		StartedAt:   started.UTC(),
		CompletedAt: completed.UTC(),
		Duration:    completed.Sub(started),
		Success:     err == nil,
		Manual:      manual,
	}
	if err != nil {
		res.Error = err.Error()
	}

	s.mu.Lock()
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	sj.last = &res
	s.mu.Unlock()

	if err != nil {
		log.Error("job failed", logger.Latency(res.Duration), logger.Err(err))
	} else {
		log.Info("job completed", logger.Latency(res.Duration))
	}
	return res
}

// ─────────────────────────────────────────────────────────────────────────────
// cron.Logger adapter
// ─────────────────────────────────────────────────────────────────────────────

type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, pairs(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append(pairs(keysAndValues), logger.Err(err))...)
}

func pairs(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

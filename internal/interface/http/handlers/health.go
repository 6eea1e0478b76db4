package handlers

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports service health to the probe endpoints.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc is one probe; a non-nil error means unhealthy.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health.
type HealthStatus struct {
	// Healthy is false when a required check failed.
	Healthy bool `json:"healthy"`

	// Ready mirrors Healthy; /ready answers 503 when it is false.
	Ready bool `json:"ready"`

	// Degraded is true when only optional checks failed.
	Degraded bool `json:"degraded,omitempty"`

	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

type registeredCheck struct {
	fn       HealthCheckFunc
	optional bool
}

// CompositeHealthChecker runs its named checks concurrently, each under its
// own deadline. Required checks decide readiness; optional ones only mark the
// service degraded.
type CompositeHealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]registeredCheck
	started time.Time
	version string
	timeout time.Duration
}

// NewCompositeHealthChecker starts with no checks and a 5s per-check timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checks:  map[string]registeredCheck{},
		started: time.Now(),
		version: version,
		timeout: 5 * time.Second,
	}
}

// SetTimeout bounds each check.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// AddCheck registers a required check.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.set(name, registeredCheck{fn: check})
}

// AddOptionalCheck registers a check whose failure only degrades the service.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, check HealthCheckFunc) {
	c.set(name, registeredCheck{fn: check, optional: true})
}

func (c *CompositeHealthChecker) set(name string, rc registeredCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = rc
}

// RemoveCheck unregisters name.
func (c *CompositeHealthChecker) RemoveCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Check runs every registered check and aggregates the outcome.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	names := slices.Sorted(maps.Keys(c.checks))
	checks := maps.Clone(c.checks)
	timeout := c.timeout
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(names)),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(names) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	results := make([]CheckResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		rc := checks[name]
		g.Go(func() error {
			results[i] = runCheck(ctx, rc, timeout)
			return nil
		})
	}
	_ = g.Wait()

	var failed, degraded []string
	for i, name := range names {
		r := results[i]
		status.Checks[name] = r
		if r.Healthy {
			continue
		}
		if r.Optional {
			degraded = append(degraded, name)
		} else {
			failed = append(failed, name)
		}
	}

	switch {
	case len(failed) > 0:
		status.Healthy, status.Ready = false, false
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	case len(degraded) > 0:
		status.Degraded = true
		status.Message = "Degraded: " + strings.Join(degraded, ", ")
	default:
		status.Message = "All checks passed"
	}
	return status
}

func runCheck(ctx context.Context, rc registeredCheck, timeout time.Duration) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := rc.fn(ctx)
	res := CheckResult{
		Healthy:  err == nil,
		Optional: rc.optional,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Message = err.Error()
	}
	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDEFINED HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is anything with a connectivity probe (database pool, cache client).
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingCheck adapts a Pinger.
func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// NewFreshnessCheck fails when the last completed run is older than maxAge.
// age reports false until a first run completed; that counts as healthy for
// grace after start.
func NewFreshnessCheck(age func(now time.Time) (time.Duration, bool), maxAge, grace time.Duration) HealthCheckFunc {
	started := time.Now()
	return func(context.Context) error {
		now := time.Now()
		a, ok := age(now)
		if !ok {
			if now.Sub(started) > grace {
				return fmt.Errorf("no completed run since start %s ago", now.Sub(started).Round(time.Second))
			}
			return nil
		}
		if a > maxAge {
			return fmt.Errorf("last run %s ago exceeds %s", a.Round(time.Second), maxAge)
		}
		return nil
	}
}

// NoopHealthChecker is always healthy. It backs servers built without a
// checker, mostly in tests.
type NoopHealthChecker struct {
	started time.Time
}

func NewNoopHealthChecker() *NoopHealthChecker {
	return &NoopHealthChecker{started: time.Now()}
}

func (n *NoopHealthChecker) Check(context.Context) HealthStatus {
	return HealthStatus{
		Healthy:   true,
		Ready:     true,
		Message:   "OK",
		Uptime:    time.Since(n.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}

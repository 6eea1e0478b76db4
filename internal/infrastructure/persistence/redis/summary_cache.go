package redis

import (
	"context"
	"errors"
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/circuitbreaker"
)

// SummaryCache implements query.SummaryStore on top of Cache.
type SummaryCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

var _ query.SummaryStore = (*SummaryCache)(nil)

// NewSummaryCache creates a SummaryCache. A non-positive ttl means TTLSummary.
func NewSummaryCache(cache *Cache, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = TTLSummary
	}
	return &SummaryCache{cache: cache, ttl: ttl}
}

// WithBreaker routes every call through cb. While cb is open calls fail
// fast with circuitbreaker.ErrCircuitOpen.
func (s *SummaryCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *SummaryCache {
	s.breaker = cb
	return s
}

func (s *SummaryCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Execute(ctx, fn)
}

// Get returns the stored envelope. A miss is (nil, false, nil).
func (s *SummaryCache) Get(ctx context.Context, kind, traineeID, variant string) ([]byte, bool, error) {
	var (
		data  []byte
		found bool
	)
	err := s.guard(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.cache.GetBytes(ctx, SummaryKey(s.cache.Prefix(), kind, traineeID, variant))
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

// Put stores an envelope with the configured TTL.
func (s *SummaryCache) Put(ctx context.Context, kind, traineeID, variant string, payload []byte) error {
	return s.guard(ctx, func(ctx context.Context) error {
		return s.cache.SetBytes(ctx, SummaryKey(s.cache.Prefix(), kind, traineeID, variant), payload, s.ttl)
	})
}

// Invalidate drops every summary of the trainee.
func (s *SummaryCache) Invalidate(ctx context.Context, traineeID string) error {
	return s.guard(ctx, func(ctx context.Context) error {
		_, err := s.cache.DeleteByPattern(ctx, TraineePattern(s.cache.Prefix(), traineeID))
		return err
	})
}

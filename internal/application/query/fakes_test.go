package query

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/epa"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/portfolio"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
)

type fakeCoverageSource struct {
	snaps map[string]*epa.CoverageSnapshot
	err   error
	calls int
}

func (f *fakeCoverageSource) LoadCoverageSnapshot(_ context.Context, traineeID string) (*epa.CoverageSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.snaps[traineeID]
	if !ok {
		return nil, shared.ErrTraineeNotFound
	}
	return s, nil
}

type fakePortfolioSource struct {
	snaps map[string]*portfolio.Snapshot
	err   error
}

func (f *fakePortfolioSource) LoadPortfolioSnapshot(_ context.Context, traineeID string) (*portfolio.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.snaps[traineeID]
	if !ok {
		return nil, shared.ErrTraineeNotFound
	}
	return s, nil
}

type fakeSurveySource struct {
	sets  map[string]survey.ResponseSet
	err   error
	calls int
}

func (f *fakeSurveySource) LoadResponses(_ context.Context, traineeID, code string) (survey.ResponseSet, error) {
	f.calls++
	if f.err != nil {
		return survey.ResponseSet{}, f.err
	}
	return f.sets[traineeID+"/"+code], nil
}

var errCacheDown = errors.New("cache down")

type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (m *memStore) key(kind, traineeID, variant string) string {
	return kind + "|" + traineeID + "|" + variant
}

func (m *memStore) Get(_ context.Context, kind, traineeID, variant string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errCacheDown
	}
	v, ok := m.entries[m.key(kind, traineeID, variant)]
	return v, ok, nil
}

func (m *memStore) Put(_ context.Context, kind, traineeID, variant string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errCacheDown
	}
	m.entries[m.key(kind, traineeID, variant)] = payload
	return nil
}

func (m *memStore) Invalidate(_ context.Context, traineeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.Split(k, "|")[1] == traineeID {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

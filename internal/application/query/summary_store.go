// Package query contains read operations (CQRS - Queries).
// Every query loads one consistent snapshot through a domain SnapshotSource,
// runs the pure engine over it and returns a serializable envelope.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/observability"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// SummaryStore caches encoded envelopes per trainee.
// Implemented by the redis infrastructure package.
type SummaryStore interface {
	// Get returns the cached envelope, or found == false on a miss.
	Get(ctx context.Context, kind, traineeID, variant string) (payload []byte, found bool, err error)

	// Put stores an encoded envelope.
	Put(ctx context.Context, kind, traineeID, variant string, payload []byte) error

	// Invalidate drops every cached summary of a trainee.
	Invalidate(ctx context.Context, traineeID string) error
}

// Envelope wraps a summary with its provenance. Data is the engine output
// encoded once, so cached and fresh responses are byte-identical.
type Envelope struct {
	Kind        string          `json:"kind"`
	TraineeID   string          `json:"trainee_id"`
	Variant     string          `json:"variant,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Cached      bool            `json:"cached"`
	Data        json.RawMessage `json:"data"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func validateTraineeID(op, id string) (string, error) {
	return shared.ValidateTraineeID("query", op, id)
}

// sourceError keeps domain errors and maps anything else to input unavailable.
func sourceError(op string, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.WrapError("query", op, shared.ErrInputUnavailable, "snapshot could not be loaded", err)
}

// outcome turns an error into a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case shared.IsInputIntegrity(err):
		return observability.OutcomeIntegrity
	case shared.IsNotFound(err):
		return observability.OutcomeNotFound
	case shared.IsInputUnavailable(err):
		return observability.OutcomeUnavailable
	default:
		return observability.OutcomeError
	}
}

// cachedEnvelope is the read-through step shared by the summary queries.
// A nil store, a refresh request or any cache failure falls through to
// compute; cache errors are logged and never returned.
type cachedEnvelope struct {
	store SummaryStore
	log   *logger.Logger
	now   func() time.Time
}

func (c cachedEnvelope) lookup(ctx context.Context, kind, traineeID, variant string, refresh bool) (*Envelope, bool) {
	if c.store == nil || refresh {
		return nil, false
	}

	raw, found, err := c.store.Get(ctx, kind, traineeID, variant)
	switch {
	case err != nil:
		observability.RecordCacheLookup(kind, "error")
		c.log.Warn("summary cache read failed", logger.SummaryKind(kind), logger.TraineeID(traineeID), logger.Err(err))
		return nil, false
	case !found:
		observability.RecordCacheLookup(kind, "miss")
		return nil, false
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		observability.RecordCacheLookup(kind, "error")
		c.log.Warn("summary cache entry undecodable", logger.SummaryKind(kind), logger.TraineeID(traineeID), logger.Err(err))
		return nil, false
	}
	observability.RecordCacheLookup(kind, "hit")
	env.Cached = true
	return &env, true
}

func (c cachedEnvelope) build(ctx context.Context, kind, traineeID, variant string, value any) (*Envelope, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, shared.WrapError("query", kind, shared.ErrInvalidInput, "summary not serializable", err)
	}

	env := &Envelope{
		Kind:        kind,
		TraineeID:   traineeID,
		Variant:     variant,
		GeneratedAt: c.now().UTC(),
		Data:        data,
	}

	if c.store != nil {
		raw, err := json.Marshal(env)
		if err == nil {
			err = c.store.Put(ctx, kind, traineeID, variant, raw)
		}
		if err != nil {
			c.log.Warn("summary cache write failed", logger.SummaryKind(kind), logger.TraineeID(traineeID), logger.Err(err))
		}
	}
	return env, nil
}

func defaultLogger(l *logger.Logger) *logger.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l
}

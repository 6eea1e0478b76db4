package epa

import (
	"context"
)

// CoverageSnapshot is a consistent read of everything one matrix build needs.
type CoverageSnapshot struct {
	TraineeID string
	EPAs      []EPA
	Links     []ActivityLink
}

// SnapshotSource supplies coverage snapshots.
// This interface is implemented by the infrastructure layer.
type SnapshotSource interface {
	// LoadCoverageSnapshot reads the EPA set and the trainee's activity links
	// at a single point in time. Returns shared.ErrTraineeNotFound for an
	// unknown trainee and an ErrInputUnavailable error when the store fails.
	LoadCoverageSnapshot(ctx context.Context, traineeID string) (*CoverageSnapshot, error)
}

// EPALister is implemented by sources that can return the reference set alone.
type EPALister interface {
	ListEPAs(ctx context.Context) ([]EPA, error)
}

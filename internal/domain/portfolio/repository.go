package portfolio

import (
	"context"
)

// Snapshot is the collaborator-counted input of one summary.
type Snapshot struct {
	TraineeID  string     `json:"trainee_id" yaml:"trainee_id"`
	Counts     Counts     `json:"counts" yaml:"counts"`
	Milestones Milestones `json:"milestones" yaml:"milestones"`
}

// Summarize builds the summary of the snapshot.
func (s Snapshot) Summarize() *Summary {
	sum := Summarize(s.Counts, s.Milestones)
	sum.TraineeID = s.TraineeID
	return sum
}

// SnapshotSource supplies portfolio snapshots.
// This interface is implemented by the infrastructure layer.
type SnapshotSource interface {
	// LoadPortfolioSnapshot counts every tracked category for a trainee in
	// one consistent read. Returns shared.ErrTraineeNotFound for an unknown trainee.
	LoadPortfolioSnapshot(ctx context.Context, traineeID string) (*Snapshot, error)
}

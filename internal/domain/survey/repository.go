package survey

import (
	"context"
)

// SnapshotSource supplies the responses of one trainee for one instrument.
// This interface is implemented by the infrastructure layer.
type SnapshotSource interface {
	// LoadResponses returns the responses and the submitted total in one
	// consistent read. Returns shared.ErrTraineeNotFound for an unknown trainee.
	LoadResponses(ctx context.Context, traineeID, questionnaireCode string) (ResponseSet, error)
}

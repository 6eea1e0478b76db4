package shared

import (
	"regexp"
	"strings"
)

// Trainee ids are opaque to the engine but end up in cache keys and key
// patterns, so they are restricted to characters that carry no meaning there.
var traineeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateTraineeID trims id and checks it against the trainee id rule.
func ValidateTraineeID(domain, op, id string) (string, error) {
	id = strings.TrimSpace(id)
	if !traineeIDPattern.MatchString(id) {
		return "", WrapError(domain, op, ErrInvalidID, "invalid trainee id", ErrInvalidTraineeID)
	}
	return id, nil
}

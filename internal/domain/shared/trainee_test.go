package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTraineeID(t *testing.T) {
	id, err := ValidateTraineeID("query", "Get", "  trainee_01-a ")
	require.NoError(t, err)
	assert.Equal(t, "trainee_01-a", id)

	for _, bad := range []string{"", "   ", "*", "t1*", "t?", "t[12]", `t\*`, "a:b", "a b", string(make([]byte, 65))} {
		_, err := ValidateTraineeID("command", "Invalidate", bad)
		require.Error(t, err, "%q", bad)
		assert.True(t, IsValidation(err), "%q", bad)
		assert.True(t, errors.Is(err, ErrInvalidID), "%q", bad)
	}
}

package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      Status
	}{
		{"nothing required", 0, 0, NotStarted},
		{"nothing done", 0, 5, NotStarted},
		{"partially done", 3, 5, InProgress},
		{"exactly done", 5, 5, Complete},
		{"over-completion", 7, 5, Complete},
		{"extra work with nothing required", 4, 0, NotStarted},
		{"negative completed", -1, 3, NotStarted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.completed, tt.total))
		})
	}
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Complete", Complete.Label())
	assert.Equal(t, "In progress", InProgress.Label())
	assert.Equal(t, "Not started", NotStarted.Label())
	assert.Equal(t, "Not started", Status("bogus").Label())
	assert.False(t, Status("bogus").IsValid())
	assert.True(t, InProgress.IsValid())
}

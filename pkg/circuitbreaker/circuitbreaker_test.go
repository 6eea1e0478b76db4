package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	cb := New("cache",
		WithFailureThreshold(2),
		WithTimeout(time.Hour),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsClosed())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsOpen())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed>open"}, transitions)
}

func TestHalfOpenRecovers(t *testing.T) {
	cb := New("cache", WithFailureThreshold(1), WithSuccessThreshold(1), WithTimeout(time.Millisecond))

	require.Error(t, cb.Execute(context.Background(), fail))
	require.True(t, cb.IsOpen())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.True(t, cb.IsClosed())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New("cache", WithFailureThreshold(1), WithTimeout(time.Millisecond))

	require.Error(t, cb.Execute(context.Background(), fail))
	time.Sleep(5 * time.Millisecond)
	require.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestIsFailureFilter(t *testing.T) {
	cb := New("cache", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}))

	require.Error(t, cb.Execute(context.Background(), func(context.Context) error { return context.Canceled }))
	assert.True(t, cb.IsClosed())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)
}

func TestExecuteWithFallback(t *testing.T) {
	cb := CacheBreaker(nil)
	for range 3 {
		_ = cb.Execute(context.Background(), fail)
	}
	require.True(t, cb.IsOpen())

	err := cb.ExecuteWithFallback(context.Background(), ok, func(err error) error {
		assert.ErrorIs(t, err, ErrCircuitOpen)
		return nil
	})
	assert.NoError(t, err)

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Equal(t, "summary-cache", cb.Name())
}

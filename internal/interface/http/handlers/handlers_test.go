package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("v1")

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)

	c.AddCheck("database", func(context.Context) error { return nil })
	c.AddOptionalCheck("cache", func(context.Context) error { return errors.New("refused") })

	status = c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.True(t, status.Degraded)
	assert.Equal(t, "Degraded: cache", status.Message)
	assert.False(t, status.Checks["cache"].Healthy)

	c.AddCheck("worker", func(context.Context) error { return errors.New("stale") })
	status = c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: worker", status.Message)

	c.RemoveCheck("worker")
	assert.True(t, c.Check(context.Background()).Ready)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline")
}

func TestFreshnessCheck(t *testing.T) {
	never := func(time.Time) (time.Duration, bool) { return 0, false }
	assert.NoError(t, NewFreshnessCheck(never, time.Hour, time.Hour)(context.Background()))
	assert.Error(t, NewFreshnessCheck(never, time.Hour, -time.Second)(context.Background()))

	old := func(time.Time) (time.Duration, bool) { return 2 * time.Hour, true }
	assert.Error(t, NewFreshnessCheck(old, time.Hour, 0)(context.Background()))

	recent := func(time.Time) (time.Duration, bool) { return time.Minute, true }
	assert.NoError(t, NewFreshnessCheck(recent, time.Hour, 0)(context.Background()))
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("key-1"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := NewAPIKeyAuth("", []string{"", string(hash)})
	require.True(t, auth.Enabled())
	assert.True(t, auth.IsValid("key-1"))
	assert.True(t, auth.IsValid("key-1"))
	assert.False(t, auth.IsValid("key-2"))
	assert.False(t, auth.IsValid(""))

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := auth.Middleware(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_api_key")
}

func TestAPIKeyAuth_DisabledWithoutHashes(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", nil)
	rec := httptest.NewRecorder()
	auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := ChainHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"), SecurityHeadersMiddleware)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "db"
	cfg.Password = "secret"
	assert.Equal(t, "host=db port=5432 dbname=eyd user=postgres password=secret sslmode=disable connect_timeout=10", cfg.DSN())

	cfg.URL = "postgres://u:p@h:5433/x"
	assert.Equal(t, cfg.URL, cfg.DSN())
}

func TestPoolConfigKeepsURLDefaults(t *testing.T) {
	pc, err := Config{URL: "postgres://u:p@h:5433/x?pool_max_conns=7"}.PoolConfig()
	require.NoError(t, err)
	assert.EqualValues(t, 7, pc.MaxConns)

	pc, err = Config{URL: "postgres://u:p@h/x", MaxConns: 3, MaxConnLifetime: time.Minute}.PoolConfig()
	require.NoError(t, err)
	assert.EqualValues(t, 3, pc.MaxConns)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
}

func TestSnapshotTxOptions(t *testing.T) {
	opts := SnapshotTxOptions()
	assert.Equal(t, pgx.RepeatableRead, opts.IsoLevel)
	assert.Equal(t, pgx.ReadOnly, opts.AccessMode)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isTransient(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, isTransient(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, isTransient(errors.New("plain")))
}

func TestMigrationsAreOrdered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("other")))
}

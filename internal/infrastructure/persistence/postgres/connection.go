// Package postgres implements the PostgreSQL snapshot sources of the
// analytics engine. Each load reads everything one calculation needs inside a
// single read-only transaction so the engine never sees a half-updated
// portfolio.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/retry"
)

// ErrConnectionClosed is returned by every call made after Close.
var ErrConnectionClosed = errors.New("postgres: connection pool is closed")

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config describes the pool. URL, when set, wins over the discrete fields.
type Config struct {
	URL string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration

	// QueryTimeout bounds one snapshot read. Zero means no bound.
	QueryTimeout time.Duration
}

// DefaultConfig returns the pool settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Port:              5432,
		Database:          "eyd",
		User:              "postgres",
		SSLMode:           "disable",
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
	}
}

// DSN renders the keyword/value connection string.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	parts := []string{
		"host=" + c.Host,
		"port=" + strconv.Itoa(c.Port),
		"dbname=" + c.Database,
		"user=" + c.User,
		"password=" + c.Password,
		"sslmode=" + c.SSLMode,
		"connect_timeout=" + strconv.Itoa(int(c.ConnectTimeout.Seconds())),
	}
	return strings.Join(parts, " ")
}

// PoolConfig parses the DSN and overlays the non-zero pool limits. Limits
// carried in a URL survive when the matching field is zero.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}
	setIf(&pc.MaxConns, c.MaxConns)
	setIf(&pc.MinConns, c.MinConns)
	setIf(&pc.MaxConnLifetime, c.MaxConnLifetime)
	setIf(&pc.MaxConnIdleTime, c.MaxConnIdleTime)
	setIf(&pc.HealthCheckPeriod, c.HealthCheckPeriod)
	return pc, nil
}

func setIf[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection owns the pgx pool shared by the repositories.
type Connection struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	closed       atomic.Bool
}

// NewConnection creates the pool and waits for the database to answer a
// ping. Startup races with a database container are absorbed by retrying.
func NewConnection(ctx context.Context, cfg Config, log *logger.Logger) (*Connection, error) {
	if log == nil {
		log = logger.Nop()
	}
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	waiting := func(attempt int, err error, delay time.Duration) {
		log.Warn("postgres not ready",
			logger.Int("attempt", attempt), logger.Err(err), logger.Duration("retry_in", delay))
	}
	if err := retry.StartupRetrier(waiting).Do(ctx, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Connection{pool: pool, queryTimeout: cfg.QueryTimeout}, nil
}

// Close releases the pool. Calling it twice is harmless.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

func (c *Connection) open() (*pgxpool.Pool, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.pool, nil
}

// Ping implements the health check probe.
func (c *Connection) Ping(ctx context.Context) error {
	pool, err := c.open()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Querier is satisfied by both the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Exec runs a statement outside any transaction.
func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	pool, err := c.open()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pool.Exec(ctx, sql, args...)
}

// Query runs a query outside any transaction.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	pool, err := c.open()
	if err != nil {
		return nil, err
	}
	return pool.Query(ctx, sql, args...)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotTxOptions are used by every snapshot load: all statements of the
// transaction see the same committed state.
func SnapshotTxOptions() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
}

// WriteTxOptions are used by migrations.
func WriteTxOptions() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
}

// WithTx runs fn in a transaction, committing when it returns nil.
func (c *Connection) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	pool, err := c.open()
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, pool, opts, fn)
}

// snapshot runs fn in a snapshot transaction, retrying transient failures,
// and translates storage errors into the engine's error kinds.
func (c *Connection) snapshot(ctx context.Context, domain, op string, fn func(pgx.Tx) error) error {
	if c.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	err := retry.SnapshotRetrier(isTransient).Do(ctx, func(ctx context.Context) error {
		return c.WithTx(ctx, SnapshotTxOptions(), fn)
	})

	var de *shared.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return shared.WrapError(domain, op, shared.ErrInputUnavailable, "snapshot read failed", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// IsNoRows reports a QueryRow that matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isTransient reports errors worth one more snapshot attempt: serialization
// failures, deadlocks and dropped connections.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}

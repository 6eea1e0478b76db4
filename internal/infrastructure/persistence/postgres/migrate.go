package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed wraps every migration error.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// Migration is one schema step. AppliedAt and IsApplied are only filled by
// Migrator.Status.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// GetMigrations returns the schema steps in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_reference_and_trainees", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_activities", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_progress_and_surveys", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

const (
	createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	selectVersions = `SELECT version, applied_at FROM schema_migrations`
	insertVersion  = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
	deleteVersion  = `DELETE FROM schema_migrations WHERE version = $1`
)

// Migrator applies GetMigrations to a database and records progress in
// schema_migrations.
type Migrator struct {
	conn  *Connection
	steps []Migration
}

// NewMigrator returns a migrator over the built-in schema steps.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, steps: GetMigrations()}
}

// applied returns the version table contents, creating the table first.
func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	if _, err := m.conn.Exec(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("%w: create version table: %v", ErrMigrationFailed, err)
	}
	rows, err := m.conn.Query(ctx, selectVersions)
	if err != nil {
		return nil, fmt.Errorf("%w: read versions: %v", ErrMigrationFailed, err)
	}

	out := map[int]time.Time{}
	var (
		v  int
		at time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&v, &at}, func() error {
		out[v] = at
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan versions: %v", ErrMigrationFailed, err)
	}
	return out, nil
}

// Migrate applies every pending step, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, step := range m.steps {
		if _, ok := done[step.Version]; ok {
			continue
		}
		if err := m.run(ctx, step.Version, step.UpSQL, insertVersion, step.Version, step.Name); err != nil {
			return err
		}
	}
	return nil
}

// Rollback reverts the newest applied step. It is a no-op on an empty schema.
func (m *Migrator) Rollback(ctx context.Context) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(done) == 0 {
		return nil
	}

	latest := 0
	for v := range done {
		latest = max(latest, v)
	}
	i := slices.IndexFunc(m.steps, func(s Migration) bool { return s.Version == latest })
	if i < 0 {
		return fmt.Errorf("%w: version %d is not known to this build", ErrMigrationFailed, latest)
	}
	return m.run(ctx, latest, m.steps[i].DownSQL, deleteVersion, latest)
}

func (m *Migrator) run(ctx context.Context, version int, body, record string, args ...any) error {
	if body == "" {
		return fmt.Errorf("%w: version %d has no SQL for this direction", ErrMigrationFailed, version)
	}
	err := m.conn.WithTx(ctx, WriteTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, body); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, record, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, version, err)
	}
	return nil
}

// Status lists every known step with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(m.steps)
	for i := range out {
		if at, ok := done[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// Package migrate applies numbered up/down SQL migrations to a database/sql
// handle. Every step runs in its own transaction together with the version
// bookkeeping, so a failed step leaves the previous version in place.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration is one numbered schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// MigrationProvider supplies migrations and owns the version table.
type MigrationProvider interface {
	Migrations() ([]Migration, error)
	EnsureVersionTable(ctx context.Context, db Execer) error
	CurrentVersion(ctx context.Context, db Execer) (int, error)
	SetVersion(ctx context.Context, tx Execer, version int) error
}

// Step is one migration applied in one direction.
type Step struct {
	Migration Migration
	Up        bool
}

// Target returns the version recorded once the step has run.
func (s Step) Target() int {
	if s.Up {
		return s.Migration.Version
	}
	return s.Migration.Version - 1
}

func (s Step) sql() string {
	if s.Up {
		return s.Migration.Up
	}
	return s.Migration.Down
}

func (s Step) direction() string {
	if s.Up {
		return "up"
	}
	return "down"
}

// Latest asks Plan for the highest known version.
const Latest = -1

// Plan orders the steps that move a schema from current to target. Versions
// must be unique; rolling back needs a down script for every step.
func Plan(migrations []Migration, current, target int) ([]Step, error) {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", sorted[i].Version)
		}
	}

	if target == Latest {
		target = 0
		if len(sorted) > 0 {
			target = sorted[len(sorted)-1].Version
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("invalid target version %d", target)
	}

	var steps []Step
	if target >= current {
		for _, m := range sorted {
			if m.Version > current && m.Version <= target {
				steps = append(steps, Step{Migration: m, Up: true})
			}
		}
		return steps, nil
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		m := sorted[i]
		if m.Version > target && m.Version <= current {
			steps = append(steps, Step{Migration: m})
		}
	}
	return steps, nil
}

// Migrator runs plans against a database.
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp applies every pending migration.
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.MigrateTo(ctx, Latest)
}

// MigrateDown rolls back until target is current. target must be below the
// current version.
func (m *Migrator) MigrateDown(ctx context.Context, target int) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}
	return m.MigrateTo(ctx, target)
}

// MigrateTo moves the schema up or down to target.
func (m *Migrator) MigrateTo(ctx context.Context, target int) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	migrations, err := m.provider.Migrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	steps, err := Plan(migrations, current, target)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if err := m.apply(ctx, s); err != nil {
			return fmt.Errorf("migration %d %s: %w", s.Migration.Version, s.direction(), err)
		}
	}
	return nil
}

// CurrentVersion returns the applied version, creating the version table
// on first use.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.provider.EnsureVersionTable(ctx, m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.CurrentVersion(ctx, m.db)
}

// Pending returns the migrations MigrateUp would apply, in order.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := m.provider.Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	steps, err := Plan(migrations, current, Latest)
	if err != nil {
		return nil, err
	}
	pending := make([]Migration, len(steps))
	for i, s := range steps {
		pending[i] = s.Migration
	}
	return pending, nil
}

func (m *Migrator) apply(ctx context.Context, s Step) error {
	stmt := s.sql()
	if stmt == "" {
		return fmt.Errorf("no %s script", s.direction())
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if err := m.provider.SetVersion(ctx, tx, s.Target()); err != nil {
		return fmt.Errorf("failed to record version %d: %w", s.Target(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	m.logger.Debugf("migration %d (%s) %s, schema now at %d", s.Migration.Version, s.Migration.Name, s.direction(), s.Target())
	return nil
}

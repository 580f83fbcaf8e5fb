// Package store keeps a SQLite ledger of pipeline runs: when they ran, what
// they produced, the annual fractions they computed and the years they had
// to skip.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hydroglacier/glacierfrac/internal/types"
	"github.com/hydroglacier/glacierfrac/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the provider for the ledger schema.
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", "")
}

// Run is one completed pipeline run.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	FirstYear  int
	LastYear   int
	UnitCount  int
	DayCount   int
	Resampler  string
	DailyPath  string
	AnnualPath string
	Annual     []types.AnnualRecord
	Skipped    []types.SkippedYear
}

// Store wraps the ledger database.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open opens (creating if needed) the ledger at path and brings its schema
// up to date.
func Open(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	migrator := migrate.NewMigrator(db, Migrations(), logger)
	if err := migrator.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate run ledger: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes the run row, its annual fractions and its skipped years in a
// single transaction. A zero run ID is replaced with a fresh one, which is
// returned.
func (s *Store) SaveRun(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, first_year, last_year,
		                  unit_count, day_count, resampler, daily_path, annual_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.FirstYear, run.LastYear,
		run.UnitCount, run.DayCount, run.Resampler, run.DailyPath, run.AnnualPath)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO annual_fractions (run_id, year, unit_id, fraction) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare fraction insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range run.Annual {
		for i, id := range rec.UnitIDs {
			if _, err := stmt.ExecContext(ctx, run.ID.String(), rec.Year, id, rec.Fractions[i]); err != nil {
				return uuid.Nil, fmt.Errorf("failed to insert fraction for unit %d year %d: %w", id, rec.Year, err)
			}
		}
	}

	for _, sk := range run.Skipped {
		_, err := tx.ExecContext(ctx, `INSERT INTO skipped_years (run_id, year, reason) VALUES (?, ?, ?)`,
			run.ID.String(), sk.Year, sk.Reason)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert skipped year %d: %w", sk.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debugf("recorded run %s (%d annual records, %d skipped years)", run.ID, len(run.Annual), len(run.Skipped))
	return run.ID, nil
}

// DeleteRun removes a run and, through the foreign keys, its fractions and
// skipped years.
func (s *Store) DeleteRun(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// RunSummary is a ledger row without its child records.
type RunSummary struct {
	ID           uuid.UUID
	FinishedAt   time.Time
	FirstYear    int
	LastYear     int
	SkippedCount int
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.finished_at, r.first_year, r.last_year,
		       (SELECT COUNT(*) FROM skipped_years s WHERE s.run_id = r.id)
		FROM runs r
		ORDER BY r.finished_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs RunSummary
			id string
		)
		if err := rows.Scan(&id, &rs.FinishedAt, &rs.FirstYear, &rs.LastYear, &rs.SkippedCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if rs.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// AnnualFractions returns the stored fractions of one unit for a run, keyed
// by year.
func (s *Store) AnnualFractions(ctx context.Context, runID uuid.UUID, unitID int) (map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, fraction FROM annual_fractions WHERE run_id = ? AND unit_id = ? ORDER BY year`,
		runID.String(), unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fractions: %w", err)
	}
	defer rows.Close()

	out := make(map[int]float64)
	for rows.Next() {
		var (
			year int
			f    float64
		)
		if err := rows.Scan(&year, &f); err != nil {
			return nil, fmt.Errorf("failed to scan fraction: %w", err)
		}
		out[year] = f
	}
	return out, rows.Err()
}

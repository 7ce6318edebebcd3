// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jwulff/mylife-sync/internal/domain"
	"github.com/jwulff/mylife-sync/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Config methods

func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound{Resource: "config", ID: key}
	}
	return value, err
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO config (key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UTC())
	return err
}

func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM config WHERE key = ?", key)
	return err
}

// Sync run methods

const runColumns = `id, started_at, finished_at, cutoff, dry_run, fetched, groups_built,
	treatments, uploaded, unrecognized, skipped, error`

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

// SaveRun inserts a run or updates the run with the same ID.
func (s *Store) SaveRun(ctx context.Context, run *domain.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			cutoff = excluded.cutoff,
			dry_run = excluded.dry_run,
			fetched = excluded.fetched,
			groups_built = excluded.groups_built,
			treatments = excluded.treatments,
			uploaded = excluded.uploaded,
			unrecognized = excluded.unrecognized,
			skipped = excluded.skipped,
			error = excluded.error
	`, run.ID, run.StartedAt.UTC(), nullTime(run.FinishedAt), nullTime(run.Cutoff), run.DryRun,
		run.Fetched, run.Groups, run.Treatments, run.Uploaded, run.Unrecognized, run.Skipped, run.Error)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var finished, cutoff sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &cutoff, &run.DryRun, &run.Fetched,
		&run.Groups, &run.Treatments, &run.Uploaded, &run.Unrecognized, &run.Skipped, &run.Error)
	if err != nil {
		return nil, err
	}
	run.StartedAt = run.StartedAt.UTC()
	if finished.Valid {
		run.FinishedAt = finished.Time.UTC()
	}
	if cutoff.Valid {
		run.Cutoff = cutoff.Time.UTC()
	}
	return &run, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM sync_runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "sync_run", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM sync_runs ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)

// Package history keeps a record of simulation runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	simerrors "fdm-printer-sim/pkg/errors"
)

// Run statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusError      = "error"
)

// Run is one recorded simulation run.
type Run struct {
	ID         string     `json:"job_id"`
	File       string     `json:"filename"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"start_time"`
	FinishedAt *time.Time `json:"end_time"`
	Commands   int        `json:"commands"`
	Ticks      uint64     `json:"ticks"`
	Filament   float64    `json:"filament_used"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or has taken so far.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Result is what a finished run reports.
type Result struct {
	Status   string
	Commands int
	Ticks    uint64
	Filament float64
	Err      error
}

// Totals aggregates every finished run.
type Totals struct {
	Runs          int     `json:"total_jobs"`
	Completed     int     `json:"completed_jobs"`
	TotalTicks    uint64  `json:"total_ticks"`
	TotalFilament float64 `json:"total_filament_used"`
	TotalTime     float64 `json:"total_time"`
	LongestRun    float64 `json:"longest_job"`
}

// Store is a run history backed by a SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, simerrors.StorageError("open", fmt.Errorf("empty db path"))
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, simerrors.StorageError("open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, simerrors.StorageError("open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, simerrors.StorageError("open", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, simerrors.StorageError("open", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			file TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			commands INTEGER NOT NULL DEFAULT 0,
			ticks INTEGER NOT NULL DEFAULT 0,
			filament REAL NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Start records a new in-progress run and returns it.
func (s *Store) Start(ctx context.Context, file string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		File:      file,
		Status:    StatusInProgress,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, file, status, started_at) VALUES(?, ?, ?, ?)`,
		run.ID, run.File, run.Status, run.StartedAt.UnixMilli())
	if err != nil {
		return Run{}, simerrors.StorageError("start run", err)
	}
	return run, nil
}

// Finish closes an in-progress run with its result.
func (s *Store) Finish(ctx context.Context, id string, res Result) error {
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	out, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status=?, finished_at=?, commands=?, ticks=?, filament=?, error=?
		 WHERE id=? AND status=?`,
		res.Status, s.now().UTC().UnixMilli(), res.Commands, int64(res.Ticks), res.Filament, errText,
		id, StatusInProgress)
	if err != nil {
		return simerrors.StorageError("finish run", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return simerrors.StorageError("finish run", fmt.Errorf("no in-progress run %s", id))
	}
	return nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id=?`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, simerrors.StorageError("get run", err)
	}
	return run, nil
}

// List returns the most recent runs first. A limit of 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, simerrors.StorageError("list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, simerrors.StorageError("list runs", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, simerrors.StorageError("list runs", err)
	}
	return runs, nil
}

// Totals aggregates all finished runs.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var (
		t                Totals
		ticks            int64
		totalMs, longest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status=? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(ticks), 0),
		       COALESCE(SUM(filament), 0),
		       SUM(finished_at - started_at),
		       MAX(finished_at - started_at)
		FROM runs WHERE finished_at IS NOT NULL`, StatusCompleted).
		Scan(&t.Runs, &t.Completed, &ticks, &t.TotalFilament, &totalMs, &longest)
	if err != nil {
		return Totals{}, simerrors.StorageError("totals", err)
	}
	t.TotalTicks = uint64(ticks)
	t.TotalTime = float64(totalMs.Int64) / 1000
	t.LongestRun = float64(longest.Int64) / 1000
	return t, nil
}

const selectRuns = `SELECT id, file, status, started_at, finished_at, commands, ticks, filament, error FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
		ticks    int64
	)
	if err := sc.Scan(&run.ID, &run.File, &run.Status, &started, &finished,
		&run.Commands, &ticks, &run.Filament, &run.Error); err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		f := time.UnixMilli(finished.Int64).UTC()
		run.FinishedAt = &f
	}
	run.Ticks = uint64(ticks)
	return run, nil
}

// Package history records pipeline runs and their stage outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	ok          INTEGER
);
CREATE TABLE IF NOT EXISTS stages (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	exit_code  INTEGER NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	elapsed_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// Store is a run history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run is one recorded pipeline execution.
type Run struct {
	ID         string
	Input      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or if the process died
	OK         bool
}

// Stage is one recorded stage outcome.
type Stage struct {
	Seq      int
	Name     string
	Status   string
	ExitCode int
	Reason   string
	Elapsed  time.Duration
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun inserts a run and returns its new ID.
func (s *Store) BeginRun(ctx context.Context, input string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, started_at) VALUES (?, ?, ?)`,
		id, input, s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordStage appends a stage outcome to run id.
func (s *Store) RecordStage(ctx context.Context, id string, st Stage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stages (run_id, seq, name, status, exit_code, reason, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, st.Seq, st.Name, st.Status, st.ExitCode, st.Reason, st.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("record stage %s: %w", st.Name, err)
	}
	return nil
}

// FinishRun marks run id finished.
func (s *Store) FinishRun(ctx context.Context, id string, ok bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, ok = ? WHERE id = ?`,
		s.now().UnixMilli(), boolInt(ok), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Runs lists the most recent runs first. limit <= 0 means all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, input, started_at, finished_at, ok FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			ok       sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Input, &started, &finished, &ok); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		r.OK = ok.Valid && ok.Int64 == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stages returns the stage outcomes of run id in order.
func (s *Store) Stages(ctx context.Context, id string) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, name, status, exit_code, reason, elapsed_ms FROM stages WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var st Stage
		var ms int64
		if err := rows.Scan(&st.Seq, &st.Name, &st.Status, &st.ExitCode, &st.Reason, &ms); err != nil {
			return nil, err
		}
		st.Elapsed = time.Duration(ms) * time.Millisecond
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

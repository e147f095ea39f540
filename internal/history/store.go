// Package history keeps one row per recording in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Recording statuses.
const (
	StatusRecording = "recording"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

// ErrNotFound is returned by Get for an unknown recording id.
var ErrNotFound = errors.New("recording not found")

// Recording is one row of the history.
type Recording struct {
	ID         string     `json:"id" yaml:"id"`
	OutputPath string     `json:"output_path" yaml:"output_path"`
	Pid        int        `json:"pid" yaml:"pid"`
	Status     string     `json:"status" yaml:"status"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty" yaml:"stopped_at,omitempty"`
	Duration   Duration   `json:"duration" yaml:"duration"`
	Forced     bool       `json:"forced" yaml:"forced"`
	ExitCode   *int       `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
	SizeBytes  int64      `json:"size_bytes" yaml:"size_bytes"`
	Digest     string     `json:"blake3,omitempty" yaml:"blake3,omitempty"`
}

// Duration renders as a Go duration string in JSON and YAML.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Store is the recording history.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has one writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(pctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recordings (
  id          TEXT PRIMARY KEY,
  output_path TEXT NOT NULL,
  pid         INTEGER NOT NULL DEFAULT 0,
  status      TEXT NOT NULL,
  started_at  TEXT NOT NULL,
  stopped_at  TEXT,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  forced      INTEGER NOT NULL DEFAULT 0,
  exit_code   INTEGER,
  error       TEXT,
  size_bytes  INTEGER NOT NULL DEFAULT 0,
  digest      TEXT
);`,
		`CREATE INDEX IF NOT EXISTS recordings_started_at_idx ON recordings(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Started records a recording that has just started. A row already
// written by Stopped keeps its final status.
func (s *Store) Started(ctx context.Context, id, outputPath string, pid int, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO recordings (id, output_path, pid, status, started_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET pid = excluded.pid, started_at = excluded.started_at`,
		id, outputPath, pid, StatusRecording, formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// StopInfo is the final state of a stopped recording.
type StopInfo struct {
	ID         string
	OutputPath string
	Pid        int
	StartedAt  time.Time
	StoppedAt  time.Time
	Duration   time.Duration
	Forced     bool
	Error      string
	SizeBytes  int64
	Digest     string
}

// Stopped marks a recording as stopped.
func (s *Store) Stopped(ctx context.Context, info StopInfo) error {
	status := StatusStopped
	var errText sql.NullString
	if info.Error != "" {
		status = StatusFailed
		errText = sql.NullString{String: info.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO recordings (id, output_path, pid, status, started_at, stopped_at, duration_ms, forced, error, size_bytes, digest)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  status = excluded.status,
  stopped_at = excluded.stopped_at,
  duration_ms = excluded.duration_ms,
  forced = excluded.forced,
  error = excluded.error,
  size_bytes = excluded.size_bytes,
  digest = excluded.digest`,
		info.ID, info.OutputPath, info.Pid, status,
		formatTime(info.StartedAt), formatTime(info.StoppedAt),
		info.Duration.Milliseconds(), boolToInt(info.Forced), errText,
		info.SizeBytes, nullString(info.Digest),
	)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return nil
}

// FailInfo describes a recording that failed to start or exited on its own.
type FailInfo struct {
	ID         string
	OutputPath string
	Pid        int
	ExitCode   int
	Error      string
	At         time.Time
}

// Failed records a failure. A launch failure creates its own row.
func (s *Store) Failed(ctx context.Context, info FailInfo) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO recordings (id, output_path, pid, status, started_at, stopped_at, exit_code, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  status = excluded.status,
  exit_code = excluded.exit_code,
  error = excluded.error`,
		info.ID, info.OutputPath, info.Pid, StatusFailed,
		formatTime(info.At), formatTime(info.At), info.ExitCode, info.Error,
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

const selectColumns = `id, output_path, pid, status, started_at, stopped_at, duration_ms, forced, exit_code, error, size_bytes, digest`

// List returns the most recent recordings, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Recording, error) {
	query := `SELECT ` + selectColumns + ` FROM recordings ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out, nil
}

// Get returns one recording by id.
func (s *Store) Get(ctx context.Context, id string) (Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM recordings WHERE id = ?`, id)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(sc scanner) (Recording, error) {
	var (
		r          Recording
		startedAt  string
		stoppedAt  sql.NullString
		durationMS int64
		forced     int
		exitCode   sql.NullInt64
		errText    sql.NullString
		digest     sql.NullString
	)
	err := sc.Scan(&r.ID, &r.OutputPath, &r.Pid, &r.Status, &startedAt, &stoppedAt,
		&durationMS, &forced, &exitCode, &errText, &r.SizeBytes, &digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan recording: %w", err)
	}

	r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if stoppedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, stoppedAt.String)
		r.StoppedAt = &t
	}
	r.Duration = Duration(time.Duration(durationMS) * time.Millisecond)
	r.Forced = forced != 0
	if exitCode.Valid {
		code := int(exitCode.Int64)
		r.ExitCode = &code
	}
	r.Error = errText.String
	r.Digest = digest.String
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

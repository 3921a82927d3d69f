// Package registry records corpus runs in SQLite: what ran, what it
// produced, which annotation units it had to drop and how it scored.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/nercorpus/core/cas"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/scoring"
	"github.com/FocuswithJustin/nercorpus/core/sqlite"
)

// Run kinds.
const (
	KindAssemble = "assemble"
	KindCombine  = "combine"
	KindEvaluate = "evaluate"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		args TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		stats TEXT NOT NULL DEFAULT '{}',
		error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	`CREATE TABLE IF NOT EXISTS drops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		section INTEGER NOT NULL,
		unit INTEGER NOT NULL,
		text TEXT NOT NULL,
		reason TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_drops_run ON drops(run_id)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		blake3 TEXT NOT NULL,
		size INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id)`,
	`CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		tokens INTEGER NOT NULL,
		sentences INTEGER NOT NULL,
		tp INTEGER NOT NULL,
		fp INTEGER NOT NULL,
		tn INTEGER NOT NULL,
		fn INTEGER NOT NULL
	)`,
}

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded command invocation.
type Run struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Args       string          `json:"args,omitempty"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Stats      json.RawMessage `json:"stats,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Duration is zero while the run is still going.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Drop is a recorded alignment failure.
type Drop struct {
	Source string `json:"source"`
	errors.AlignmentError
}

// Document is a recorded output file.
type Document struct {
	Name        string          `json:"name"`
	Fingerprint cas.Fingerprint `json:"fingerprint"`
}

// Evaluation is a recorded scoring result.
type Evaluation struct {
	Source    string                    `json:"source"`
	Tokens    int                       `json:"tokens"`
	Sentences int                       `json:"sentences"`
	Counters  scoring.ConfusionCounters `json:"counters"`
}

// Registry is a run store backed by one SQLite database. It is safe for
// concurrent use; the connection pool serializes writers.
type Registry struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Open opens or creates the registry at path. Use sqlite.Memory for a
// throwaway registry.
func Open(ctx context.Context, path string) (*Registry, error) {
	db, err := sqlite.OpenFile(ctx, path)
	if err != nil {
		return nil, errors.NewIO("open registry", path, err)
	}
	if err := sqlite.Migrate(ctx, db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating registry: %w", err)
	}
	return &Registry{db: db, now: time.Now, newID: uuid.NewString}, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// StartRun records a new running run and returns it.
func (r *Registry) StartRun(ctx context.Context, kind, args string) (Run, error) {
	run := Run{
		ID:        r.newID(),
		Kind:      kind,
		Args:      args,
		Status:    StatusRunning,
		StartedAt: r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, args, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Args, run.Status, run.StartedAt.Format(timeLayout))
	if err != nil {
		return Run{}, fmt.Errorf("starting run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run done. stats is stored as JSON; a non-nil runErr
// marks the run failed.
func (r *Registry) FinishRun(ctx context.Context, id string, stats any, runErr error) error {
	data := []byte("{}")
	if stats != nil {
		var err error
		if data, err = json.Marshal(stats); err != nil {
			return fmt.Errorf("encoding run stats: %w", err)
		}
	}
	status, msg := StatusOK, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, stats = ?, error = ? WHERE id = ?`,
		status, r.now().UTC().Format(timeLayout), string(data), msg, id)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("run", id)
	}
	return nil
}

// RecordDrops stores the alignment failures of one source file.
func (r *Registry) RecordDrops(ctx context.Context, runID, source string, drops []*errors.AlignmentError) error {
	if len(drops) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO drops (run_id, source, section, unit, text, reason) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, d := range drops {
		if _, err := stmt.ExecContext(ctx, runID, source, d.Section, d.Unit, d.Text, d.Reason); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording drop: %w", err)
		}
	}
	return tx.Commit()
}

// RecordDocument stores the fingerprint of an emitted file.
func (r *Registry) RecordDocument(ctx context.Context, runID, name string, fp cas.Fingerprint) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (run_id, name, sha256, blake3, size) VALUES (?, ?, ?, ?, ?)`,
		runID, name, fp.SHA256, fp.BLAKE3, fp.Size)
	if err != nil {
		return fmt.Errorf("recording document: %w", err)
	}
	return nil
}

// RecordEvaluation stores one scored row stream.
func (r *Registry) RecordEvaluation(ctx context.Context, runID, source string, ev scoring.Evaluation) error {
	c := ev.Counters
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO evaluations (run_id, source, tokens, sentences, tp, fp, tn, fn) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, source, ev.Tokens, ev.Sentences, c.TruePositive, c.FalsePositive, c.TrueNegative, c.FalseNegative)
	if err != nil {
		return fmt.Errorf("recording evaluation: %w", err)
	}
	return nil
}

// GetRun loads one run.
func (r *Registry) GetRun(ctx context.Context, id string) (Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, args, status, started_at, finished_at, stats, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, errors.NewNotFound("run", id)
	}
	return run, err
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns all of them.
func (r *Registry) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, args, status, started_at, finished_at, stats, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Drops returns the drops of a run in insertion order.
func (r *Registry) Drops(ctx context.Context, runID string) ([]Drop, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source, section, unit, text, reason FROM drops WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing drops: %w", err)
	}
	defer rows.Close()

	var out []Drop
	for rows.Next() {
		var d Drop
		if err := rows.Scan(&d.Source, &d.Section, &d.Unit, &d.Text, &d.Reason); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Documents returns the documents emitted by a run.
func (r *Registry) Documents(ctx context.Context, runID string) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, sha256, blake3, size FROM documents WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Name, &d.Fingerprint.SHA256, &d.Fingerprint.BLAKE3, &d.Fingerprint.Size); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Evaluations returns the evaluations recorded by a run.
func (r *Registry) Evaluations(ctx context.Context, runID string) ([]Evaluation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source, tokens, sentences, tp, fp, tn, fn FROM evaluations WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var e Evaluation
		c := &e.Counters
		if err := rows.Scan(&e.Source, &e.Tokens, &e.Sentences,
			&c.TruePositive, &c.FalsePositive, &c.TrueNegative, &c.FalseNegative); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		stats    string
	)
	if err := s.Scan(&run.ID, &run.Kind, &run.Args, &run.Status, &started, &finished, &stats, &run.Error); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad start time: %w", run.ID, err)
	}
	run.StartedAt = t
	if finished.Valid {
		ft, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: bad finish time: %w", run.ID, err)
		}
		run.FinishedAt = &ft
	}
	run.Stats = json.RawMessage(stats)
	return run, nil
}

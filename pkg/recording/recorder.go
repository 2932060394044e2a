/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: recorder.go
Description: Evaluation recorder backed by SQLite. Evaluations are buffered and written
in batches inside one transaction, flushed on Close and at process exit.
*/

package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

const (
	KindInput  = "input"
	KindOutput = "output"
)

var ErrClosed = errors.New("recorder closed")

// Entry is one recorded evaluation
type Entry struct {
	RunID    string             `json:"run_id"`
	Model    string             `json:"model"`
	Started  time.Time          `json:"started"`
	Duration time.Duration      `json:"duration"`
	Fired    int                `json:"fired"`
	Error    string             `json:"error,omitempty"`
	Inputs   map[string]float64 `json:"inputs"`
	Outputs  map[string]float64 `json:"outputs"`
}

// Recorder stores evaluations
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Flush() error
	Close() error
}

// Config configures a SQLiteRecorder
type Config struct {
	Path      string // database file; empty picks a unique name in Dir
	Dir       string
	BatchSize int
	Logger    *logrus.Logger
}

// SQLiteRecorder buffers entries and writes them to SQLite. Safe for concurrent use.
type SQLiteRecorder struct {
	db        *sql.DB
	path      string
	batchSize int
	logger    *logrus.Logger

	mu      sync.Mutex
	pending []Entry
	closed  bool
}

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	run_id      TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	fired       INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS evaluations_model ON evaluations (model, started_at);
CREATE TABLE IF NOT EXISTS evaluation_values (
	run_id   TEXT NOT NULL,
	variable TEXT NOT NULL,
	kind     TEXT NOT NULL,
	value    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS evaluation_values_run ON evaluation_values (run_id);
`

// NewSQLiteRecorder opens or creates the database and its tables
func NewSQLiteRecorder(cfg Config) (*SQLiteRecorder, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}
	path := cfg.Path
	if path == "" {
		path = filepath.Join(cfg.Dir, "fuzzylogic_evaluations_"+xid.New().String()+".sqlite3")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create recorder directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// one writer; sqlite serialises anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	r := &SQLiteRecorder{
		db:        db,
		path:      path,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
	}
	atexit.Register(func() { _ = r.Flush() })

	r.logger.WithField("path", path).Info("Evaluation recorder opened")
	return r, nil
}

// Path returns the database file
func (r *SQLiteRecorder) Path() string {
	return r.path
}

// Record buffers e and writes the buffer once it reaches the batch size
func (r *SQLiteRecorder) Record(_ context.Context, e Entry) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if e.RunID == "" {
		e.RunID = xid.New().String()
	}
	r.pending = append(r.pending, e)
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if full {
		return r.Flush()
	}
	return nil
}

// ObserveEvaluation records every calculation, failed ones included
func (r *SQLiteRecorder) ObserveEvaluation(ctx context.Context, model string, res *execution.Result, err error) {
	var e Entry
	if res != nil {
		e = FromResult(res)
	} else {
		e = Entry{Model: model, Started: time.Now()}
	}
	if err != nil {
		e.Error = err.Error()
	}
	if rerr := r.Record(ctx, e); rerr != nil && !errors.Is(rerr, ErrClosed) {
		r.logger.WithError(rerr).Warn("Failed to record evaluation")
	}
}

// FromResult converts an execution result into an Entry
func FromResult(res *execution.Result) Entry {
	fired := 0
	for _, s := range res.Strengths {
		if s.Strength > 0 {
			fired++
		}
	}
	return Entry{
		RunID:    res.RunID,
		Model:    res.Model,
		Started:  res.Started,
		Duration: res.Duration,
		Fired:    fired,
		Inputs:   res.Inputs,
		Outputs:  res.Outputs,
	}
}

// Flush writes every buffered entry in one transaction
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *SQLiteRecorder) flushLocked() error {
	if len(r.pending) == 0 || r.db == nil {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	evalStmt, err := tx.Prepare(`INSERT OR REPLACE INTO evaluations VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer evalStmt.Close()
	valueStmt, err := tx.Prepare(`INSERT INTO evaluation_values VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer valueStmt.Close()

	for _, e := range r.pending {
		if _, err := evalStmt.Exec(e.RunID, e.Model, e.Started.UnixNano(), e.Duration.Microseconds(), e.Fired, e.Error); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert evaluation %s: %w", e.RunID, err)
		}
		if err := insertValues(valueStmt, e.RunID, KindInput, e.Inputs); err != nil {
			tx.Rollback()
			return err
		}
		if err := insertValues(valueStmt, e.RunID, KindOutput, e.Outputs); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.WithField("entries", len(r.pending)).Debug("Evaluations flushed")
	r.pending = nil
	return nil
}

func insertValues(stmt *sql.Stmt, runID, kind string, values map[string]float64) error {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, err := stmt.Exec(runID, n, kind, values[n]); err != nil {
			return fmt.Errorf("failed to insert value %s of %s: %w", n, runID, err)
		}
	}
	return nil
}

// Pending returns the number of buffered entries
func (r *SQLiteRecorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close flushes and closes the database
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.flushLocked()
	if cerr := r.db.Close(); err == nil {
		err = cerr
	}
	r.db = nil
	return err
}

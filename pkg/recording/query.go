/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: query.go
Description: Read access to recorded evaluations.
*/

package recording

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Summary aggregates the recorded evaluations of one model
type Summary struct {
	Model       string        `json:"model"`
	Evaluations int           `json:"evaluations"`
	Failures    int           `json:"failures"`
	AvgDuration time.Duration `json:"avg_duration"`
	First       time.Time     `json:"first"`
	Last        time.Time     `json:"last"`
}

// Query returns the most recent evaluations of a model, newest first. An empty model
// matches every model; limit <= 0 means no limit. Buffered entries are flushed first.
func (r *SQLiteRecorder) Query(ctx context.Context, model string, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if err := r.flushLocked(); err != nil {
		return nil, err
	}

	q := `SELECT run_id, model, started_at, duration_us, fired, error FROM evaluations`
	var args []interface{}
	if model != "" {
		q += ` WHERE model = ?`
		args = append(args, strings.ToLower(model))
	}
	q += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	var entries []Entry
	index := make(map[string]int)
	for rows.Next() {
		var e Entry
		var started, durationUS int64
		if err := rows.Scan(&e.RunID, &e.Model, &started, &durationUS, &e.Fired, &e.Error); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		e.Started = time.Unix(0, started)
		e.Duration = time.Duration(durationUS) * time.Microsecond
		e.Inputs = make(map[string]float64)
		e.Outputs = make(map[string]float64)
		index[e.RunID] = len(entries)
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		if err := r.loadValues(ctx, &entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (r *SQLiteRecorder) loadValues(ctx context.Context, e *Entry) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT variable, kind, value FROM evaluation_values WHERE run_id = ?`, e.RunID)
	if err != nil {
		return fmt.Errorf("failed to query values of %s: %w", e.RunID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, kind string
		var value float64
		if err := rows.Scan(&name, &kind, &value); err != nil {
			return fmt.Errorf("failed to scan value: %w", err)
		}
		if kind == KindInput {
			e.Inputs[name] = value
		} else {
			e.Outputs[name] = value
		}
	}
	return rows.Err()
}

// Summarize returns per model totals, sorted by model name
func (r *SQLiteRecorder) Summarize(ctx context.Context) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if err := r.flushLocked(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT model, COUNT(*), SUM(CASE WHEN error != '' THEN 1 ELSE 0 END),
		       AVG(duration_us), MIN(started_at), MAX(started_at)
		FROM evaluations GROUP BY model ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize evaluations: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var avg float64
		var first, last int64
		if err := rows.Scan(&s.Model, &s.Evaluations, &s.Failures, &avg, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.AvgDuration = time.Duration(avg * float64(time.Microsecond))
		s.First = time.Unix(0, first)
		s.Last = time.Unix(0, last)
		out = append(out, s)
	}
	return out, rows.Err()
}

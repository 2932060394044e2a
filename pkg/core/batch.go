/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: batch.go
Description: Parallel evaluation of many input vectors against one model. Each worker
owns a private copy of the model and its own executor, so no state is shared.
*/

package core

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BatchStats summarises one Batch call
type BatchStats struct {
	Model      string        `json:"model"`
	Vectors    int           `json:"vectors"`
	Workers    int           `json:"workers"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
	PerSecond  float64       `json:"per_second"`
	FiredRules int64         `json:"fired_rules"`
}

// BatchError records why one vector failed
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("vector %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// worker evaluates a slice of vectors with its own executor
type worker struct {
	id       int
	executor *execution.Executor
	logger   *logrus.Logger
	done     int
}

// newWorker takes a private copy of m, which must itself be a snapshot no other
// goroutine writes to
func newWorker(id int, m *fuzzy.Model, logger *logrus.Logger, opts []execution.Option) (*worker, error) {
	ex, err := execution.New(m.Clone(), opts...)
	if err != nil {
		return nil, err
	}
	return &worker{id: id, executor: ex, logger: logger}, nil
}

func (w *worker) run(ctx context.Context, vectors []map[string]float64, results []*execution.Result, next *atomic.Int64) error {
	for {
		i := int(next.Add(1) - 1)
		if i >= len(vectors) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := w.executor.Evaluate(ctx, vectors[i])
		if err != nil {
			return &BatchError{Index: i, Err: err}
		}
		results[i] = res
		w.done++
	}
	w.logger.WithFields(logrus.Fields{
		"worker":    w.id,
		"evaluated": w.done,
	}).Debug("Batch worker finished")
	return nil
}

// Batch evaluates every input vector against the named model with up to workers
// goroutines. Results keep the order of vectors. The first failure cancels the batch.
func (e *Engine) Batch(ctx context.Context, name string, vectors []map[string]float64, workers int) ([]*execution.Result, *BatchStats, error) {
	m, err := e.Snapshot(name)
	if err != nil {
		return nil, nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(vectors) {
		workers = len(vectors)
	}

	start := time.Now()
	results := make([]*execution.Result, len(vectors))
	stats := &BatchStats{Model: m.Name(), Vectors: len(vectors), Workers: workers}

	pool := make([]*worker, workers)
	for i := range pool {
		w, err := newWorker(i, m, e.logger, e.execOptions)
		if err != nil {
			return nil, nil, err
		}
		pool[i] = w
	}

	var next atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	for _, w := range pool {
		w := w
		g.Go(func() error {
			return w.run(gCtx, vectors, results, &next)
		})
	}
	err = g.Wait()

	stats.Duration = time.Since(start)
	for _, res := range results {
		if res == nil {
			stats.Failed++
			continue
		}
		for _, s := range res.Strengths {
			if s.Strength > 0 {
				stats.FiredRules++
			}
		}
	}
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.PerSecond = float64(len(vectors)-stats.Failed) / secs
	}

	e.logger.WithFields(logrus.Fields{
		"model":    stats.Model,
		"vectors":  stats.Vectors,
		"workers":  stats.Workers,
		"failed":   stats.Failed,
		"duration": stats.Duration,
	}).Info("Batch evaluation complete")

	if err != nil {
		return results, stats, fmt.Errorf("batch %s: %w", m.Name(), err)
	}
	return results, stats, nil
}

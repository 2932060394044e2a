/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: recorder_test.go
Description: Tests for the SQLite evaluation recorder.
*/

package recording

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heaterModel(t *testing.T) *fuzzy.Model {
	t.Helper()
	m, err := fuzzy.NewModel("heater")
	require.NoError(t, err)
	temp, err := fuzzy.NewVariable("temp")
	require.NoError(t, err)
	temp.AddSet(fuzzy.MustSet("cold", fuzzy.FuncInvertedSCurve, 0, 30))
	temp.AddSet(fuzzy.MustSet("hot", fuzzy.FuncSCurve, 0, 30))
	power, err := fuzzy.NewVariable("power")
	require.NoError(t, err)
	power.AddSet(fuzzy.MustSet("low", fuzzy.FuncTriangle, 0, 50))
	power.AddSet(fuzzy.MustSet("high", fuzzy.FuncTriangle, 50, 100))
	require.NoError(t, m.AddVariable(temp))
	require.NoError(t, m.AddVariable(power))
	_, err = m.AddRule("if temp.cold then power.high")
	require.NoError(t, err)
	_, err = m.AddRule("if temp.hot then power.low")
	require.NoError(t, err)
	return m
}

func TestRecorderObservesEvaluations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite3")
	rec, err := NewSQLiteRecorder(Config{Path: path, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, path, rec.Path())

	ex, err := execution.New(heaterModel(t), execution.WithObserver(rec))
	require.NoError(t, err)
	ctx := context.Background()

	for _, temp := range []float64{5, 15, 25} {
		_, err := ex.Evaluate(ctx, map[string]float64{"temp": temp})
		require.NoError(t, err)
	}
	// two flushed by the batch size, one still buffered
	assert.Equal(t, 1, rec.Pending())

	_, err = ex.Evaluate(ctx, map[string]float64{})
	require.Error(t, err)

	entries, err := rec.Query(ctx, "heater", 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Zero(t, rec.Pending())

	failed := entries[0]
	assert.True(t, strings.Contains(failed.Error, "missing input"))
	assert.Empty(t, failed.Inputs)

	last := entries[1]
	assert.Equal(t, 25.0, last.Inputs["temp"])
	assert.Contains(t, last.Outputs, "power")
	assert.Less(t, last.Outputs["power"], 50.0)
	assert.Positive(t, last.Fired)
	assert.Empty(t, last.Error)

	limited, err := rec.Query(ctx, "HEATER", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := rec.Query(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	summary, err := rec.Summarize(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "heater", summary[0].Model)
	assert.Equal(t, 4, summary[0].Evaluations)
	assert.Equal(t, 1, summary[0].Failures)
	assert.False(t, summary[0].Last.Before(summary[0].First))

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	assert.True(t, errors.Is(rec.Record(ctx, Entry{Model: "heater"}), ErrClosed))
	_, err = rec.Query(ctx, "", 0)
	assert.True(t, errors.Is(err, ErrClosed))

	// the data survives a reopen
	again, err := NewSQLiteRecorder(Config{Path: path})
	require.NoError(t, err)
	defer again.Close()
	entries, err = again.Query(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRecorderUniqueName(t *testing.T) {
	dir := t.TempDir()
	a, err := NewSQLiteRecorder(Config{Dir: dir})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteRecorder(Config{Dir: dir})
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.Path(), b.Path())
	assert.Equal(t, dir, filepath.Dir(a.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(a.Path()), "fuzzylogic_evaluations_"))
}

func TestRecordDirect(t *testing.T) {
	rec, err := NewSQLiteRecorder(Config{Path: filepath.Join(t.TempDir(), "direct.sqlite3")})
	require.NoError(t, err)
	defer rec.Close()
	ctx := context.Background()

	started := time.Unix(1700000000, 0)
	require.NoError(t, rec.Record(ctx, Entry{
		Model:    "manual",
		Started:  started,
		Duration: 1500 * time.Microsecond,
		Inputs:   map[string]float64{"a": 1, "b": 2},
		Outputs:  map[string]float64{"y": 3},
	}))
	require.NoError(t, rec.Flush())

	entries, err := rec.Query(ctx, "manual", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.RunID)
	assert.True(t, started.Equal(e.Started))
	assert.Equal(t, 1500*time.Microsecond, e.Duration)
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, e.Inputs)
	assert.Equal(t, map[string]float64{"y": 3}, e.Outputs)
}

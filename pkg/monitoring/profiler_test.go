/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: profiler_test.go
Description: Tests for the pprof profiler.
*/

package monitoring

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	p := NewProfiler(ProfilerConfig{OutputDir: dir, CPU: true, Heap: true, Goroutine: true}, nil)

	require.NoError(t, p.Start("batch"))
	assert.ErrorIs(t, p.Start("batch"), ErrProfilerRunning)

	buf := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		buf = append(buf, make([]byte, 1024))
	}
	_ = buf

	summary, err := p.Stop()
	require.NoError(t, err)
	assert.Equal(t, "batch", summary.Label)
	assert.Positive(t, summary.Goroutines)
	require.Len(t, summary.Files, 3)
	for kind, path := range summary.Files {
		info, err := os.Stat(path)
		require.NoError(t, err, kind)
		assert.True(t, strings.HasPrefix(info.Name(), "batch_"+string(kind)), info.Name())
		assert.Positive(t, info.Size(), kind)
	}

	_, err = p.Stop()
	assert.Error(t, err)
}

func TestProfilerBadDirectory(t *testing.T) {
	file := t.TempDir() + "/file"
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	p := NewProfiler(ProfilerConfig{OutputDir: file + "/profiles", CPU: true}, nil)
	assert.Error(t, p.Start("x"))
}

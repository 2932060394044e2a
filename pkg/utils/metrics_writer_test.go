/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics_writer_test.go
Description: Tests for the run summary writer.
*/

package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetricsResult(t *testing.T) {
	dir := t.TempDir()
	result := map[string]interface{}{"vectors": 40, "failed": 0}

	path, err := WriteMetricsResult(dir, "batch", "tip per/service", "1.0.0", result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch"), filepath.Dir(path))

	base := filepath.Base(path)
	assert.True(t, strings.HasSuffix(base, "_batch_tip-per-service_v1.0.0.json"), base)
	assert.Len(t, strings.TrimSuffix(base, "_batch_tip-per-service_v1.0.0.json"), len(TimestampLayout))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back map[string]int
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 40, back["vectors"])
}

func TestWriteMetricsResultErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteMetricsResult(dir, "sweep", "", "1.0.0", map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	_, err = WriteMetricsResult(blocker, "batch", "m", "1.0.0", 1)
	assert.Error(t, err)
}

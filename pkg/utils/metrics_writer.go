/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics_writer.go
Description: Writes run summaries (batch statistics, sweeps) as timestamped JSON files
under <dir>/<kind>/ so successive runs can be compared.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout names result files so they sort chronologically
const TimestampLayout = "2006-01-02_15-04-05"

// WriteMetricsResult writes result to dir/kind/<timestamp>_<kind>_<name>_v<version>.json
func WriteMetricsResult(dir, kind, name, version string, result interface{}) (string, error) {
	metricsDir := filepath.Join(dir, kind)
	if err := os.MkdirAll(metricsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create metrics directory: %w", err)
	}

	parts := []string{time.Now().Format(TimestampLayout), kind}
	if name != "" {
		parts = append(parts, sanitize(name))
	}
	filename := strings.Join(parts, "_") + fmt.Sprintf("_v%s.json", version)
	filePath := filepath.Join(metricsDir, filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metrics file: %w", err)
	}
	return filePath, nil
}

// sanitize keeps a model name safe for use in a file name
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, name)
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Log file management and analysis. LogManager rotates, compresses and prunes
engine log files; LogAnalyzer counts levels and engine events across them.
*/

package logging

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogManager provides log file housekeeping
type LogManager struct {
	logDir   string
	maxFiles int
	maxSize  int64
	compress bool
}

// NewLogManager creates a new log manager
func NewLogManager(logDir string, maxFiles int, maxSize int64, compress bool) *LogManager {
	return &LogManager{
		logDir:   logDir,
		maxFiles: maxFiles,
		maxSize:  maxSize,
		compress: compress,
	}
}

// RotateLogs renames every log file larger than the size limit
func (lm *LogManager) RotateLogs() error {
	files, err := filepath.Glob(filepath.Join(lm.logDir, filePattern))
	if err != nil {
		return fmt.Errorf("failed to glob log files: %w", err)
	}

	for _, file := range files {
		if err := lm.rotateFile(file); err != nil {
			return fmt.Errorf("failed to rotate file %s: %w", file, err)
		}
	}
	return nil
}

func (lm *LogManager) rotateFile(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.Size() < lm.maxSize {
		return nil
	}

	rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.Rename(path, rotated); err != nil {
		return err
	}
	if lm.compress {
		return lm.compressFile(rotated)
	}
	return nil
}

// compressFile gzips a log file and removes the original
func (lm *LogManager) compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	compressed, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer compressed.Close()

	gzipWriter := gzip.NewWriter(compressed)
	if _, err := io.Copy(gzipWriter, source); err != nil {
		gzipWriter.Close()
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// CleanupOldLogs keeps the newest maxFiles log files
func (lm *LogManager) CleanupOldLogs() error {
	files, err := filepath.Glob(filepath.Join(lm.logDir, filePattern+"*"))
	if err != nil {
		return fmt.Errorf("failed to glob log files: %w", err)
	}
	if len(files) <= lm.maxFiles {
		return nil
	}

	sortByModTime(files)
	for _, file := range files[:len(files)-lm.maxFiles] {
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("failed to remove file %s: %w", file, err)
		}
	}
	return nil
}

// GetLogStats returns statistics about log files
func (lm *LogManager) GetLogStats() (*LogStats, error) {
	files, err := filepath.Glob(filepath.Join(lm.logDir, filePattern+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob log files: %w", err)
	}

	stats := &LogStats{TotalFiles: len(files)}
	for _, file := range files {
		stat, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.TotalSize += stat.Size()
		if stats.OldestFile.IsZero() || stat.ModTime().Before(stats.OldestFile) {
			stats.OldestFile = stat.ModTime()
		}
		if stat.ModTime().After(stats.NewestFile) {
			stats.NewestFile = stat.ModTime()
		}
		if strings.HasSuffix(file, ".gz") {
			stats.CompressedFiles++
		} else {
			stats.UncompressedFiles++
		}
	}
	return stats, nil
}

// LogStats holds statistics about log files
type LogStats struct {
	TotalFiles        int       `json:"total_files"`
	TotalSize         int64     `json:"total_size"`
	CompressedFiles   int       `json:"compressed_files"`
	UncompressedFiles int       `json:"uncompressed_files"`
	OldestFile        time.Time `json:"oldest_file"`
	NewestFile        time.Time `json:"newest_file"`
}

// LogAnalyzer counts events in plain log files
type LogAnalyzer struct {
	logDir string
}

// NewLogAnalyzer creates a new log analyzer
func NewLogAnalyzer(logDir string) *LogAnalyzer {
	return &LogAnalyzer{logDir: logDir}
}

// AnalyzeLogs scans every uncompressed log file in the directory
func (la *LogAnalyzer) AnalyzeLogs() (*LogAnalysis, error) {
	files, err := filepath.Glob(filepath.Join(la.logDir, filePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to glob log files: %w", err)
	}

	analysis := &LogAnalysis{
		StartTime: time.Now(),
		LogFiles:  len(files),
	}
	for _, file := range files {
		if err := la.analyzeFile(file, analysis); err != nil {
			return nil, fmt.Errorf("failed to analyze file %s: %w", file, err)
		}
	}
	return analysis, nil
}

func (la *LogAnalyzer) analyzeFile(path string, analysis *LogAnalysis) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		la.analyzeLine(scanner.Text(), analysis)
	}
	return scanner.Err()
}

// analyzeLine understands text, custom and JSON lines since all carry the level name
func (la *LogAnalyzer) analyzeLine(line string, analysis *LogAnalysis) {
	analysis.TotalLines++

	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "DEBUG"):
		analysis.DebugCount++
	case strings.Contains(upper, "INFO"):
		analysis.InfoCount++
	case strings.Contains(upper, "WARN"):
		analysis.WarningCount++
	case strings.Contains(upper, "ERROR"):
		analysis.ErrorCount++
	}

	switch {
	case strings.Contains(line, "Model evaluated"):
		analysis.EvaluationCount++
	case strings.Contains(line, "Evaluation failed"):
		analysis.FailureCount++
	case strings.Contains(line, "Rule fired"):
		analysis.RuleFiredCount++
	case strings.Contains(line, "Model reloaded"):
		analysis.ReloadCount++
	case strings.Contains(line, "Model loaded"):
		analysis.ModelLoadCount++
	case strings.Contains(line, "Batch complete"):
		analysis.BatchCount++
	}
}

// LogAnalysis holds the results of log analysis
type LogAnalysis struct {
	StartTime       time.Time `json:"start_time"`
	LogFiles        int       `json:"log_files"`
	TotalLines      int64     `json:"total_lines"`
	DebugCount      int64     `json:"debug_count"`
	InfoCount       int64     `json:"info_count"`
	WarningCount    int64     `json:"warning_count"`
	ErrorCount      int64     `json:"error_count"`
	EvaluationCount int64     `json:"evaluation_count"`
	FailureCount    int64     `json:"failure_count"`
	RuleFiredCount  int64     `json:"rule_fired_count"`
	ReloadCount     int64     `json:"reload_count"`
	ModelLoadCount  int64     `json:"model_load_count"`
	BatchCount      int64     `json:"batch_count"`
}

// GetLogSummary returns a summary of the log analysis
func (la *LogAnalysis) GetLogSummary() string {
	return fmt.Sprintf(
		"Log Analysis Summary:\n"+
			"  Files: %d\n"+
			"  Total Lines: %d\n"+
			"  Debug: %d\n"+
			"  Info: %d\n"+
			"  Warning: %d\n"+
			"  Error: %d\n"+
			"  Evaluations: %d\n"+
			"  Failures: %d\n"+
			"  Rules Fired: %d\n"+
			"  Models Loaded: %d\n"+
			"  Reloads: %d\n"+
			"  Batches: %d",
		la.LogFiles, la.TotalLines, la.DebugCount, la.InfoCount,
		la.WarningCount, la.ErrorCount, la.EvaluationCount, la.FailureCount,
		la.RuleFiredCount, la.ModelLoadCount, la.ReloadCount, la.BatchCount,
	)
}

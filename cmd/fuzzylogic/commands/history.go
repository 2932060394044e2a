/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: history.go
Description: Read back recorded evaluations and summarise log files.
*/

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kleascm/fuzzylogic/pkg/logging"
	"github.com/kleascm/fuzzylogic/pkg/recording"
	"github.com/spf13/cobra"
)

// RunHistory prints recorded evaluations from a recorder database. With no model
// argument it prints the per model summary instead.
func RunHistory(cmd *cobra.Command, args []string) error {
	db, _ := cmd.Flags().GetString("db")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if db == "" {
		db = cfg.Recorder.Path
	}
	if db == "" {
		return fmt.Errorf("no recorder database given, use --db or recorder.path")
	}
	if _, err := os.Stat(db); err != nil {
		return fmt.Errorf("recorder database: %w", err)
	}

	rec, err := recording.NewSQLiteRecorder(recording.Config{Path: db, BatchSize: 1})
	if err != nil {
		return err
	}
	defer rec.Close()

	if len(args) == 0 {
		summaries, err := rec.Summarize(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(summaries)
		}
		fmt.Printf("🗄️  Recorded evaluations in %s\n\n", db)
		for _, sum := range summaries {
			fmt.Printf("🧠 %s\n", sum.Model)
			fmt.Printf("   Evaluations: %d (%d failed)\n", sum.Evaluations, sum.Failures)
			fmt.Printf("   Average duration: %s\n", sum.AvgDuration)
			fmt.Printf("   First: %s  Last: %s\n", sum.First.Format("2006-01-02 15:04:05"), sum.Last.Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	entries, err := rec.Query(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(entries)
	}
	fmt.Printf("🗄️  Last %d evaluations of %s\n\n", len(entries), args[0])
	for _, e := range entries {
		status := "✅"
		if e.Error != "" {
			status = "❌"
		}
		fmt.Printf("%s %s  %s  %s\n", status, e.Started.Format("2006-01-02 15:04:05.000"), e.RunID, e.Duration)
		fmt.Printf("   in:  %s\n", formatValues(e.Inputs))
		if e.Error != "" {
			fmt.Printf("   err: %s\n", e.Error)
			continue
		}
		fmt.Printf("   out: %s\n", formatValues(e.Outputs))
	}
	return nil
}

// RunLogs summarises the log directory and optionally prunes old files
func RunLogs(cmd *cobra.Command, args []string) error {
	cleanup, _ := cmd.Flags().GetBool("cleanup")

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Log.OutputDir
	if dir == "" {
		return fmt.Errorf("file logging is disabled, set log.output_dir")
	}

	manager := logging.NewLogManager(dir, cfg.Log.MaxFiles, cfg.Log.MaxSize, cfg.Log.Compress)
	if cleanup {
		if err := manager.CleanupOldLogs(); err != nil {
			return err
		}
		fmt.Printf("🧹 Kept the newest %d log files in %s\n", cfg.Log.MaxFiles, dir)
	}

	stats, err := manager.GetLogStats()
	if err != nil {
		return err
	}
	fmt.Printf("📁 %s: %d files (%d compressed), %d bytes\n", dir, stats.TotalFiles, stats.CompressedFiles, stats.TotalSize)

	analysis, err := logging.NewLogAnalyzer(dir).AnalyzeLogs()
	if err != nil {
		return err
	}
	fmt.Println(analysis.GetLogSummary())
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValues(values map[string]float64) string {
	parts := make([]string, 0, len(values))
	for _, name := range sortedKeys(values) {
		parts = append(parts, fmt.Sprintf("%s=%g", name, values[name]))
	}
	return strings.Join(parts, " ")
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: batch.go
Description: Batch evaluation of CSV or JSON input files and the grid sweep used to
check a rule base for coverage gaps.
*/

package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunBatch evaluates every row of an input file and writes one result row each
func RunBatch(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	statsDir, _ := cmd.Flags().GetString("stats-dir")
	workers := viper.GetInt("engine.workers")

	vectors, err := readVectors(args[1])
	if err != nil {
		return err
	}

	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	h, err := s.engine.LoadModel(args[0])
	if err != nil {
		return err
	}
	m, err := s.engine.Models().Get(h)
	if err != nil {
		return err
	}

	stopProfile, err := s.profile(cmd, "batch")
	if err != nil {
		return err
	}
	results, stats, err := s.engine.Batch(cmd.Context(), m.Name(), vectors, workers)
	stopProfile()
	if stats != nil {
		s.logger.LogBatch(stats.Model, stats.Vectors, stats.Failed, stats.PerSecond, map[string]interface{}{
			"workers": stats.Workers,
		})
	}
	if err != nil {
		return err
	}

	if err := writeResults(output, m, results); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "⚡ Evaluated %d vectors with %d workers in %s (%.0f/s)\n",
		stats.Vectors, stats.Workers, stats.Duration, stats.PerSecond)
	if statsDir != "" {
		path, err := utils.WriteMetricsResult(statsDir, "batch", m.Name(), core.Version, stats)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "📊 Stats written to %s\n", path)
	}
	return nil
}

// readVectors accepts a CSV file whose header names the input variables, or a JSON
// array of name to value objects
func readVectors(path string) ([]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var raw []map[string]float64
		if err := json.NewDecoder(f).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		vectors := make([]map[string]float64, len(raw))
		for i, row := range raw {
			vectors[i] = make(map[string]float64, len(row))
			for k, v := range row {
				vectors[i][strings.ToLower(k)] = v
			}
		}
		return vectors, nil
	}

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.Comment = '#'
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var vectors []map[string]float64
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row := make(map[string]float64, len(header))
		for i, cell := range rec {
			x, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d column %s: %w", path, line, header[i], err)
			}
			row[header[i]] = x
		}
		vectors = append(vectors, row)
	}
	return vectors, nil
}

// writeResults writes JSON when the output ends in .json and CSV otherwise.
// An empty path or "-" means stdout.
func writeResults(path string, m *fuzzy.Model, results []*execution.Result) error {
	w := io.Writer(os.Stdout)
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	var columns []string
	for _, v := range m.Inputs() {
		columns = append(columns, v.Name())
	}
	inputs := len(columns)
	for _, v := range m.Outputs() {
		columns = append(columns, v.Name())
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, res := range results {
		for i, name := range columns {
			x := res.Outputs[name]
			if i < inputs {
				x = res.Inputs[name]
			}
			row[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SweepReport summarises a grid sweep
type SweepReport struct {
	Model   string           `json:"model"`
	Steps   int              `json:"steps"`
	Vectors int              `json:"vectors"`
	Unfired map[string]int   `json:"unfired"` // output -> vectors where no rule fired
	Silent  []string         `json:"silent_rules"`
	Stats   *core.BatchStats `json:"stats"`
}

// RunCheck sweeps every input across its range and reports coverage gaps
func RunCheck(cmd *cobra.Command, args []string) error {
	steps, _ := cmd.Flags().GetInt("steps")
	maxVectors, _ := cmd.Flags().GetInt("max-vectors")
	strict, _ := cmd.Flags().GetBool("strict")
	statsDir, _ := cmd.Flags().GetString("stats-dir")
	if steps < 2 {
		return fmt.Errorf("steps must be at least 2")
	}

	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	h, err := s.engine.LoadModel(args[0])
	if err != nil {
		return err
	}
	m, err := s.engine.Models().Get(h)
	if err != nil {
		return err
	}

	inputs := m.Inputs()
	total := math.Pow(float64(steps), float64(len(inputs)))
	if total > float64(maxVectors) {
		return fmt.Errorf("sweep of %d inputs at %d steps needs %.0f vectors, more than --max-vectors %d",
			len(inputs), steps, total, maxVectors)
	}
	vectors := sweep(inputs, steps)

	fmt.Printf("🔍 Sweeping %s: %d inputs, %d steps, %d vectors\n", m.Name(), len(inputs), steps, len(vectors))
	stopProfile, err := s.profile(cmd, "sweep")
	if err != nil {
		return err
	}
	results, stats, err := s.engine.Batch(cmd.Context(), m.Name(), vectors, viper.GetInt("engine.workers"))
	stopProfile()
	if err != nil {
		return err
	}

	report := SweepReport{
		Model:   m.Name(),
		Steps:   steps,
		Vectors: len(vectors),
		Unfired: make(map[string]int),
		Stats:   stats,
	}
	fired := make([]bool, m.RuleCount())
	for _, res := range results {
		for name, ok := range res.Fired {
			if !ok {
				report.Unfired[name]++
			}
		}
		for _, rs := range res.Strengths {
			if rs.Strength > 0 && rs.Index < len(fired) {
				fired[rs.Index] = true
			}
		}
	}
	for i, r := range m.Rules() {
		if !fired[i] {
			report.Silent = append(report.Silent, r.String())
		}
	}

	fmt.Println()
	gaps := 0
	for _, v := range m.Outputs() {
		n := report.Unfired[v.Name()]
		if n == 0 {
			fmt.Printf("✅ %s: covered everywhere\n", v.Name())
			continue
		}
		gaps++
		fmt.Printf("⚠️  %s: no rule fired for %d of %d vectors (%.1f%%)\n",
			v.Name(), n, len(vectors), 100*float64(n)/float64(len(vectors)))
	}
	for _, text := range report.Silent {
		gaps++
		fmt.Printf("💤 never fires: %s\n", text)
	}
	fmt.Println()

	if statsDir != "" {
		path, err := utils.WriteMetricsResult(statsDir, "sweep", m.Name(), core.Version, report)
		if err != nil {
			return err
		}
		fmt.Printf("📊 Sweep written to %s\n", path)
	}

	if gaps == 0 {
		fmt.Println("✨ Rule base covers the whole input space")
		return nil
	}
	fmt.Printf("📊 %d coverage gaps found\n", gaps)
	if strict {
		return fmt.Errorf("%d coverage gaps in %s", gaps, m.Name())
	}
	return nil
}

// sweep builds the full grid of steps evenly spaced points per input
func sweep(inputs []*fuzzy.Variable, steps int) []map[string]float64 {
	vectors := []map[string]float64{{}}
	for _, v := range inputs {
		lo, hi := v.Min(), v.Max()
		next := make([]map[string]float64, 0, len(vectors)*steps)
		for _, base := range vectors {
			for i := 0; i < steps; i++ {
				row := make(map[string]float64, len(base)+1)
				for k, x := range base {
					row[k] = x
				}
				row[v.Name()] = lo + (hi-lo)*float64(i)/float64(steps-1)
				next = append(next, row)
			}
		}
		vectors = next
	}
	return vectors
}

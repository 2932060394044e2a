/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared helpers for the fuzzylogic commands: configuration loading, logging
setup, engine construction and input parsing.
*/

package commands

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kleascm/fuzzylogic/pkg/config"
	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/logging"
	"github.com/kleascm/fuzzylogic/pkg/monitoring"
	"github.com/kleascm/fuzzylogic/pkg/recording"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LoadConfig reads the config file, .env file, FUZZYLOGIC_ environment and bound flags
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), viper.GetString("config"), viper.GetString("env_file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SetupLogging creates the logger described by the log section
func SetupLogging(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// session bundles what most commands need
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	engine   *core.Engine
	recorder *recording.SQLiteRecorder
}

// newSession loads configuration, logging, the optional recorder and an initialized
// engine whose executors report to the recorder and any extra observers. Each
// evaluation is also logged when logEvaluations is set.
func newSession(logEvaluations bool, extra ...execution.Observer) (*session, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := SetupLogging(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger}

	opts, err := cfg.Engine.ExecOptions()
	if err != nil {
		s.close()
		return nil, err
	}
	opts = append(opts, execution.WithLogger(logger.GetLogger()))
	if logEvaluations {
		opts = append(opts, execution.WithObserver(logger))
	}
	for _, o := range extra {
		opts = append(opts, execution.WithObserver(o))
	}

	if cfg.Recorder.Enabled {
		rec, err := recording.NewSQLiteRecorder(recording.Config{
			Path:      cfg.Recorder.Path,
			Dir:       cfg.Recorder.Dir,
			BatchSize: cfg.Recorder.BatchSize,
			Logger:    logger.GetLogger(),
		})
		if err != nil {
			s.close()
			return nil, err
		}
		s.recorder = rec
		opts = append(opts, execution.WithObserver(rec))
	}

	s.engine = core.NewEngine(core.WithLogger(logger.GetLogger()), core.WithExecOptions(opts...))
	s.engine.Init()
	return s, nil
}

func (s *session) close() {
	if s.engine != nil {
		_ = s.engine.Close()
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Error("Failed to close recorder", map[string]interface{}{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "🗄️  Evaluations recorded in %s\n", s.recorder.Path())
		}
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

// profile starts CPU and heap profiling when --profile-dir is set. The returned
// function stops it and prints where the files went.
func (s *session) profile(cmd *cobra.Command, label string) (func(), error) {
	dir, _ := cmd.Flags().GetString("profile-dir")
	if dir == "" {
		return func() {}, nil
	}
	p := monitoring.NewProfiler(monitoring.ProfilerConfig{
		OutputDir: dir,
		CPU:       true,
		Heap:      true,
	}, s.logger.GetLogger())
	if err := p.Start(label); err != nil {
		return nil, err
	}
	return func() {
		summary, err := p.Stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Profiling: %v\n", err)
		}
		if summary == nil {
			return
		}
		fmt.Fprintf(os.Stderr, "🔬 Profiled %s: %d bytes allocated, %d GCs\n", label, summary.TotalAlloc, summary.NumGC)
		for _, kind := range []monitoring.ProfileKind{monitoring.ProfileCPU, monitoring.ProfileHeap} {
			if path, ok := summary.Files[kind]; ok {
				fmt.Fprintf(os.Stderr, "   • %-5s %s\n", kind, path)
			}
		}
	}, nil
}

// ParseInputs turns name=value pairs into an input map
func ParseInputs(pairs []string) (map[string]float64, error) {
	inputs := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		for _, part := range strings.Split(pair, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, ok := strings.Cut(part, "=")
			if !ok {
				return nil, fmt.Errorf("input %q: expected name=value", part)
			}
			x, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", part, err)
			}
			inputs[strings.ToLower(strings.TrimSpace(name))] = x
		}
	}
	return inputs, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printResult(res *execution.Result) {
	fmt.Printf("📥 Inputs:\n")
	for _, name := range sortedKeys(res.Inputs) {
		fmt.Printf("   • %-16s %g\n", name, res.Inputs[name])
	}
	fmt.Printf("📤 Outputs:\n")
	for _, name := range sortedKeys(res.Outputs) {
		note := ""
		if !res.Fired[name] {
			note = "  ⚠️  no rule fired, range midpoint"
		}
		fmt.Printf("   • %-16s %.4f%s\n", name, res.Outputs[name], note)
	}
	fired := 0
	for _, s := range res.Strengths {
		if s.Strength > 0 {
			fired++
		}
	}
	fmt.Printf("⚡ Rules fired: %d of %d in %s\n", fired, len(res.Strengths), res.Duration)
}

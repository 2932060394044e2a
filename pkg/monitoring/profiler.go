/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: profiler.go
Description: pprof profiling around long running evaluations. Captures a CPU profile,
execution trace, heap and goroutine snapshots into one directory and summarises the
runtime memory statistics of the run.
*/

package monitoring

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProfileKind names one profile file
type ProfileKind string

const (
	ProfileCPU       ProfileKind = "cpu"
	ProfileHeap      ProfileKind = "heap"
	ProfileGoroutine ProfileKind = "goroutine"
	ProfileTrace     ProfileKind = "trace"
)

// ErrProfilerRunning is returned by Start on a running profiler
var ErrProfilerRunning = errors.New("profiler already running")

// ProfilerConfig selects what to capture
type ProfilerConfig struct {
	OutputDir string
	CPU       bool
	Heap      bool
	Goroutine bool
	Trace     bool
}

// ProfileSummary describes one profiled run
type ProfileSummary struct {
	Label      string                 `json:"label"`
	Started    time.Time              `json:"started"`
	Duration   time.Duration          `json:"duration"`
	Files      map[ProfileKind]string `json:"files"`
	HeapAlloc  uint64                 `json:"heap_alloc"`
	TotalAlloc uint64                 `json:"total_alloc"` // bytes allocated during the run
	NumGC      uint32                 `json:"num_gc"`      // collections during the run
	GCPause    time.Duration          `json:"gc_pause"`
	Goroutines int                    `json:"goroutines"`
}

// Profiler captures profiles between Start and Stop. Only one CPU profile can run
// per process.
type Profiler struct {
	config ProfilerConfig
	logger *logrus.Logger

	mu      sync.Mutex
	running bool
	label   string
	started time.Time
	before  runtime.MemStats
	files   map[ProfileKind]string
	closers []io.Closer
}

// NewProfiler creates a profiler writing into config.OutputDir
func NewProfiler(config ProfilerConfig, logger *logrus.Logger) *Profiler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Profiler{config: config, logger: logger}
}

func (p *Profiler) path(kind ProfileKind) string {
	ext := ".prof"
	if kind == ProfileTrace {
		ext = ".out"
	}
	name := fmt.Sprintf("%s_%s_%s%s", p.label, kind, p.started.Format("20060102_150405"), ext)
	return filepath.Join(p.config.OutputDir, name)
}

// Start begins the CPU profile and trace when enabled. label prefixes every file name.
func (p *Profiler) Start(label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrProfilerRunning
	}
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	p.label = label
	p.started = time.Now()
	p.files = make(map[ProfileKind]string)
	p.closers = nil
	runtime.ReadMemStats(&p.before)

	if p.config.CPU {
		f, err := os.Create(p.path(ProfileCPU))
		if err != nil {
			return fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.files[ProfileCPU] = f.Name()
		p.closers = append(p.closers, f)
	}
	if p.config.Trace {
		f, err := os.Create(p.path(ProfileTrace))
		if err != nil {
			p.stopLocked()
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			p.stopLocked()
			return fmt.Errorf("failed to start trace: %w", err)
		}
		p.files[ProfileTrace] = f.Name()
		p.closers = append(p.closers, f)
	}

	p.running = true
	p.logger.WithFields(logrus.Fields{
		"label": label,
		"dir":   p.config.OutputDir,
	}).Debug("Profiling started")
	return nil
}

// Stop ends the running profiles, writes the snapshots and returns the summary
func (p *Profiler) Stop() (*ProfileSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil, errors.New("profiler not running")
	}
	p.running = false
	p.stopLocked()

	var errs []error
	if p.config.Heap {
		runtime.GC()
		errs = append(errs, p.snapshot(ProfileHeap, "heap"))
	}
	if p.config.Goroutine {
		errs = append(errs, p.snapshot(ProfileGoroutine, "goroutine"))
	}

	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	summary := &ProfileSummary{
		Label:      p.label,
		Started:    p.started,
		Duration:   time.Since(p.started),
		Files:      p.files,
		HeapAlloc:  after.HeapAlloc,
		TotalAlloc: after.TotalAlloc - p.before.TotalAlloc,
		NumGC:      after.NumGC - p.before.NumGC,
		GCPause:    time.Duration(after.PauseTotalNs - p.before.PauseTotalNs),
		Goroutines: runtime.NumGoroutine(),
	}
	p.logger.WithFields(logrus.Fields{
		"label":       summary.Label,
		"duration":    summary.Duration,
		"total_alloc": summary.TotalAlloc,
		"num_gc":      summary.NumGC,
	}).Info("Profiling stopped")
	return summary, errors.Join(errs...)
}

// stopLocked stops the CPU profile and trace and closes their files
func (p *Profiler) stopLocked() {
	if _, ok := p.files[ProfileCPU]; ok {
		pprof.StopCPUProfile()
	}
	if _, ok := p.files[ProfileTrace]; ok {
		trace.Stop()
	}
	for _, c := range p.closers {
		c.Close()
	}
	p.closers = nil
}

func (p *Profiler) snapshot(kind ProfileKind, name string) error {
	f, err := os.Create(p.path(kind))
	if err != nil {
		return fmt.Errorf("failed to create %s profile: %w", name, err)
	}
	defer f.Close()
	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", name, err)
	}
	p.files[kind] = f.Name()
	return nil
}

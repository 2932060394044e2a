/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: serve.go
Description: Runs the HTTP API with the model store, evaluation recorder, Prometheus
metrics and hot reload of a model directory.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/kleascm/fuzzylogic/pkg/monitoring"
	"github.com/kleascm/fuzzylogic/pkg/server"
	"github.com/kleascm/fuzzylogic/pkg/watcher"
	"github.com/spf13/cobra"
)

// RunServe starts the HTTP API and blocks until interrupted
func RunServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics(true)
	s, err := newSession(false, metrics)
	if err != nil {
		return err
	}
	defer s.close()
	cfg := s.cfg

	fmt.Println("🚀 Fuzzy Logic Server")
	fmt.Println("=====================")
	fmt.Printf("🌐 Address: %s\n", cfg.Server.Addr)

	store, err := openStore(cfg.Store, s.logger.GetLogger())
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Store.InMemory {
		fmt.Println("📦 Store: in memory")
	} else {
		fmt.Printf("📦 Store: %s\n", cfg.Store.Path)
	}

	opts := server.Options{
		Config:  cfg.Server,
		Store:   store,
		Metrics: metrics,
		Logger:  s.logger.GetLogger(),
		Workers: cfg.Engine.Workers,
	}
	if s.recorder != nil {
		opts.History = s.recorder
		fmt.Printf("🗄️  Recording evaluations to %s\n", s.recorder.Path())
	}
	srv := server.New(s.engine, opts)

	stored, err := srv.LoadStored(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("🧠 %d stored models loaded\n", stored)

	if dir := cfg.Server.ModelsDir; dir != "" {
		loaded := loadModelDir(s, dir)
		metrics.SetModelsLoaded(s.engine.Models().Len())
		fmt.Printf("📁 %d models loaded from %s\n", loaded, dir)

		if cfg.Server.Watch {
			w, err := startWatcher(ctx, s, metrics, dir)
			if err != nil {
				return err
			}
			defer w.Stop()
			fmt.Printf("👀 Watching %s for changes\n", dir)
		}
	}

	fmt.Println()
	return srv.Run(ctx)
}

// loadModelDir registers every model file in dir. Files that fail are reported
// and skipped.
func loadModelDir(s *session, dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("⚠️  Cannot read %s: %v\n", dir, err)
		return 0
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := modelfile.FormatFromPath(path); err != nil {
			continue
		}
		h, err := s.engine.ReloadModel(path)
		if err != nil {
			fmt.Printf("⚠️  %s: %v\n", path, err)
			continue
		}
		if m, err := s.engine.Models().Get(h); err == nil {
			s.logger.LogModelLoaded(m.Name(), path, len(m.Variables()), m.RuleCount(), nil)
		}
		loaded++
	}
	return loaded
}

func startWatcher(ctx context.Context, s *session, metrics *monitoring.Metrics, dir string) (*watcher.Watcher, error) {
	w, err := watcher.New(s.engine, watcher.Options{
		Debounce: s.cfg.Watch.Debounce,
		Logger:   s.logger.GetLogger(),
		Handler: func(ev watcher.Event) {
			metrics.RecordReload(ev.Err)
			metrics.SetModelsLoaded(s.engine.Models().Len())
			name := filepath.Base(ev.Path)
			if ev.Handle != core.NoModel {
				if m, err := s.engine.Models().Get(ev.Handle); err == nil {
					name = m.Name()
				}
			}
			s.logger.LogReload(name, ev.Path, ev.Err, nil)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := w.AddDir(dir); err != nil {
		return nil, err
	}
	w.Start(ctx)
	return w, nil
}

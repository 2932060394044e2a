/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: watcher.go
Description: Hot reload of model files. Watches the directories holding model files,
collapses bursts of editor events with a debounce window and reloads each changed
model through a Reloader, reporting the outcome to a handler.
*/

package watcher

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/sirupsen/logrus"
)

// Reloader replaces a registered model with the content of a file
type Reloader interface {
	ReloadModel(path string) (fuzzy.Handle, error)
}

// Event reports one reload
type Event struct {
	Path   string
	Handle fuzzy.Handle
	Err    error
	Time   time.Time
}

// Handler receives reload events
type Handler func(Event)

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	Handler  Handler
	Logger   *logrus.Logger
}

// Watcher reloads model files when they change
type Watcher struct {
	reloader Reloader
	watcher  *fsnotify.Watcher
	debounce time.Duration
	handler  Handler
	logger   *logrus.Logger

	mu    sync.Mutex
	files map[string]bool // watched model files
	dirs  map[string]bool // directories whose model files are all watched

	changes  chan string
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher. Nothing is watched until AddFile or AddDir.
func New(reloader Reloader, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}
	return &Watcher{
		reloader: reloader,
		watcher:  fw,
		debounce: opts.Debounce,
		handler:  opts.Handler,
		logger:   opts.Logger,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		changes:  make(chan string, 256),
		done:     make(chan struct{}),
	}, nil
}

// AddFile watches one model file
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	w.mu.Lock()
	w.files[abs] = true
	w.mu.Unlock()
	return nil
}

// AddDir watches every model file in dir, including files created later
func (w *Watcher) AddDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.mu.Lock()
	w.dirs[abs] = true
	w.mu.Unlock()
	return nil
}

func (w *Watcher) wanted(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[path] {
		return true
	}
	if !w.dirs[filepath.Dir(path)] {
		return false
	}
	_, err := modelfile.FormatFromPath(path)
	return err == nil
}

// Start begins processing events until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
}

// Stop ends watching. Changes still waiting out the debounce window are reloaded
// before Stop returns.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// removals are followed by a create when editors save by rename
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(event.Name)
			if !w.wanted(path) {
				continue
			}
			select {
			case w.changes <- path:
			default:
				w.logger.WithField("path", path).Warn("Watcher queue full, change dropped")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			w.reload(p)
		}
		pending = make(map[string]bool)
		timerC = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
		drain:
			for {
				select {
				case path := <-w.changes:
					pending[path] = true
				default:
					break drain
				}
			}
			if timer != nil {
				timer.Stop()
			}
			flush()
			return
		case path := <-w.changes:
			pending[path] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			flush()
		}
	}
}

func (w *Watcher) reload(path string) {
	h, err := w.reloader.ReloadModel(path)
	fields := logrus.Fields{"path": path}
	if err != nil {
		w.logger.WithFields(fields).WithError(err).Warn("Model reload failed")
	} else {
		w.logger.WithFields(fields).Info("Model reloaded")
	}
	if w.handler != nil {
		w.handler(Event{Path: path, Handle: h, Err: err, Time: time.Now()})
	}
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Engine is the handle based facade over the model registry. It keeps the
current model, routes inputs and outputs addressed by variable handle to the model that
owns them and runs calculations through the execution package.
*/

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/sirupsen/logrus"
)

const (
	Library = "fuzzylogic"
	Author  = "KleaSCM"
	Version = "1.0.0"
)

// NoModel selects the current model wherever a model handle is accepted
const NoModel fuzzy.Handle = 0

var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrNoModel        = errors.New("no current model")
	ErrWrongKind      = errors.New("handle refers to a different kind of object")
)

// Info describes the library returned by Init
type Info struct {
	Library string `json:"library"`
	Author  string `json:"author"`
	Version string `json:"version"`
}

// Engine manages models by handle. It is safe for concurrent use: Calculate binds
// values to registered models under mu, and every copy of a registered model is
// taken under mu as well.
type Engine struct {
	mu        sync.Mutex
	instances int
	models    *fuzzy.Models
	current   fuzzy.Handle

	// pending inputs and last results, keyed by model handle
	inputs  map[fuzzy.Handle]map[string]float64
	results map[fuzzy.Handle]*execution.Result

	execOptions []execution.Option
	logger      *logrus.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExecOptions sets the options every executor is built with
func WithExecOptions(opts ...execution.Option) Option {
	return func(e *Engine) { e.execOptions = append(e.execOptions, opts...) }
}

// NewEngine creates an engine. Call Init before use.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		models:  fuzzy.NewModels(fuzzy.NewObjects()),
		inputs:  make(map[fuzzy.Handle]map[string]float64),
		results: make(map[fuzzy.Handle]*execution.Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logrus.New()
		e.logger.SetOutput(io.Discard)
	}
	return e
}

// Init registers a user of the engine. Calls are counted and balanced by Close.
func (e *Engine) Init() Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instances++
	return Info{Library: Library, Author: Author, Version: Version}
}

// Close releases one Init. The last Close frees every model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instances == 0 {
		return ErrNotInitialized
	}
	e.instances--
	if e.instances == 0 {
		e.models.Clear()
		e.current = NoModel
		e.inputs = make(map[fuzzy.Handle]map[string]float64)
		e.results = make(map[fuzzy.Handle]*execution.Result)
	}
	return nil
}

// Models exposes the registry
func (e *Engine) Models() *fuzzy.Models {
	return e.models
}

// ExecOptions returns the options executors are built with
func (e *Engine) ExecOptions() []execution.Option {
	return append([]execution.Option(nil), e.execOptions...)
}

// CreateModel registers an empty model. The first model becomes current.
func (e *Engine) CreateModel(name string) (fuzzy.Handle, error) {
	m, err := fuzzy.NewModel(name)
	if err != nil {
		return NoModel, err
	}
	return e.AddModel(m)
}

// AddModel registers m. The first model becomes current.
func (e *Engine) AddModel(m *fuzzy.Model) (fuzzy.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instances == 0 {
		return NoModel, ErrNotInitialized
	}
	h, err := e.models.Add(m)
	if err != nil {
		return NoModel, err
	}
	if e.current == NoModel {
		e.current = h
	}
	return h, nil
}

// FreeModel unregisters the model with handle h
func (e *Engine) FreeModel(h fuzzy.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.resolve(h)
	if err != nil {
		return err
	}
	if err := e.models.Remove(h); err != nil {
		return err
	}
	e.forget(h)
	if e.current == h {
		e.current = NoModel
	}
	return nil
}

// UseModel makes h the current model
func (e *Engine) UseModel(h fuzzy.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.models.Get(h); err != nil {
		return err
	}
	e.current = h
	return nil
}

// Current returns the current model
func (e *Engine) Current() (*fuzzy.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.resolve(NoModel)
	if err != nil {
		return nil, err
	}
	return e.models.Get(h)
}

// Model returns the registered model with the given name
func (e *Engine) Model(name string) (*fuzzy.Model, error) {
	return e.models.ByName(name)
}

// LoadModel reads a model file and registers the model under its own name
func (e *Engine) LoadModel(path string) (fuzzy.Handle, error) {
	m, err := modelfile.Load(path)
	if err != nil {
		return NoModel, err
	}
	h, err := e.AddModel(m)
	if err != nil {
		return NoModel, fmt.Errorf("failed to register %s: %w", path, err)
	}
	e.logger.WithFields(logrus.Fields{
		"model":     m.Name(),
		"path":      path,
		"variables": len(m.Variables()),
		"rules":     m.RuleCount(),
	}).Info("Model loaded")
	return h, nil
}

// ReloadModel reads a model file and replaces the registered model of the same name.
// The new model must validate; the old one stays registered otherwise.
func (e *Engine) ReloadModel(path string) (fuzzy.Handle, error) {
	m, err := modelfile.Load(path)
	if err != nil {
		return NoModel, err
	}
	h, replaced, err := e.put(m)
	if err != nil {
		return NoModel, fmt.Errorf("refusing to reload %s: %w", path, err)
	}
	e.logger.WithFields(logrus.Fields{
		"model":    m.Name(),
		"path":     path,
		"replaced": replaced,
	}).Info("Model reloaded")
	return h, nil
}

// PutModel registers m, replacing any model with the same name
func (e *Engine) PutModel(m *fuzzy.Model) (fuzzy.Handle, error) {
	h, replaced, err := e.put(m)
	if err != nil {
		return NoModel, err
	}
	e.logger.WithFields(logrus.Fields{
		"model":    m.Name(),
		"replaced": replaced,
	}).Debug("Model stored")
	return h, nil
}

func (e *Engine) put(m *fuzzy.Model) (fuzzy.Handle, bool, error) {
	if err := m.Validate(); err != nil {
		return NoModel, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instances == 0 {
		return NoModel, false, ErrNotInitialized
	}
	old := e.models.Replace(m)
	if old != nil {
		e.forget(old.Handle())
		if e.current == old.Handle() {
			e.current = m.Handle()
		}
	}
	if e.current == NoModel {
		e.current = m.Handle()
	}
	return m.Handle(), old != nil, nil
}

// SaveModel writes the model to path in the format implied by its extension
func (e *Engine) SaveModel(h fuzzy.Handle, path string, opts modelfile.SaveOptions) error {
	e.mu.Lock()
	h, err := e.resolve(h)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	m, err := e.models.Get(h)
	if err != nil {
		return err
	}
	return modelfile.Save(path, m, opts)
}

// ModelVariables returns the variable handles of a model in definition order
func (e *Engine) ModelVariables(h fuzzy.Handle) ([]fuzzy.Handle, error) {
	e.mu.Lock()
	h, err := e.resolve(h)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	m, err := e.models.Get(h)
	if err != nil {
		return nil, err
	}
	vars := m.Variables()
	out := make([]fuzzy.Handle, len(vars))
	for i, v := range vars {
		out[i] = v.Handle()
	}
	return out, nil
}

// VariableSets returns the set handles of a variable in definition order
func (e *Engine) VariableSets(h fuzzy.Handle) ([]fuzzy.Handle, error) {
	v, _, err := e.variable(h)
	if err != nil {
		return nil, err
	}
	sets := v.Sets()
	out := make([]fuzzy.Handle, len(sets))
	for i, s := range sets {
		out[i] = s.Handle()
	}
	return out, nil
}

// Input stores a crisp value for the variable with handle h until the owning model is calculated
func (e *Engine) Input(h fuzzy.Handle, x float64) error {
	v, m, err := e.variable(h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.inputs[m.Handle()]
	if pending == nil {
		pending = make(map[string]float64)
		e.inputs[m.Handle()] = pending
	}
	pending[v.Name()] = x
	return nil
}

// Calculate evaluates a model with the inputs stored by Input. Values are bound to the
// registered model's variables. Pending inputs are kept for the next calculation.
func (e *Engine) Calculate(ctx context.Context, h fuzzy.Handle) (*execution.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.resolve(h)
	if err != nil {
		return nil, err
	}
	m, err := e.models.Get(h)
	if err != nil {
		return nil, err
	}
	ex, err := execution.New(m, e.execOptions...)
	if err != nil {
		return nil, err
	}
	res, err := ex.Evaluate(ctx, e.inputs[h])
	if err != nil {
		return nil, err
	}
	e.results[h] = res
	return res, nil
}

// Output returns the crisp value of the variable with handle h after Calculate
func (e *Engine) Output(h fuzzy.Handle) (float64, error) {
	v, m, err := e.variable(h)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.results[m.Handle()]
	if res == nil {
		return 0, fmt.Errorf("output %s: %w", v.Name(), execution.ErrNotCalculated)
	}
	if x, ok := res.Outputs[v.Name()]; ok {
		return x, nil
	}
	if x, ok := res.Inputs[v.Name()]; ok {
		return x, nil
	}
	return 0, fmt.Errorf("output %s: %w", v.Name(), execution.ErrNotCalculated)
}

// Snapshot returns a private copy of the named model. The copy is taken under the
// engine lock, so it never observes a Calculate half way through binding values.
func (e *Engine) Snapshot(name string) (*fuzzy.Model, error) {
	m, err := e.models.ByName(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return m.Clone(), nil
}

// Evaluate runs the named model on inputs. It works on a copy, so concurrent calls
// never share variable state.
func (e *Engine) Evaluate(ctx context.Context, name string, inputs map[string]float64) (*execution.Result, error) {
	m, err := e.Snapshot(name)
	if err != nil {
		return nil, err
	}
	ex, err := execution.New(m, e.execOptions...)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := ex.Evaluate(ctx, inputs)
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(logrus.Fields{
		"model":    m.Name(),
		"outputs":  res.Outputs,
		"duration": time.Since(start),
	}).Debug("Model evaluated")
	return res, nil
}

// resolve maps NoModel to the current model. Callers hold e.mu.
func (e *Engine) resolve(h fuzzy.Handle) (fuzzy.Handle, error) {
	if e.instances == 0 {
		return NoModel, ErrNotInitialized
	}
	if h != NoModel {
		return h, nil
	}
	if e.current == NoModel {
		return NoModel, ErrNoModel
	}
	return e.current, nil
}

// variable finds the variable with handle h and the model that owns it.
// Variables added after the model was registered are registered on first use.
func (e *Engine) variable(h fuzzy.Handle) (*fuzzy.Variable, *fuzzy.Model, error) {
	m, err := e.models.Owner(h)
	if err != nil {
		return nil, nil, fmt.Errorf("handle %d: %w", h, err)
	}
	v := m.VariableByHandle(h)
	if v == nil {
		return nil, nil, fmt.Errorf("handle %d is not a variable: %w", h, ErrWrongKind)
	}
	e.models.Objects().Register(v)
	return v, m, nil
}

func (e *Engine) forget(h fuzzy.Handle) {
	delete(e.inputs, h)
	delete(e.results, h)
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: executor.go
Description: Executor runs a fuzzy model against crisp inputs. Inputs are fuzzified, rules
fire with AND as min (or product), rules sharing a consequent combine with max, each output
curve is the union of its clipped sets and the curve is defuzzified. Outputs are fuzzified
again so rules further down a chain can read them.
*/

package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingInput  = errors.New("missing input")
	ErrNotCalculated = errors.New("variable not calculated")
	ErrCycle         = fuzzy.ErrCycle
)

// AndMethod selects the conjunction used inside a rule
type AndMethod string

const (
	AndMin     AndMethod = "min"
	AndProduct AndMethod = "product"
)

// ParseAndMethod maps a configuration name to an AndMethod
func ParseAndMethod(name string) (AndMethod, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "min", "minimum":
		return AndMin, nil
	case "product", "prod":
		return AndProduct, nil
	}
	return "", fmt.Errorf("unknown and method %q", name)
}

// Observer receives every finished calculation
type Observer interface {
	// res is nil when err is not
	ObserveEvaluation(ctx context.Context, model string, res *Result, err error)
}

// RuleStrength is the firing strength of one rule during a calculation
type RuleStrength struct {
	Index    int     `json:"index"`
	Rule     string  `json:"rule"`
	Strength float64 `json:"strength"`
}

// Result is the outcome of one calculation
type Result struct {
	RunID      string                        `json:"run_id"`
	Model      string                        `json:"model"`
	Inputs     map[string]float64            `json:"inputs"`
	Outputs    map[string]float64            `json:"outputs"`
	Fired      map[string]bool               `json:"fired"`
	Strengths  []RuleStrength                `json:"strengths"`
	Aggregates map[string][]fuzzy.Point      `json:"aggregates,omitempty"`
	Degrees    map[string]map[string]float64 `json:"degrees,omitempty"`
	Started    time.Time                     `json:"started"`
	Duration   time.Duration                 `json:"duration"`
}

type status int

const (
	statusUnset status = iota
	statusInput
	statusComputed
)

type varState struct {
	variable *fuzzy.Variable
	status   status
	value    float64
	degrees  map[string]float64
	limits   map[string]float64
	fired    bool
}

// Executor evaluates one model. It is not safe for concurrent use.
type Executor struct {
	model    *fuzzy.Model
	deps     map[string][]string
	rulesFor map[string][]int
	rules    []*fuzzy.Rule
	states   map[string]*varState

	andMethod  AndMethod
	method     Method
	resolution int
	curves     bool
	observers  []Observer
	logger     *logrus.Logger

	strengths []RuleStrength
}

// Option configures an Executor
type Option func(*Executor)

// WithAndMethod sets the rule conjunction
func WithAndMethod(m AndMethod) Option {
	return func(e *Executor) { e.andMethod = m }
}

// WithDefuzzifier sets the defuzzification method
func WithDefuzzifier(m Method) Option {
	return func(e *Executor) { e.method = m }
}

// WithResolution sets the number of intervals used to sample output curves
func WithResolution(n int) Option {
	return func(e *Executor) {
		if n >= 2 {
			e.resolution = n
		}
	}
}

// WithCurves keeps the aggregated output curves in each Result
func WithCurves(keep bool) Option {
	return func(e *Executor) { e.curves = keep }
}

// WithObserver adds an observer notified after every calculation
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithLogger sets the logger for debug tracing
func WithLogger(l *logrus.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// New prepares an executor for m. The model must validate.
func New(m *fuzzy.Model, opts ...Option) (*Executor, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", fuzzy.ErrInvalidModel)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("failed to prepare executor: %w", err)
	}

	e := &Executor{
		model:      m,
		deps:       m.Dependencies(),
		rulesFor:   make(map[string][]int),
		rules:      m.Rules(),
		states:     make(map[string]*varState),
		andMethod:  AndMin,
		method:     Bisector,
		resolution: fuzzy.CurvePoints,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = discardLogger()
	}

	for i, r := range e.rules {
		out := r.Consequent.Variable
		e.rulesFor[out] = append(e.rulesFor[out], i)
	}
	for _, v := range m.Variables() {
		e.states[v.Name()] = &varState{variable: v}
	}
	return e, nil
}

// Model returns the model being executed
func (e *Executor) Model() *fuzzy.Model {
	return e.model
}

// Input binds a crisp value. Binding a rule-driven variable overrides its rules.
func (e *Executor) Input(variable string, x float64) error {
	st, err := e.state(variable)
	if err != nil {
		return err
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("input %s: value %v is not finite", variable, x)
	}
	e.setValue(st, x)
	st.status = statusInput
	return nil
}

// Output returns the crisp value of a variable after Calculate
func (e *Executor) Output(variable string) (float64, error) {
	st, err := e.state(variable)
	if err != nil {
		return 0, err
	}
	if st.status == statusUnset {
		return 0, fmt.Errorf("output %s: %w", variable, ErrNotCalculated)
	}
	return st.value, nil
}

// Degrees returns the membership of the current value in each set of a variable
func (e *Executor) Degrees(variable string) (map[string]float64, error) {
	st, err := e.state(variable)
	if err != nil {
		return nil, err
	}
	if st.status == statusUnset {
		return nil, fmt.Errorf("degrees %s: %w", variable, ErrNotCalculated)
	}
	out := make(map[string]float64, len(st.degrees))
	for k, v := range st.degrees {
		out[k] = v
	}
	return out, nil
}

// Reset forgets every input and computed value
func (e *Executor) Reset() {
	for _, st := range e.states {
		st.status = statusUnset
		st.value = 0
		st.degrees = nil
		st.limits = nil
		st.fired = false
		st.variable.Reset()
	}
	e.strengths = nil
}

// Evaluate resets the executor, binds inputs and calculates
func (e *Executor) Evaluate(ctx context.Context, inputs map[string]float64) (*Result, error) {
	e.Reset()
	for _, name := range sortedNames(inputs) {
		if err := e.Input(name, inputs[name]); err != nil {
			e.notify(ctx, nil, err)
			return nil, err
		}
	}
	return e.Calculate(ctx)
}

// Calculate computes every rule-driven variable that has not been bound as an input
func (e *Executor) Calculate(ctx context.Context) (*Result, error) {
	res, err := e.calculate(ctx)
	e.notify(ctx, res, err)
	return res, err
}

func (e *Executor) calculate(ctx context.Context) (*Result, error) {
	started := time.Now()

	var missing []string
	for _, v := range e.model.Variables() {
		st := e.states[v.Name()]
		if _, driven := e.deps[v.Name()]; !driven && st.status != statusInput {
			missing = append(missing, v.Name())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
	}

	for _, st := range e.states {
		if st.status != statusInput {
			st.status = statusUnset
			st.limits = nil
			st.fired = false
		}
	}
	e.strengths = e.strengths[:0]

	for _, v := range e.model.Outputs() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("calculation cancelled: %w", err)
		}
		e.compute(v.Name())
	}

	res := &Result{
		RunID:     uuid.New().String(),
		Model:     e.model.Name(),
		Inputs:    make(map[string]float64),
		Outputs:   make(map[string]float64),
		Fired:     make(map[string]bool),
		Strengths: append([]RuleStrength(nil), e.strengths...),
		Started:   started,
	}
	sort.Slice(res.Strengths, func(i, j int) bool { return res.Strengths[i].Index < res.Strengths[j].Index })
	if e.curves {
		res.Aggregates = make(map[string][]fuzzy.Point)
		res.Degrees = make(map[string]map[string]float64)
	}
	for _, v := range e.model.Variables() {
		st := e.states[v.Name()]
		switch st.status {
		case statusInput:
			res.Inputs[v.Name()] = st.value
		case statusComputed:
			res.Outputs[v.Name()] = st.value
			res.Fired[v.Name()] = st.fired
			if e.curves {
				res.Aggregates[v.Name()] = e.aggregate(st)
			}
		}
		if e.curves {
			res.Degrees[v.Name()] = st.degrees
		}
	}
	res.Duration = time.Since(started)

	e.logger.WithFields(logrus.Fields{
		"model":    res.Model,
		"run_id":   res.RunID,
		"outputs":  res.Outputs,
		"duration": res.Duration,
	}).Debug("Model calculated")
	return res, nil
}

func (e *Executor) compute(name string) {
	st := e.states[name]
	if st.status != statusUnset {
		return
	}
	for _, dep := range e.deps[name] {
		e.compute(dep)
	}

	st.limits = make(map[string]float64, st.variable.Len())
	for _, idx := range e.rulesFor[name] {
		r := e.rules[idx]
		strength := r.Weight * e.fire(r)
		e.strengths = append(e.strengths, RuleStrength{Index: idx, Rule: r.String(), Strength: strength})
		if strength > st.limits[r.Consequent.Set] {
			st.limits[r.Consequent.Set] = strength
		}
		if strength > 0 {
			st.fired = true
			e.logger.WithFields(logrus.Fields{
				"model":    e.model.Name(),
				"rule":     r.String(),
				"strength": strength,
			}).Debug("Rule fired")
		}
	}

	lo, hi := st.variable.Min(), st.variable.Max()
	value := (lo + hi) / 2
	if st.fired {
		xs, ys := e.sample(st)
		if v, ok := e.method.Defuzzify(xs, ys); ok {
			value = v
		} else {
			st.fired = false
		}
	}
	e.setValue(st, value)
	st.status = statusComputed
}

// fire returns the AND of the rule's antecedents after hedges
func (e *Executor) fire(r *fuzzy.Rule) float64 {
	result := 1.0
	for i, c := range r.Antecedents {
		mu := c.Apply(e.states[c.Variable].degrees[c.Set])
		switch {
		case i == 0:
			result = mu
		case e.andMethod == AndProduct:
			result *= mu
		default:
			result = math.Min(result, mu)
		}
	}
	return result
}

// sample evaluates the aggregated curve: max over sets of min(membership, limit)
func (e *Executor) sample(st *varState) ([]float64, []float64) {
	lo, hi := st.variable.Min(), st.variable.Max()
	n := e.resolution
	xs := make([]float64, n+1)
	ys := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	sets := st.variable.Sets()
	for i := range xs {
		x := lo + float64(i)*step
		xs[i] = x
		var y float64
		for _, s := range sets {
			limit := st.limits[s.Name()]
			if limit <= 0 {
				continue
			}
			y = math.Max(y, math.Min(s.Membership(x), limit))
		}
		ys[i] = y
	}
	return xs, ys
}

func (e *Executor) aggregate(st *varState) []fuzzy.Point {
	if st.limits == nil {
		return nil
	}
	xs, ys := e.sample(st)
	pts := make([]fuzzy.Point, len(xs))
	for i := range xs {
		pts[i] = fuzzy.Point{X: xs[i], Mu: ys[i]}
	}
	return pts
}

func (e *Executor) setValue(st *varState, x float64) {
	st.value = x
	st.degrees = st.variable.Fuzzify(x)
	st.variable.SetValue(x)
}

func (e *Executor) state(variable string) (*varState, error) {
	v := e.model.Variable(variable)
	if v == nil {
		return nil, fmt.Errorf("variable %s: %w", variable, fuzzy.ErrNotFound)
	}
	return e.states[v.Name()], nil
}

func (e *Executor) notify(ctx context.Context, res *Result, err error) {
	for _, o := range e.observers {
		o.ObserveEvaluation(ctx, e.model.Name(), res, err)
	}
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

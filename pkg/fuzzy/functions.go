/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: functions.go
Description: Membership function registry. Holds the built-in shapes (bell, S-curves,
triangles, trapezoid, interpolation) and lets callers register their own under a name.
*/

package fuzzy

import (
	"math"
	"sort"
	"sync"
)

// Names of the built-in membership functions as they appear in model files
const (
	FuncGaussianBell     = "Gaussian Bell"
	FuncSCurve           = "S-Curve"
	FuncInvertedSCurve   = "Inverted S-Curve"
	FuncTriangle         = "Triangle"
	FuncInvertedTriangle = "Inverted Triangle"
	FuncTrapezoid        = "Trapezoid"
	FuncInterpolate      = "Interpolate"
)

// EvalFunc computes membership of x. p holds [min, max, extra...].
type EvalFunc func(x float64, p []float64) (float64, error)

// Function is a named membership shape
type Function struct {
	Name        string
	Description string
	ParamCount  int // optional extra params understood after min and max
	Eval        EvalFunc
}

// Functions is a registry of membership functions. Safe for concurrent use.
type Functions struct {
	mu      sync.RWMutex
	funcs   []*Function
	byName  map[string]*Function
	aliases map[string][]string
}

// NewFunctions creates an empty registry
func NewFunctions() *Functions {
	return &Functions{
		byName:  make(map[string]*Function),
		aliases: make(map[string][]string),
	}
}

var (
	defaultFunctions     *Functions
	defaultFunctionsOnce sync.Once
)

// DefaultFunctions returns the shared registry holding the built-in shapes
func DefaultFunctions() *Functions {
	defaultFunctionsOnce.Do(func() {
		defaultFunctions = NewFunctions()
		registerBuiltins(defaultFunctions)
	})
	return defaultFunctions
}

// Register adds fn under its name and any aliases
func (f *Functions) Register(fn *Function, aliases ...string) error {
	if fn == nil || fn.Eval == nil {
		return newError("register function", "", reason(ErrInvalidParams, "function has no evaluator"))
	}
	names := append([]string{fn.Name}, aliases...)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		key := normalizeName(n)
		if key == "" {
			return newError("register function", fn.Name, reason(ErrInvalidParams, "empty name"))
		}
		if _, exists := f.byName[key]; exists {
			return newError("register function", n, ErrDuplicate)
		}
	}
	for _, n := range names {
		f.byName[normalizeName(n)] = fn
	}
	f.funcs = append(f.funcs, fn)
	f.aliases[fn.Name] = aliases
	return nil
}

// Lookup finds a function by name or alias, ignoring case
func (f *Functions) Lookup(name string) (*Function, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.byName[normalizeName(name)]
	if !ok {
		return nil, newError("lookup function", name, ErrUnknownFunction)
	}
	return fn, nil
}

// At returns the i-th registered function
func (f *Functions) At(i int) (*Function, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i < 0 || i >= len(f.funcs) {
		return nil, newError("function at", "", reason(ErrNotFound, "index %d", i))
	}
	return f.funcs[i], nil
}

// Len returns the number of registered functions, aliases excluded
func (f *Functions) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.funcs)
}

// Names returns the canonical names in registration order
func (f *Functions) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.funcs))
	for i, fn := range f.funcs {
		out[i] = fn.Name
	}
	return out
}

// Aliases returns the alternative names registered for a canonical name
func (f *Functions) Aliases(name string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.aliases[name]...)
}

func registerBuiltins(f *Functions) {
	builtins := []struct {
		fn      *Function
		aliases []string
	}{
		{&Function{Name: FuncGaussianBell, Description: "bell curve centred on the range", Eval: gaussBell}, []string{"gauss", "bell"}},
		{&Function{Name: FuncSCurve, Description: "rises from 0 at min to 1 at max", Eval: sCurve}, []string{"scurve"}},
		{&Function{Name: FuncInvertedSCurve, Description: "falls from 1 at min to 0 at max", Eval: invertedSCurve}, []string{"zcurve"}},
		{&Function{Name: FuncTriangle, Description: "peak at param 0, midpoint by default", ParamCount: 1, Eval: triangle}, []string{"tri"}},
		{&Function{Name: FuncInvertedTriangle, Description: "one minus a triangle", ParamCount: 1, Eval: invertedTriangle}, nil},
		{&Function{Name: FuncTrapezoid, Description: "plateau between params 0 and 1", ParamCount: 2, Eval: trapezoid}, []string{"trap"}},
		{&Function{Name: FuncInterpolate, Description: "piecewise linear through x,y param pairs", ParamCount: -1, Eval: interpolate}, []string{"linear"}},
	}
	for _, b := range builtins {
		if err := f.Register(b.fn, b.aliases...); err != nil {
			panic(err)
		}
	}
}

func checkRange(p []float64) (float64, float64, error) {
	if len(p) < 2 {
		return 0, 0, reason(ErrInvalidParams, "need min and max, got %d params", len(p))
	}
	lo, hi := p[0], p[1]
	if !(hi > lo) {
		return 0, 0, reason(ErrInvalidParams, "max %g must be greater than min %g", hi, lo)
	}
	return lo, hi, nil
}

func gaussBell(x float64, p []float64) (float64, error) {
	lo, hi, err := checkRange(p)
	if err != nil {
		return 0, err
	}
	center := (lo + hi) / 2
	// width uses the bound magnitudes, not the range length
	width := (math.Abs(lo) + math.Abs(hi)) / 2
	atten := -math.Log(0.001) / (width * width)
	d := x - center
	return math.Exp(-atten * d * d), nil
}

func sCurve(x float64, p []float64) (float64, error) {
	lo, hi, err := checkRange(p)
	if err != nil {
		return 0, err
	}
	switch {
	case x <= lo:
		return 0, nil
	case x >= hi:
		return 1, nil
	}
	w := hi - lo
	a := 2 / (w * w)
	if x > (lo+hi)/2 {
		d := x - hi
		return 1 - a*d*d, nil
	}
	d := x - lo
	return a * d * d, nil
}

func invertedSCurve(x float64, p []float64) (float64, error) {
	v, err := sCurve(x, p)
	return 1 - v, err
}

func triangle(x float64, p []float64) (float64, error) {
	lo, hi, err := checkRange(p)
	if err != nil {
		return 0, err
	}
	peak := (lo + hi) / 2
	if len(p) > 2 {
		peak = p[2]
	}
	if peak < lo || peak > hi {
		return 0, reason(ErrInvalidParams, "triangle peak %g outside [%g, %g]", peak, lo, hi)
	}
	switch {
	case x < lo || x > hi:
		return 0, nil
	case x == peak:
		return 1, nil
	case x < peak:
		return (x - lo) / (peak - lo), nil
	default:
		return (hi - x) / (hi - peak), nil
	}
}

func invertedTriangle(x float64, p []float64) (float64, error) {
	v, err := triangle(x, p)
	return 1 - v, err
}

func trapezoid(x float64, p []float64) (float64, error) {
	lo, hi, err := checkRange(p)
	if err != nil {
		return 0, err
	}
	b := lo + (hi-lo)/3
	c := lo + 2*(hi-lo)/3
	if len(p) > 2 {
		b = p[2]
	}
	if len(p) > 3 {
		c = p[3]
	}
	if b < lo || c < b || c > hi {
		return 0, reason(ErrInvalidParams, "trapezoid shoulders %g, %g must satisfy %g <= b <= c <= %g", b, c, lo, hi)
	}
	switch {
	case x < lo || x > hi:
		return 0, nil
	case x < b:
		return (x - lo) / (b - lo), nil
	case x <= c:
		return 1, nil
	default:
		return (hi - x) / (hi - c), nil
	}
}

func interpolate(x float64, p []float64) (float64, error) {
	if _, _, err := checkRange(p); err != nil {
		return 0, err
	}
	pts := p[2:]
	if len(pts) < 2 || len(pts)%2 != 0 {
		return 0, reason(ErrInvalidParams, "interpolate needs x,y pairs, got %d values", len(pts))
	}
	n := len(pts) / 2
	xs := func(i int) float64 { return pts[2*i] }
	ys := func(i int) float64 { return pts[2*i+1] }
	for i := 1; i < n; i++ {
		if xs(i) < xs(i-1) {
			return 0, reason(ErrInvalidParams, "interpolate x values must be ascending")
		}
	}
	if x <= xs(0) {
		return ys(0), nil
	}
	if x >= xs(n-1) {
		return ys(n - 1), nil
	}
	// first point with xs(i) >= x
	i := sort.Search(n, func(i int) bool { return xs(i) >= x })
	x0, x1 := xs(i-1), xs(i)
	y0, y1 := ys(i-1), ys(i)
	if x1 == x0 {
		return y1, nil
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0), nil
}

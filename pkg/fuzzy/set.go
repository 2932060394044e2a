/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: set.go
Description: Set is one linguistic term of a variable (for example "cold" of
"temperature"): a label, a membership function and the params it is evaluated with.
*/

package fuzzy

import (
	"math"
)

// CurvePoints is the number of intervals used when sampling a membership curve
const CurvePoints = 1000

// Default domain of a set created without explicit limits
const (
	DefaultMin = 0.0
	DefaultMax = 10.0
)

// Point is one sample of a membership curve
type Point struct {
	X  float64 `json:"x"`
	Mu float64 `json:"mu"`
}

// Set is a fuzzy set: a label and its membership function over [Min, Max]
type Set struct {
	handle   Handle
	name     string
	function *Function
	min      float64
	max      float64
	extra    []float64
}

// NewSet creates a set using a function from the default registry
func NewSet(name, function string, min, max float64, extra ...float64) (*Set, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, newError("new set", name, reason(ErrInvalidParams, "empty name"))
	}
	s := &Set{
		handle: nextHandle(),
		name:   key,
		min:    min,
		max:    max,
		extra:  append([]float64(nil), extra...),
	}
	if err := s.SetFunction(function); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSet is NewSet that panics on error, for fixed model definitions
func MustSet(name, function string, min, max float64, extra ...float64) *Set {
	s, err := NewSet(name, function, min, max, extra...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set) Handle() Handle { return s.handle }
func (s *Set) Name() string   { return s.name }
func (s *Set) Kind() Kind     { return KindSet }

// Min returns the lower limit of the domain
func (s *Set) Min() float64 { return s.min }

// Max returns the upper limit of the domain
func (s *Set) Max() float64 { return s.max }

// Function returns the canonical name of the membership function
func (s *Set) Function() string {
	if s.function == nil {
		return ""
	}
	return s.function.Name
}

// SetFunction switches the membership function by name or alias
func (s *Set) SetFunction(name string) error {
	fn, err := DefaultFunctions().Lookup(name)
	if err != nil {
		return newError("set function", s.name, err)
	}
	s.function = fn
	return nil
}

// SetRange changes the domain limits
func (s *Set) SetRange(min, max float64) error {
	if !(max > min) {
		return newError("set range", s.name, reason(ErrInvalidParams, "max %g must be greater than min %g", max, min))
	}
	s.min, s.max = min, max
	return nil
}

// Param returns the i-th extra param, or 0 when out of range
func (s *Set) Param(i int) float64 {
	if i < 0 || i >= len(s.extra) {
		return 0
	}
	return s.extra[i]
}

// SetParam sets the i-th extra param, growing the list when i is one past the end
func (s *Set) SetParam(i int, v float64) error {
	switch {
	case i >= 0 && i < len(s.extra):
		s.extra[i] = v
	case i == len(s.extra):
		s.extra = append(s.extra, v)
	default:
		return newError("set param", s.name, reason(ErrInvalidParams, "index %d out of range", i))
	}
	return nil
}

// ParamLen returns the number of extra params
func (s *Set) ParamLen() int { return len(s.extra) }

// Params returns a copy of the extra params
func (s *Set) Params() []float64 { return append([]float64(nil), s.extra...) }

func (s *Set) evalParams() []float64 {
	p := make([]float64, 0, len(s.extra)+2)
	p = append(p, s.min, s.max)
	return append(p, s.extra...)
}

// Validate checks that the function accepts the current params
func (s *Set) Validate() error {
	if s.function == nil {
		return newError("validate set", s.name, ErrUnknownFunction)
	}
	if _, err := s.function.Eval(s.min, s.evalParams()); err != nil {
		return newError("validate set", s.name, err)
	}
	return nil
}

// Membership returns the degree of x in [0, 1]. x outside the domain is clamped to it.
func (s *Set) Membership(x float64) float64 {
	if s.function == nil || math.IsNaN(x) {
		return 0
	}
	x = clamp(x, s.min, s.max)
	mu, err := s.function.Eval(x, s.evalParams())
	if err != nil || math.IsNaN(mu) {
		return 0
	}
	return clamp(mu, 0, 1)
}

// Peak returns the first x of maximal membership over the sampled domain
func (s *Set) Peak() float64 {
	best, bestMu := s.min, -1.0
	step := (s.max - s.min) / CurvePoints
	for i := 0; i <= CurvePoints; i++ {
		x := s.min + float64(i)*step
		if mu := s.Membership(x); mu > bestMu {
			best, bestMu = x, mu
		}
	}
	return best
}

// Curve samples the membership function at n+1 evenly spaced points
func (s *Set) Curve(n int) []Point {
	if n <= 0 {
		n = CurvePoints
	}
	pts := make([]Point, n+1)
	step := (s.max - s.min) / float64(n)
	for i := range pts {
		x := s.min + float64(i)*step
		pts[i] = Point{X: x, Mu: s.Membership(x)}
	}
	return pts
}

// clone copies the set under a fresh handle
func (s *Set) clone() *Set {
	c := *s
	c.handle = nextHandle()
	c.extra = append([]float64(nil), s.extra...)
	return &c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

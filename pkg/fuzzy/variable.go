/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: variable.go
Description: Variable is a named input or output of a model. It owns an ordered list of
fuzzy sets and the crisp value currently bound to it.
*/

package fuzzy

import "math"

// Variable groups the linguistic terms of one quantity
type Variable struct {
	handle      Handle
	name        string
	Description string

	sets  []*Set
	value float64
	bound bool
}

// NewVariable creates an empty variable
func NewVariable(name string) (*Variable, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, newError("new variable", name, reason(ErrInvalidParams, "empty name"))
	}
	return &Variable{handle: nextHandle(), name: key}, nil
}

func (v *Variable) Handle() Handle { return v.handle }
func (v *Variable) Name() string   { return v.name }
func (v *Variable) Kind() Kind     { return KindVariable }

// AddSet appends s unless a set with the same name exists, in which case the existing
// set is returned unchanged
func (v *Variable) AddSet(s *Set) *Set {
	if existing := v.Set(s.Name()); existing != nil {
		return existing
	}
	v.sets = append(v.sets, s)
	return s
}

// Set returns the named set or nil
func (v *Variable) Set(name string) *Set {
	key := normalizeName(name)
	for _, s := range v.sets {
		if s.name == key {
			return s
		}
	}
	return nil
}

// SetAt returns the i-th set or nil
func (v *Variable) SetAt(i int) *Set {
	if i < 0 || i >= len(v.sets) {
		return nil
	}
	return v.sets[i]
}

// SetByHandle returns the set with handle h or nil
func (v *Variable) SetByHandle(h Handle) *Set {
	for _, s := range v.sets {
		if s.handle == h {
			return s
		}
	}
	return nil
}

// RemoveSet deletes the named set and reports whether it existed
func (v *Variable) RemoveSet(name string) bool {
	key := normalizeName(name)
	for i, s := range v.sets {
		if s.name == key {
			v.sets = append(v.sets[:i], v.sets[i+1:]...)
			return true
		}
	}
	return false
}

// Sets returns the sets in definition order
func (v *Variable) Sets() []*Set {
	return append([]*Set(nil), v.sets...)
}

// Len returns the number of sets
func (v *Variable) Len() int { return len(v.sets) }

// Min is the lowest limit over all sets
func (v *Variable) Min() float64 {
	if len(v.sets) == 0 {
		return DefaultMin
	}
	m := math.Inf(1)
	for _, s := range v.sets {
		m = math.Min(m, s.min)
	}
	return m
}

// Max is the highest limit over all sets
func (v *Variable) Max() float64 {
	if len(v.sets) == 0 {
		return DefaultMax
	}
	m := math.Inf(-1)
	for _, s := range v.sets {
		m = math.Max(m, s.max)
	}
	return m
}

// SetValue binds a crisp value
func (v *Variable) SetValue(x float64) {
	v.value = x
	v.bound = true
}

// Value returns the bound crisp value and whether one is bound
func (v *Variable) Value() (float64, bool) {
	return v.value, v.bound
}

// Reset clears the bound value
func (v *Variable) Reset() {
	v.value = 0
	v.bound = false
}

// Fuzzify returns the membership of x in every set, keyed by set name
func (v *Variable) Fuzzify(x float64) map[string]float64 {
	out := make(map[string]float64, len(v.sets))
	for _, s := range v.sets {
		out[s.name] = s.Membership(x)
	}
	return out
}

// Best returns the set with the highest membership at x
func (v *Variable) Best(x float64) (*Set, float64) {
	var best *Set
	bestMu := -1.0
	for _, s := range v.sets {
		if mu := s.Membership(x); mu > bestMu {
			best, bestMu = s, mu
		}
	}
	return best, math.Max(bestMu, 0)
}

func (v *Variable) clone() *Variable {
	c := &Variable{
		handle:      nextHandle(),
		name:        v.name,
		Description: v.Description,
		value:       v.value,
		bound:       v.bound,
	}
	for _, s := range v.sets {
		c.sets = append(c.sets, s.clone())
	}
	return c
}

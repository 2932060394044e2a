/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: model.go
Description: Model composes variables and a rule base into one inference unit. Rules are
checked against the variables they reference when they are added and again by Validate.
*/

package fuzzy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Model owns its variables and rules
type Model struct {
	handle      Handle
	ID          string
	name        string
	Description string

	variables []*Variable
	rules     Rules
}

// NewModel creates an empty model
func NewModel(name string) (*Model, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, newError("new model", name, reason(ErrInvalidModel, "empty name"))
	}
	return &Model{
		handle: nextHandle(),
		ID:     uuid.New().String(),
		name:   key,
	}, nil
}

func (m *Model) Handle() Handle { return m.handle }
func (m *Model) Name() string   { return m.name }
func (m *Model) Kind() Kind     { return KindModel }

// Rename changes the model name
func (m *Model) Rename(name string) error {
	key := normalizeName(name)
	if key == "" {
		return newError("rename model", name, reason(ErrInvalidModel, "empty name"))
	}
	m.name = key
	return nil
}

// AddVariable adds v; names must be unique within the model
func (m *Model) AddVariable(v *Variable) error {
	if m.Variable(v.Name()) != nil {
		return newError("add variable", v.Name(), ErrDuplicate)
	}
	m.variables = append(m.variables, v)
	return nil
}

// Variable returns the named variable or nil
func (m *Model) Variable(name string) *Variable {
	key := normalizeName(name)
	for _, v := range m.variables {
		if v.name == key {
			return v
		}
	}
	return nil
}

// VariableAt returns the i-th variable or nil
func (m *Model) VariableAt(i int) *Variable {
	if i < 0 || i >= len(m.variables) {
		return nil
	}
	return m.variables[i]
}

// VariableByHandle returns the variable with handle h or nil
func (m *Model) VariableByHandle(h Handle) *Variable {
	for _, v := range m.variables {
		if v.handle == h {
			return v
		}
	}
	return nil
}

// Variables returns the variables in definition order
func (m *Model) Variables() []*Variable {
	return append([]*Variable(nil), m.variables...)
}

// RemoveVariable deletes the named variable and every rule that mentions it.
// It returns the number of rules dropped, or -1 when the variable does not exist.
func (m *Model) RemoveVariable(name string) int {
	key := normalizeName(name)
	idx := -1
	for i, v := range m.variables {
		if v.name == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1
	}
	m.variables = append(m.variables[:idx], m.variables[idx+1:]...)
	return m.rules.retain(func(r *Rule) bool {
		if r.Consequent.Variable == key {
			return false
		}
		for _, c := range r.Antecedents {
			if c.Variable == key {
				return false
			}
		}
		return true
	})
}

// AddRule parses text and adds the rule after checking its references
func (m *Model) AddRule(text string) (*Rule, error) {
	r, err := ParseRule(text)
	if err != nil {
		return nil, err
	}
	if err := m.AppendRule(r); err != nil {
		return nil, err
	}
	return r, nil
}

// AppendRule adds an already parsed rule after checking its references
func (m *Model) AppendRule(r *Rule) error {
	if err := m.checkRule(r); err != nil {
		return err
	}
	return m.rules.Add(r)
}

// DeleteRule removes the i-th rule
func (m *Model) DeleteRule(i int) error {
	return m.rules.Delete(i)
}

// Rules returns the rules in order
func (m *Model) Rules() []*Rule {
	return m.rules.All()
}

// RuleCount returns the number of rules
func (m *Model) RuleCount() int {
	return m.rules.Len()
}

// ClearRules drops every rule
func (m *Model) ClearRules() {
	m.rules.Clear()
}

func (m *Model) checkRule(r *Rule) error {
	clauses := append(append([]Clause(nil), r.Antecedents...), r.Consequent)
	for _, c := range clauses {
		v := m.Variable(c.Variable)
		if v == nil {
			return newError("check rule", r.String(), reason(ErrInvalidRule, "unknown variable %q", c.Variable))
		}
		if v.Set(c.Set) == nil {
			return newError("check rule", r.String(), reason(ErrInvalidRule, "unknown set %q of variable %q", c.Set, c.Variable))
		}
	}
	for _, c := range r.Antecedents {
		if c.Variable == r.Consequent.Variable {
			return newError("check rule", r.String(), reason(ErrInvalidRule, "variable %q depends on itself", c.Variable))
		}
	}
	return nil
}

// Dependencies maps every consequent variable to the variables its rules read
func (m *Model) Dependencies() map[string][]string {
	deps := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, r := range m.rules.rules {
		out := r.Consequent.Variable
		if seen[out] == nil {
			seen[out] = make(map[string]bool)
			deps[out] = nil
		}
		for _, in := range r.Variables() {
			if !seen[out][in] {
				seen[out][in] = true
				deps[out] = append(deps[out], in)
			}
		}
	}
	return deps
}

// Outputs returns the variables written by at least one rule, in definition order
func (m *Model) Outputs() []*Variable {
	deps := m.Dependencies()
	var out []*Variable
	for _, v := range m.variables {
		if _, ok := deps[v.name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Inputs returns the variables no rule writes to, in definition order
func (m *Model) Inputs() []*Variable {
	deps := m.Dependencies()
	var in []*Variable
	for _, v := range m.variables {
		if _, ok := deps[v.name]; !ok {
			in = append(in, v)
		}
	}
	return in
}

// Validate checks sets, rule references and the absence of dependency cycles
func (m *Model) Validate() error {
	if len(m.variables) == 0 {
		return newError("validate model", m.name, reason(ErrInvalidModel, "no variables"))
	}
	for _, v := range m.variables {
		if v.Len() == 0 {
			return newError("validate model", m.name, reason(ErrInvalidModel, "variable %q has no sets", v.name))
		}
		for _, s := range v.sets {
			if err := s.Validate(); err != nil {
				return newError("validate model", m.name, fmt.Errorf("%w: variable %s: %v", ErrInvalidModel, v.name, err))
			}
		}
	}
	for _, r := range m.rules.rules {
		if err := m.checkRule(r); err != nil {
			return newError("validate model", m.name, err)
		}
	}
	if cycle := findCycle(m.Dependencies()); cycle != nil {
		return newError("validate model", m.name, fmt.Errorf("%w: %w %s", ErrInvalidModel, ErrCycle, strings.Join(cycle, " -> ")))
	}
	return nil
}

// findCycle returns one dependency cycle, or nil when the graph is acyclic
func findCycle(deps map[string][]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(n string) bool {
		switch state[n] {
		case visiting:
			for i, s := range stack {
				if s == n {
					cycle = append(append([]string(nil), stack[i:]...), n)
					break
				}
			}
			return true
		case done:
			return false
		}
		state[n] = visiting
		stack = append(stack, n)
		for _, d := range deps[n] {
			if visit(d) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return false
	}

	// deterministic start order
	for _, n := range sortedKeys(deps) {
		if visit(n) {
			return cycle
		}
	}
	return nil
}

// ResetValues clears every bound crisp value
func (m *Model) ResetValues() {
	for _, v := range m.variables {
		v.Reset()
	}
}

// Clear drops every variable and rule
func (m *Model) Clear() {
	m.variables = nil
	m.rules.Clear()
}

// Objects lists the model, its variables and their sets for handle registration
func (m *Model) Objects() []Object {
	objs := []Object{m}
	for _, v := range m.variables {
		objs = append(objs, v)
		for _, s := range v.sets {
			objs = append(objs, s)
		}
	}
	return objs
}

// Clone deep-copies the model. Handles are fresh, the ID is kept.
func (m *Model) Clone() *Model {
	c := &Model{
		handle:      nextHandle(),
		ID:          m.ID,
		name:        m.name,
		Description: m.Description,
	}
	for _, v := range m.variables {
		c.variables = append(c.variables, v.clone())
	}
	for _, r := range m.rules.rules {
		cr := *r
		cr.Antecedents = append([]Clause(nil), r.Antecedents...)
		c.rules.rules = append(c.rules.rules, &cr)
	}
	return c
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: rules.go
Description: Rule base. Parses rules of the form
"if temperature.very.hot and humidity.high then fan.fast [with 0.8]"
(or "temperature is very hot") into clauses with hedges applied to the antecedents.
*/

package fuzzy

import (
	"math"
	"strconv"
	"strings"
)

// Modifier is a linguistic hedge applied to a membership degree
type Modifier string

const (
	ModVery      Modifier = "very"
	ModExtremely Modifier = "extremely"
	ModSomewhat  Modifier = "somewhat"
	ModNot       Modifier = "not"
)

var modifierWords = map[string]Modifier{
	"very":        ModVery,
	"muy":         ModVery,
	"extremely":   ModExtremely,
	"somewhat":    ModSomewhat,
	"slightly":    ModSomewhat,
	"little":      ModSomewhat,
	"few":         ModSomewhat,
	"ligeramente": ModSomewhat,
	"algo":        ModSomewhat,
	"not":         ModNot,
	"no":          ModNot,
}

// ParseModifier maps a hedge word (including its synonyms) to a Modifier
func ParseModifier(word string) (Modifier, bool) {
	m, ok := modifierWords[normalizeName(word)]
	return m, ok
}

// Apply transforms mu
func (m Modifier) Apply(mu float64) float64 {
	switch m {
	case ModVery:
		return mu * mu
	case ModExtremely:
		return mu * mu * mu
	case ModSomewhat:
		return math.Sqrt(mu)
	case ModNot:
		return 1 - mu
	}
	return mu
}

// Clause is one "variable.set" reference, optionally hedged
type Clause struct {
	Variable  string     `json:"variable" yaml:"variable"`
	Set       string     `json:"set" yaml:"set"`
	Modifiers []Modifier `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
}

// Apply runs the modifiers left to right over mu
func (c Clause) Apply(mu float64) float64 {
	for _, m := range c.Modifiers {
		mu = m.Apply(mu)
	}
	return mu
}

func (c Clause) String() string {
	parts := make([]string, 0, len(c.Modifiers)+2)
	parts = append(parts, c.Variable)
	for _, m := range c.Modifiers {
		parts = append(parts, string(m))
	}
	parts = append(parts, c.Set)
	return strings.Join(parts, ".")
}

// Rule is a single if/then statement
type Rule struct {
	Antecedents []Clause
	Consequent  Clause
	Weight      float64
}

// String returns the canonical text of the rule
func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString("if ")
	for i, c := range r.Antecedents {
		if i > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(c.String())
	}
	b.WriteString(" then ")
	b.WriteString(r.Consequent.String())
	if r.Weight != 1 {
		b.WriteString(" with ")
		b.WriteString(strconv.FormatFloat(r.Weight, 'g', -1, 64))
	}
	return b.String()
}

// Variables returns the distinct antecedent variable names in order of appearance
func (r *Rule) Variables() []string {
	seen := make(map[string]bool, len(r.Antecedents))
	var out []string
	for _, c := range r.Antecedents {
		if !seen[c.Variable] {
			seen[c.Variable] = true
			out = append(out, c.Variable)
		}
	}
	return out
}

// ParseRule parses rule text. Names are lowercased; variables and sets are not resolved.
func ParseRule(text string) (*Rule, error) {
	tokens := strings.Fields(strings.ToLower(text))
	fail := func(format string, args ...interface{}) (*Rule, error) {
		return nil, newError("parse rule", strings.TrimSpace(text), reason(ErrInvalidRule, format, args...))
	}

	if len(tokens) == 0 || tokens[0] != "if" {
		return fail("missing 'if'")
	}
	then := -1
	for i, tok := range tokens {
		if tok == "then" {
			then = i
			break
		}
	}
	if then < 0 {
		return fail("missing 'then'")
	}

	rule := &Rule{Weight: 1}
	body := tokens[1:then]
	if len(body) == 0 {
		return fail("empty antecedent")
	}
	for _, part := range splitOn(body, "and") {
		c, err := parseClause(part)
		if err != nil {
			return fail("%v", err)
		}
		rule.Antecedents = append(rule.Antecedents, c)
	}

	tail := tokens[then+1:]
	for i, tok := range tail {
		if tok != "with" {
			continue
		}
		if i != len(tail)-2 {
			return fail("'with' must be followed by a single weight")
		}
		w, err := strconv.ParseFloat(tail[i+1], 64)
		if err != nil || math.IsNaN(w) || w <= 0 || w > 1 {
			return fail("weight %q must be a number in (0, 1]", tail[i+1])
		}
		rule.Weight = w
		tail = tail[:i]
		break
	}
	c, err := parseClause(tail)
	if err != nil {
		return fail("consequent: %v", err)
	}
	if len(c.Modifiers) > 0 {
		return fail("consequent %q cannot carry modifiers", c.String())
	}
	rule.Consequent = c
	return rule, nil
}

// MustRule is ParseRule that panics on error
func MustRule(text string) *Rule {
	r, err := ParseRule(text)
	if err != nil {
		panic(err)
	}
	return r
}

func splitOn(tokens []string, sep string) [][]string {
	var out [][]string
	start := 0
	for i, tok := range tokens {
		if tok == sep {
			out = append(out, tokens[start:i])
			start = i + 1
		}
	}
	return append(out, tokens[start:])
}

// parseClause accepts "var.[mod.]*set" or "var is [mod]* set"
func parseClause(tokens []string) (Clause, error) {
	var c Clause
	var words []string

	switch {
	case len(tokens) == 1:
		words = strings.Split(tokens[0], ".")
		if len(words) < 2 {
			return c, reason(ErrInvalidRule, "missing '.' in %q", tokens[0])
		}
	case len(tokens) >= 3 && tokens[1] == "is":
		words = append([]string{tokens[0]}, tokens[2:]...)
	case len(tokens) == 0:
		return c, reason(ErrInvalidRule, "empty clause")
	default:
		return c, reason(ErrInvalidRule, "cannot read clause %q", strings.Join(tokens, " "))
	}

	for _, w := range words {
		if w == "" {
			return c, reason(ErrInvalidRule, "empty name in %q", strings.Join(tokens, " "))
		}
	}
	c.Variable = words[0]
	c.Set = words[len(words)-1]
	for _, w := range words[1 : len(words)-1] {
		m, ok := ParseModifier(w)
		if !ok {
			return c, reason(ErrInvalidRule, "unknown modifier %q", w)
		}
		c.Modifiers = append(c.Modifiers, m)
	}
	return c, nil
}

// Rules is an ordered rule base
type Rules struct {
	rules []*Rule
}

// Add appends r unless a rule with the same canonical text exists
func (rs *Rules) Add(r *Rule) error {
	if rs.Index(r.String()) >= 0 {
		return newError("add rule", r.String(), ErrDuplicate)
	}
	rs.rules = append(rs.rules, r)
	return nil
}

// AddText parses and appends a rule
func (rs *Rules) AddText(text string) (*Rule, error) {
	r, err := ParseRule(text)
	if err != nil {
		return nil, err
	}
	if err := rs.Add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Index returns the position of the rule with the given text, or -1
func (rs *Rules) Index(text string) int {
	r, err := ParseRule(text)
	if err != nil {
		return -1
	}
	key := r.String()
	for i, existing := range rs.rules {
		if existing.String() == key {
			return i
		}
	}
	return -1
}

// Delete removes the i-th rule
func (rs *Rules) Delete(i int) error {
	if i < 0 || i >= len(rs.rules) {
		return newError("delete rule", strconv.Itoa(i), ErrNotFound)
	}
	rs.rules = append(rs.rules[:i], rs.rules[i+1:]...)
	return nil
}

// At returns the i-th rule or nil
func (rs *Rules) At(i int) *Rule {
	if i < 0 || i >= len(rs.rules) {
		return nil
	}
	return rs.rules[i]
}

func (rs *Rules) Len() int { return len(rs.rules) }

func (rs *Rules) Clear() { rs.rules = nil }

// All returns the rules in order
func (rs *Rules) All() []*Rule {
	return append([]*Rule(nil), rs.rules...)
}

// retain keeps only the rules for which keep returns true
func (rs *Rules) retain(keep func(*Rule) bool) int {
	kept := rs.rules[:0]
	dropped := 0
	for _, r := range rs.rules {
		if keep(r) {
			kept = append(kept, r)
		} else {
			dropped++
		}
	}
	rs.rules = kept
	return dropped
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: ini.go
Description: INI layout of a fuzzy model:
[model] name, description / [sets] variable = set count / [<variable>] set = function /
[<variable>_<set>] min, max, count, param_0000.. / [rules] rule_001..
*/

package modelfile

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/ini"
)

const (
	sectionModel = "model"
	sectionSets  = "sets"
	sectionRules = "rules"
)

const formatGuide = `Fuzzy model file

[model]               name and description of the model
[sets]                one entry per variable: <variable> = <number of sets>
[<variable>]          one entry per set: <set> = <membership function>
[<variable>_<set>]    min, max, count and param_0000.. for the membership function
[rules]               rule_001 = if <variable>.[<hedge>.]<set> and ... then <variable>.<set>

Membership functions: Gaussian Bell, S-Curve, Inverted S-Curve, Triangle (param_0000 = peak),
Inverted Triangle, Trapezoid (param_0000, param_0001 = plateau), Interpolate (x,y pairs).
Hedges: very, extremely, somewhat, not. Append "with <weight>" to scale a rule.`

func setSection(variable, set string) string {
	return variable + "_" + set
}

func paramName(i int) string {
	return fmt.Sprintf("param_%04d", i)
}

// checkSections rejects models whose names would share an INI section or key, since
// the file could not be read back as the same model
func checkSections(m *fuzzy.Model) error {
	owner := map[string]string{
		sectionModel: "the [model] section",
		sectionSets:  "the [sets] section",
		sectionRules: "the [rules] section",
	}
	claim := func(section, what string) error {
		if other, ok := owner[section]; ok {
			return fmt.Errorf("%w: %s and %s both map to section [%s]", fuzzy.ErrInvalidModel, what, other, section)
		}
		owner[section] = what
		return nil
	}
	for _, v := range m.Variables() {
		if err := claim(v.Name(), "variable "+v.Name()); err != nil {
			return err
		}
	}
	for _, v := range m.Variables() {
		for _, s := range v.Sets() {
			if s.Name() == "description" {
				return fmt.Errorf("%w: set %s.description clashes with the variable description key", fuzzy.ErrInvalidModel, v.Name())
			}
			if err := claim(setSection(v.Name(), s.Name()), fmt.Sprintf("set %s.%s", v.Name(), s.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeINI(m *fuzzy.Model, opts SaveOptions) (*ini.File, error) {
	if err := checkSections(m); err != nil {
		return nil, err
	}
	f := ini.New()
	if opts.Comments {
		f.Header = formatGuide
	}

	model := f.AddSection(sectionModel)
	model.Add("name", m.Name())
	if m.Description != "" {
		model.Add("description", m.Description)
	}

	sets := f.AddSection(sectionSets)
	for _, v := range m.Variables() {
		sets.Add(v.Name(), strconv.Itoa(v.Len()))
	}

	for _, v := range m.Variables() {
		vs := f.AddSection(v.Name())
		if opts.Comments {
			vs.Comment = fmt.Sprintf("variable %s, range [%g, %g]", v.Name(), v.Min(), v.Max())
			if v.Description != "" {
				vs.Comment += "\n" + v.Description
			}
		}
		if v.Description != "" {
			vs.Add("description", v.Description)
		}
		for _, s := range v.Sets() {
			vs.Add(s.Name(), s.Function())
		}
		for _, s := range v.Sets() {
			ss := f.AddSection(setSection(v.Name(), s.Name()))
			if opts.Comments {
				ss.Comment = fmt.Sprintf("%s is %s (%s)", v.Name(), s.Name(), s.Function())
			}
			ss.Add("min", "").SetFloat(s.Min())
			ss.Add("max", "").SetFloat(s.Max())
			ss.Add("count", "").SetInt(s.ParamLen())
			for i, p := range s.Params() {
				ss.Add(paramName(i), "").SetFloat(p)
			}
		}
	}

	rules := f.AddSection(sectionRules)
	for i, r := range m.Rules() {
		rules.Add(fmt.Sprintf("rule_%03d", i+1), r.String())
	}
	return f, nil
}

func decodeINI(r io.Reader) (*fuzzy.Model, error) {
	f := ini.New()
	if err := f.Parse(r); err != nil {
		return nil, err
	}

	modelSec := f.Section(sectionModel)
	if modelSec == nil {
		return nil, fmt.Errorf("%w: missing [%s] section", fuzzy.ErrInvalidModel, sectionModel)
	}
	m, err := fuzzy.NewModel(modelSec.Value("name", ""))
	if err != nil {
		return nil, err
	}
	m.Description = modelSec.Value("description", "")

	setsSec := f.Section(sectionSets)
	if setsSec == nil {
		return nil, fmt.Errorf("%w: missing [%s] section", fuzzy.ErrInvalidModel, sectionSets)
	}
	for _, entry := range setsSec.Params() {
		v, err := decodeVariable(f, entry)
		if err != nil {
			return nil, err
		}
		if err := m.AddVariable(v); err != nil {
			return nil, err
		}
	}

	if rulesSec := f.Section(sectionRules); rulesSec != nil {
		for _, p := range rulesSec.Params() {
			if _, err := m.AddRule(p.Value); err != nil {
				return nil, fmt.Errorf("%s: %w", p.Name, err)
			}
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeVariable(f *ini.File, entry *ini.Param) (*fuzzy.Variable, error) {
	v, err := fuzzy.NewVariable(entry.Name)
	if err != nil {
		return nil, err
	}
	sec := f.Section(v.Name())
	if sec == nil {
		return nil, fmt.Errorf("%w: missing [%s] section", fuzzy.ErrInvalidModel, v.Name())
	}

	for _, p := range sec.Params() {
		if p.Name == "description" {
			v.Description = p.Value
			continue
		}
		s, err := decodeSet(f, v.Name(), p)
		if err != nil {
			return nil, err
		}
		v.AddSet(s)
	}

	want := entry.Int(-1)
	if want < 0 {
		return nil, fmt.Errorf("%w: [%s] %s: set count %q is not a number", fuzzy.ErrInvalidModel, sectionSets, entry.Name, entry.Value)
	}
	if want != v.Len() {
		return nil, fmt.Errorf("%w: variable %s declares %d sets but defines %d", fuzzy.ErrInvalidModel, v.Name(), want, v.Len())
	}
	return v, nil
}

func decodeSet(f *ini.File, variable string, entry *ini.Param) (*fuzzy.Set, error) {
	min, max := fuzzy.DefaultMin, fuzzy.DefaultMax
	var extra []float64

	if sec := f.Section(setSection(variable, entry.Name)); sec != nil {
		if p := sec.Get("min"); p != nil {
			min = p.Float(min)
		}
		if p := sec.Get("max"); p != nil {
			max = p.Float(max)
		}
		count := 0
		if p := sec.Get("count"); p != nil {
			count = p.Int(0)
		}
		for i := 0; i < count; i++ {
			p := sec.Get(paramName(i))
			if p == nil {
				return nil, fmt.Errorf("%w: [%s] missing %s", fuzzy.ErrInvalidModel, sec.Name, paramName(i))
			}
			v, err := strconv.ParseFloat(p.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: [%s] %s: %v", fuzzy.ErrInvalidModel, sec.Name, p.Name, err)
			}
			extra = append(extra, v)
		}
	}

	s, err := fuzzy.NewSet(entry.Name, entry.Value, min, max, extra...)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", variable, err)
	}
	return s, nil
}

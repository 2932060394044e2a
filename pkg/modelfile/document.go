/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: document.go
Description: Serializable form of a fuzzy model shared by the YAML and JSON encoders,
the model store and the HTTP API.
*/

package modelfile

import (
	"fmt"

	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
)

// Document is a model in plain data form
type Document struct {
	Name        string        `json:"name" yaml:"name" validate:"required"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   []VariableDoc `json:"variables" yaml:"variables" validate:"required,min=1,dive"`
	Rules       []string      `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// VariableDoc describes one variable and its sets
type VariableDoc struct {
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Sets        []SetDoc `json:"sets" yaml:"sets" validate:"required,min=1,dive"`
}

// SetDoc describes one fuzzy set
type SetDoc struct {
	Name     string    `json:"name" yaml:"name" validate:"required"`
	Function string    `json:"function" yaml:"function" validate:"required"`
	Min      float64   `json:"min" yaml:"min"`
	Max      float64   `json:"max" yaml:"max" validate:"gtfield=Min"`
	Params   []float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// FromModel captures m as a Document
func FromModel(m *fuzzy.Model) *Document {
	doc := &Document{
		Name:        m.Name(),
		Description: m.Description,
	}
	for _, v := range m.Variables() {
		vd := VariableDoc{Name: v.Name(), Description: v.Description}
		for _, s := range v.Sets() {
			vd.Sets = append(vd.Sets, SetDoc{
				Name:     s.Name(),
				Function: s.Function(),
				Min:      s.Min(),
				Max:      s.Max(),
				Params:   s.Params(),
			})
		}
		doc.Variables = append(doc.Variables, vd)
	}
	for _, r := range m.Rules() {
		doc.Rules = append(doc.Rules, r.String())
	}
	return doc
}

// Model builds and validates a model from the document
func (d *Document) Model() (*fuzzy.Model, error) {
	m, err := fuzzy.NewModel(d.Name)
	if err != nil {
		return nil, err
	}
	m.Description = d.Description

	for _, vd := range d.Variables {
		v, err := fuzzy.NewVariable(vd.Name)
		if err != nil {
			return nil, err
		}
		v.Description = vd.Description
		for _, sd := range vd.Sets {
			s, err := fuzzy.NewSet(sd.Name, sd.Function, sd.Min, sd.Max, sd.Params...)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", vd.Name, err)
			}
			if got := v.AddSet(s); got != s {
				return nil, fmt.Errorf("variable %s: set %s defined twice: %w", vd.Name, sd.Name, fuzzy.ErrDuplicate)
			}
		}
		if err := m.AddVariable(v); err != nil {
			return nil, err
		}
	}
	for _, text := range d.Rules {
		if _, err := m.AddRule(text); err != nil {
			return nil, err
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

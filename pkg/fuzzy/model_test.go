/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: model_test.go
Description: Tests for models and the model registry: rule reference checks, input and
output discovery, validation, cloning and handle registration.
*/

package fuzzy_test

import (
	"errors"
	"testing"

	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVariable(t *testing.T, name string, sets ...*fuzzy.Set) *fuzzy.Variable {
	t.Helper()
	v, err := fuzzy.NewVariable(name)
	require.NoError(t, err)
	for _, s := range sets {
		v.AddSet(s)
	}
	return v
}

func newTipper(t *testing.T) *fuzzy.Model {
	t.Helper()
	m, err := fuzzy.NewModel("Tipper")
	require.NoError(t, err)
	m.Description = "restaurant tip"

	require.NoError(t, m.AddVariable(newVariable(t, "service",
		fuzzy.MustSet("poor", fuzzy.FuncInvertedSCurve, 0, 5),
		fuzzy.MustSet("good", fuzzy.FuncTriangle, 0, 10),
		fuzzy.MustSet("excellent", fuzzy.FuncSCurve, 5, 10),
	)))
	require.NoError(t, m.AddVariable(newVariable(t, "food",
		fuzzy.MustSet("rancid", fuzzy.FuncInvertedSCurve, 0, 5),
		fuzzy.MustSet("delicious", fuzzy.FuncSCurve, 5, 10),
	)))
	require.NoError(t, m.AddVariable(newVariable(t, "tip",
		fuzzy.MustSet("cheap", fuzzy.FuncTriangle, 0, 10),
		fuzzy.MustSet("average", fuzzy.FuncTriangle, 10, 20),
		fuzzy.MustSet("generous", fuzzy.FuncTriangle, 20, 30),
	)))
	for _, rule := range []string{
		"if service.poor then tip.cheap",
		"if food.rancid then tip.cheap",
		"if service.good then tip.average",
		"if service.excellent and food.delicious then tip.generous",
	} {
		_, err := m.AddRule(rule)
		require.NoError(t, err)
	}
	return m
}

func names[T interface{ Name() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name()
	}
	return out
}

func TestModelStructure(t *testing.T) {
	m := newTipper(t)
	assert.Equal(t, "tipper", m.Name())
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, fuzzy.KindModel, m.Kind())
	assert.Equal(t, 4, m.RuleCount())

	assert.Equal(t, []string{"service", "food"}, names(m.Inputs()))
	assert.Equal(t, []string{"tip"}, names(m.Outputs()))
	assert.Equal(t, map[string][]string{"tip": {"service", "food"}}, m.Dependencies())

	assert.Equal(t, "food", m.VariableAt(1).Name())
	assert.Nil(t, m.VariableAt(9))
	assert.Same(t, m.Variable("tip"), m.VariableByHandle(m.Variable("tip").Handle()))
	require.NoError(t, m.Validate())
}

func TestModelRuleReferences(t *testing.T) {
	m := newTipper(t)

	_, err := m.AddRule("if ambience.nice then tip.generous")
	assert.True(t, errors.Is(err, fuzzy.ErrInvalidRule))

	_, err = m.AddRule("if service.superb then tip.generous")
	assert.True(t, errors.Is(err, fuzzy.ErrInvalidRule))

	_, err = m.AddRule("if tip.cheap then tip.average")
	assert.True(t, errors.Is(err, fuzzy.ErrInvalidRule))

	_, err = m.AddRule("if service.poor then tip.cheap")
	assert.True(t, errors.Is(err, fuzzy.ErrDuplicate))

	err = m.AddVariable(newVariable(t, "FOOD"))
	assert.True(t, errors.Is(err, fuzzy.ErrDuplicate))
}

func TestModelRemoveVariableDropsRules(t *testing.T) {
	m := newTipper(t)
	assert.Equal(t, 2, m.RemoveVariable("food"))
	assert.Equal(t, 2, m.RuleCount())
	assert.Nil(t, m.Variable("food"))
	assert.Equal(t, -1, m.RemoveVariable("food"))

	require.NoError(t, m.DeleteRule(0))
	assert.Equal(t, 1, m.RuleCount())
	m.ClearRules()
	assert.Equal(t, 0, m.RuleCount())
	assert.Equal(t, []string{"service", "tip"}, names(m.Inputs()))
}

func TestModelValidateCycle(t *testing.T) {
	m, err := fuzzy.NewModel("loop")
	require.NoError(t, err)
	require.NoError(t, m.AddVariable(newVariable(t, "a", fuzzy.MustSet("x", fuzzy.FuncTriangle, 0, 1))))
	require.NoError(t, m.AddVariable(newVariable(t, "b", fuzzy.MustSet("y", fuzzy.FuncTriangle, 0, 1))))
	_, err = m.AddRule("if a.x then b.y")
	require.NoError(t, err)
	_, err = m.AddRule("if b.y then a.x")
	require.NoError(t, err)

	err = m.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fuzzy.ErrInvalidModel))
	assert.Contains(t, err.Error(), "cycle")
}

func TestModelValidateStructure(t *testing.T) {
	m, err := fuzzy.NewModel("empty")
	require.NoError(t, err)
	assert.True(t, errors.Is(m.Validate(), fuzzy.ErrInvalidModel))

	require.NoError(t, m.AddVariable(newVariable(t, "lonely")))
	assert.True(t, errors.Is(m.Validate(), fuzzy.ErrInvalidModel))

	_, err = fuzzy.NewModel(" ")
	assert.Error(t, err)
}

func TestModelClone(t *testing.T) {
	m := newTipper(t)
	c := m.Clone()
	assert.Equal(t, m.ID, c.ID)
	assert.NotEqual(t, m.Handle(), c.Handle())
	assert.Equal(t, m.RuleCount(), c.RuleCount())

	require.NoError(t, c.Variable("tip").Set("cheap").SetParam(0, 2))
	assert.Equal(t, 0, m.Variable("tip").Set("cheap").ParamLen())

	c.Clear()
	assert.Empty(t, c.Variables())
	assert.Len(t, m.Variables(), 3)
}

func TestModelsRegistry(t *testing.T) {
	objects := fuzzy.NewObjects()
	reg := fuzzy.NewModels(objects)
	m := newTipper(t)

	h, err := reg.Add(m)
	require.NoError(t, err)
	assert.Equal(t, m.Handle(), h)
	// model + 3 variables + 8 sets
	assert.Equal(t, 12, objects.Len())

	_, err = reg.Add(newTipper(t))
	assert.True(t, errors.Is(err, fuzzy.ErrDuplicate))

	got, err := reg.Get(h)
	require.NoError(t, err)
	assert.Same(t, m, got)
	got, err = reg.ByName("TIPPER")
	require.NoError(t, err)
	assert.Same(t, m, got)
	got, err = reg.At(0)
	require.NoError(t, err)
	assert.Same(t, m, got)

	serviceGood := m.Variable("service").Set("good")
	obj, ok := objects.Lookup(serviceGood.Handle())
	require.True(t, ok)
	assert.Equal(t, fuzzy.KindSet, obj.Kind())
	owner, err := reg.Owner(serviceGood.Handle())
	require.NoError(t, err)
	assert.Same(t, m, owner)

	other, err := fuzzy.NewModel("other")
	require.NoError(t, err)
	_, err = reg.Add(other)
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "tipper"}, reg.Names())
	assert.Equal(t, 2, reg.Len())

	replacement := newTipper(t)
	old := reg.Replace(replacement)
	assert.Same(t, m, old)
	_, ok = objects.Lookup(serviceGood.Handle())
	assert.False(t, ok)

	require.NoError(t, reg.Remove(replacement.Handle()))
	assert.True(t, errors.Is(reg.Remove(replacement.Handle()), fuzzy.ErrNotFound))
	_, err = reg.ByName("tipper")
	assert.True(t, errors.Is(err, fuzzy.ErrNotFound))

	reg.Clear()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, objects.Len())
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: executor_test.go
Description: Tests for model execution: rule firing, hedges, weights, conjunctions,
defuzzification methods, chained variables, input overrides and error paths.
*/

package execution_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variable(t *testing.T, name string, sets ...*fuzzy.Set) *fuzzy.Variable {
	t.Helper()
	v, err := fuzzy.NewVariable(name)
	require.NoError(t, err)
	for _, s := range sets {
		v.AddSet(s)
	}
	return v
}

func model(t *testing.T, name string, vars []*fuzzy.Variable, rules ...string) *fuzzy.Model {
	t.Helper()
	m, err := fuzzy.NewModel(name)
	require.NoError(t, err)
	for _, v := range vars {
		require.NoError(t, m.AddVariable(v))
	}
	for _, r := range rules {
		_, err := m.AddRule(r)
		require.NoError(t, err)
	}
	return m
}

// x in [0,10] drives y in [0,20]; y drives z in [0,20]
func chainModel(t *testing.T, rules ...string) *fuzzy.Model {
	t.Helper()
	return model(t, "chain", []*fuzzy.Variable{
		variable(t, "x",
			fuzzy.MustSet("low", fuzzy.FuncTriangle, 0, 10, 0),
			fuzzy.MustSet("high", fuzzy.FuncTriangle, 0, 10, 10)),
		variable(t, "y",
			fuzzy.MustSet("small", fuzzy.FuncTriangle, 0, 10),
			fuzzy.MustSet("big", fuzzy.FuncTriangle, 10, 20)),
		variable(t, "z",
			fuzzy.MustSet("small", fuzzy.FuncTriangle, 0, 10),
			fuzzy.MustSet("big", fuzzy.FuncTriangle, 10, 20)),
	}, rules...)
}

var chainRules = []string{
	"if x.low then y.small",
	"if x.high then y.big",
	"if y.small then z.small",
	"if y.big then z.big",
}

func TestEvaluateBisector(t *testing.T) {
	e, err := execution.New(chainModel(t, chainRules...))
	require.NoError(t, err)

	cases := []struct {
		x, y float64
	}{
		{0, 5},
		{5, 10},
		{10, 15},
	}
	for _, tc := range cases {
		res, err := e.Evaluate(context.Background(), map[string]float64{"x": tc.x})
		require.NoError(t, err)
		assert.InDelta(t, tc.y, res.Outputs["y"], 0.05, "x=%v", tc.x)
		assert.True(t, res.Fired["y"])
		assert.Equal(t, map[string]float64{"x": tc.x}, res.Inputs)
		assert.NotEmpty(t, res.RunID)
		assert.Equal(t, "chain", res.Model)
	}
}

func TestChainedVariables(t *testing.T) {
	m := chainModel(t, chainRules...)
	e, err := execution.New(m)
	require.NoError(t, err)

	res, err := e.Evaluate(context.Background(), map[string]float64{"x": 0})
	require.NoError(t, err)
	assert.InDelta(t, 5, res.Outputs["y"], 0.05)
	assert.InDelta(t, 5, res.Outputs["z"], 0.05)

	z, err := e.Output("z")
	require.NoError(t, err)
	assert.Equal(t, res.Outputs["z"], z)

	// the model keeps the bound crisp values
	yv, bound := m.Variable("y").Value()
	assert.True(t, bound)
	assert.Equal(t, res.Outputs["y"], yv)

	degrees, err := e.Degrees("x")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"low": 1, "high": 0}, degrees)
}

func TestInputOverridesRules(t *testing.T) {
	e, err := execution.New(chainModel(t, chainRules...))
	require.NoError(t, err)

	require.NoError(t, e.Input("x", 0))
	require.NoError(t, e.Input("y", 12))
	res, err := e.Calculate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12.0, res.Inputs["y"])
	assert.NotContains(t, res.Outputs, "y")
	assert.InDelta(t, 15, res.Outputs["z"], 0.05)
}

func TestNoRuleFired(t *testing.T) {
	m := model(t, "gap", []*fuzzy.Variable{
		variable(t, "x",
			fuzzy.MustSet("low", fuzzy.FuncTriangle, 0, 4, 0),
			fuzzy.MustSet("high", fuzzy.FuncTriangle, 6, 10, 10)),
		variable(t, "y",
			fuzzy.MustSet("small", fuzzy.FuncTriangle, 0, 10),
			fuzzy.MustSet("big", fuzzy.FuncTriangle, 10, 20)),
	}, "if x.low then y.small", "if x.high then y.big")

	e, err := execution.New(m)
	require.NoError(t, err)
	res, err := e.Evaluate(context.Background(), map[string]float64{"x": 5})
	require.NoError(t, err)
	assert.False(t, res.Fired["y"])
	assert.Equal(t, 10.0, res.Outputs["y"])
}

func TestHedgesAndWeights(t *testing.T) {
	e, err := execution.New(chainModel(t,
		"if x.low then y.small with 0.5",
		"if x.not.low then y.big",
	))
	require.NoError(t, err)

	res, err := e.Evaluate(context.Background(), map[string]float64{"x": 0})
	require.NoError(t, err)
	require.Len(t, res.Strengths, 2)
	assert.Equal(t, 0, res.Strengths[0].Index)
	assert.InDelta(t, 0.5, res.Strengths[0].Strength, 1e-12)
	assert.Equal(t, "if x.not.low then y.big", res.Strengths[1].Rule)
	assert.InDelta(t, 0, res.Strengths[1].Strength, 1e-12)
	assert.InDelta(t, 5, res.Outputs["y"], 0.05)

	res, err = e.Evaluate(context.Background(), map[string]float64{"x": 2.5})
	require.NoError(t, err)
	// low(2.5) = 0.75, so "not low" = 0.25
	assert.InDelta(t, 0.375, res.Strengths[0].Strength, 1e-12)
	assert.InDelta(t, 0.25, res.Strengths[1].Strength, 1e-12)
}

func TestAndMethods(t *testing.T) {
	build := func() *fuzzy.Model {
		return model(t, "and", []*fuzzy.Variable{
			variable(t, "a", fuzzy.MustSet("on", fuzzy.FuncSCurve, 0, 10)),
			variable(t, "b", fuzzy.MustSet("on", fuzzy.FuncSCurve, 0, 10)),
			variable(t, "y", fuzzy.MustSet("big", fuzzy.FuncTriangle, 0, 10)),
		}, "if a.on and b.on then y.big")
	}
	inputs := map[string]float64{"a": 5, "b": 5}

	minExec, err := execution.New(build())
	require.NoError(t, err)
	res, err := minExec.Evaluate(context.Background(), inputs)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Strengths[0].Strength, 1e-12)

	prodExec, err := execution.New(build(), execution.WithAndMethod(execution.AndProduct))
	require.NoError(t, err)
	res, err = prodExec.Evaluate(context.Background(), inputs)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.Strengths[0].Strength, 1e-12)
}

func TestDefuzzifierOptions(t *testing.T) {
	for _, method := range []execution.Method{execution.Bisector, execution.Centroid, execution.MeanOfMaximum} {
		t.Run(string(method), func(t *testing.T) {
			e, err := execution.New(chainModel(t, chainRules...), execution.WithDefuzzifier(method))
			require.NoError(t, err)
			res, err := e.Evaluate(context.Background(), map[string]float64{"x": 0})
			require.NoError(t, err)
			assert.InDelta(t, 5, res.Outputs["y"], 0.05)
		})
	}
}

func TestCurvesAndResolution(t *testing.T) {
	e, err := execution.New(chainModel(t, chainRules...),
		execution.WithCurves(true), execution.WithResolution(100))
	require.NoError(t, err)
	res, err := e.Evaluate(context.Background(), map[string]float64{"x": 0})
	require.NoError(t, err)

	curve := res.Aggregates["y"]
	require.Len(t, curve, 101)
	assert.Equal(t, 0.0, curve[0].X)
	assert.InDelta(t, 20, curve[100].X, 1e-9)
	for _, p := range curve {
		assert.GreaterOrEqual(t, p.Mu, 0.0)
		assert.LessOrEqual(t, p.Mu, 1.0)
	}
	assert.Contains(t, res.Degrees, "x")
	assert.NotContains(t, res.Aggregates, "x")
}

type recordingObserver struct {
	results []*execution.Result
	errs    []error
	models  []string
}

func (o *recordingObserver) ObserveEvaluation(_ context.Context, model string, res *execution.Result, err error) {
	o.models = append(o.models, model)
	o.results = append(o.results, res)
	o.errs = append(o.errs, err)
}

func TestObserverAndErrors(t *testing.T) {
	obs := &recordingObserver{}
	e, err := execution.New(chainModel(t, chainRules...), execution.WithObserver(obs))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.Output("y")
	assert.True(t, errors.Is(err, execution.ErrNotCalculated))
	_, err = e.Degrees("y")
	assert.True(t, errors.Is(err, execution.ErrNotCalculated))

	_, err = e.Evaluate(ctx, map[string]float64{})
	assert.True(t, errors.Is(err, execution.ErrMissingInput))

	_, err = e.Evaluate(ctx, map[string]float64{"x": 1, "w": 2})
	assert.True(t, errors.Is(err, fuzzy.ErrNotFound))

	assert.Error(t, e.Input("x", 0/zero()))

	_, err = e.Evaluate(ctx, map[string]float64{"x": 1})
	require.NoError(t, err)

	require.Len(t, obs.results, 3)
	assert.Nil(t, obs.results[0])
	assert.Error(t, obs.errs[1])
	assert.NotNil(t, obs.results[2])
	assert.NoError(t, obs.errs[2])
	assert.Equal(t, []string{"chain", "chain", "chain"}, obs.models)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Evaluate(cancelled, map[string]float64{"x": 1})
	assert.True(t, errors.Is(err, context.Canceled))
}

func zero() float64 { return 0 }

func TestNewRejectsInvalidModels(t *testing.T) {
	_, err := execution.New(nil)
	assert.Error(t, err)

	loop := model(t, "loop", []*fuzzy.Variable{
		variable(t, "a", fuzzy.MustSet("x", fuzzy.FuncTriangle, 0, 1)),
		variable(t, "b", fuzzy.MustSet("y", fuzzy.FuncTriangle, 0, 1)),
	}, "if a.x then b.y", "if b.y then a.x")
	_, err = execution.New(loop)
	assert.True(t, errors.Is(err, execution.ErrCycle))
}

func TestDefuzzifyDirect(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	flat := []float64{1, 1, 1, 1, 1}
	for _, m := range []execution.Method{execution.Bisector, execution.Centroid, execution.MeanOfMaximum} {
		v, ok := m.Defuzzify(xs, flat)
		assert.True(t, ok)
		assert.InDelta(t, 2, v, 1e-12, string(m))

		_, ok = m.Defuzzify(xs, []float64{0, 0, 0, 0, 0})
		assert.False(t, ok)
	}
	_, ok := execution.Bisector.Defuzzify([]float64{1}, []float64{1})
	assert.False(t, ok)

	m, err := execution.ParseMethod("COG")
	require.NoError(t, err)
	assert.Equal(t, execution.Centroid, m)
	_, err = execution.ParseMethod("median")
	assert.Error(t, err)

	a, err := execution.ParseAndMethod("prod")
	require.NoError(t, err)
	assert.Equal(t, execution.AndProduct, a)
	_, err = execution.ParseAndMethod("xor")
	assert.Error(t, err)
}

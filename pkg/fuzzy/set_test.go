/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: set_test.go
Description: Tests for fuzzy sets and variables: membership bounds, params, curves,
set lookup and the variable domain envelope.
*/

package fuzzy_test

import (
	"errors"
	"math"
	"testing"

	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetValidation(t *testing.T) {
	_, err := fuzzy.NewSet("hot", "sawtooth", 0, 10)
	assert.True(t, errors.Is(err, fuzzy.ErrUnknownFunction))

	_, err = fuzzy.NewSet("hot", fuzzy.FuncTriangle, 10, 0)
	assert.True(t, errors.Is(err, fuzzy.ErrInvalidParams))

	_, err = fuzzy.NewSet("  ", fuzzy.FuncTriangle, 0, 10)
	assert.Error(t, err)

	s, err := fuzzy.NewSet(" Hot ", "TRIANGLE", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "hot", s.Name())
	assert.Equal(t, fuzzy.FuncTriangle, s.Function())
	assert.Equal(t, fuzzy.KindSet, s.Kind())
	assert.NotZero(t, s.Handle())
}

func TestMembershipStaysInUnitInterval(t *testing.T) {
	sets := []*fuzzy.Set{
		fuzzy.MustSet("bell", fuzzy.FuncGaussianBell, -3, 7),
		fuzzy.MustSet("s", fuzzy.FuncSCurve, 0, 1),
		fuzzy.MustSet("z", fuzzy.FuncInvertedSCurve, 0, 1),
		fuzzy.MustSet("tri", fuzzy.FuncTriangle, 0, 10, 3),
		fuzzy.MustSet("itri", fuzzy.FuncInvertedTriangle, 0, 10),
		fuzzy.MustSet("trap", fuzzy.FuncTrapezoid, 0, 10),
		// y values above 1 are clamped
		fuzzy.MustSet("interp", fuzzy.FuncInterpolate, 0, 10, 0, 2, 10, 2),
	}
	for _, s := range sets {
		for _, x := range []float64{-1e9, -5, 0, 0.5, 3, 7, 10, 1e9, math.Inf(1), math.NaN()} {
			mu := s.Membership(x)
			assert.GreaterOrEqual(t, mu, 0.0, "%s(%v)", s.Name(), x)
			assert.LessOrEqual(t, mu, 1.0, "%s(%v)", s.Name(), x)
		}
	}
	assert.Equal(t, 1.0, sets[6].Membership(5))
}

func TestMembershipClampsToDomain(t *testing.T) {
	s := fuzzy.MustSet("warm", fuzzy.FuncSCurve, 0, 10)
	assert.Equal(t, s.Membership(10), s.Membership(25))
	assert.Equal(t, s.Membership(0), s.Membership(-25))

	bell := fuzzy.MustSet("mid", fuzzy.FuncGaussianBell, 0, 10)
	assert.InDelta(t, 0.001, bell.Membership(-100), 1e-9)
}

func TestSetParams(t *testing.T) {
	s := fuzzy.MustSet("peak", fuzzy.FuncTriangle, 0, 10)
	assert.Equal(t, 0, s.ParamLen())
	assert.Equal(t, 0.0, s.Param(0))

	require.NoError(t, s.SetParam(0, 2))
	assert.Equal(t, []float64{2}, s.Params())
	assert.InDelta(t, 0.5, s.Membership(1), 1e-9)

	require.NoError(t, s.SetParam(0, 8))
	assert.InDelta(t, 0.5, s.Membership(4), 1e-9)
	assert.Error(t, s.SetParam(3, 1))

	require.NoError(t, s.SetFunction("inverted triangle"))
	assert.InDelta(t, 0.5, s.Membership(4), 1e-9)
	assert.Error(t, s.SetFunction("nope"))

	assert.Error(t, s.SetRange(5, 5))
	require.NoError(t, s.SetRange(0, 20))
	assert.Equal(t, 20.0, s.Max())
}

func TestPeakAndCurve(t *testing.T) {
	s := fuzzy.MustSet("tri", fuzzy.FuncTriangle, 0, 10, 3)
	assert.InDelta(t, 3, s.Peak(), 0.011)

	curve := s.Curve(10)
	require.Len(t, curve, 11)
	assert.Equal(t, 0.0, curve[0].X)
	assert.InDelta(t, 10, curve[10].X, 1e-9)
	assert.InDelta(t, 0, curve[10].Mu, 1e-9)

	assert.Len(t, s.Curve(0), fuzzy.CurvePoints+1)
}

func newTemperature(t *testing.T) *fuzzy.Variable {
	t.Helper()
	v, err := fuzzy.NewVariable("Temperature")
	require.NoError(t, err)
	v.AddSet(fuzzy.MustSet("cold", fuzzy.FuncInvertedSCurve, -10, 15))
	v.AddSet(fuzzy.MustSet("mild", fuzzy.FuncTriangle, 5, 25))
	v.AddSet(fuzzy.MustSet("hot", fuzzy.FuncSCurve, 15, 40))
	return v
}

func TestVariableSets(t *testing.T) {
	v := newTemperature(t)
	assert.Equal(t, "temperature", v.Name())
	assert.Equal(t, fuzzy.KindVariable, v.Kind())
	require.Equal(t, 3, v.Len())

	// adding a set with an existing name keeps the original
	dup := fuzzy.MustSet("MILD", fuzzy.FuncTrapezoid, 0, 100)
	got := v.AddSet(dup)
	assert.NotSame(t, dup, got)
	assert.Equal(t, fuzzy.FuncTriangle, got.Function())
	assert.Equal(t, 3, v.Len())

	assert.Equal(t, "mild", v.SetAt(1).Name())
	assert.Nil(t, v.SetAt(3))
	assert.Same(t, v.Set("hot"), v.SetByHandle(v.Set("hot").Handle()))
	assert.Nil(t, v.Set("freezing"))

	assert.Equal(t, -10.0, v.Min())
	assert.Equal(t, 40.0, v.Max())

	assert.True(t, v.RemoveSet("cold"))
	assert.False(t, v.RemoveSet("cold"))
	assert.Equal(t, 5.0, v.Min())
}

func TestVariableValueAndFuzzify(t *testing.T) {
	v := newTemperature(t)
	_, bound := v.Value()
	assert.False(t, bound)

	v.SetValue(15)
	x, bound := v.Value()
	assert.True(t, bound)
	assert.Equal(t, 15.0, x)

	degrees := v.Fuzzify(15)
	assert.InDelta(t, 0, degrees["cold"], 1e-9)
	assert.InDelta(t, 1, degrees["mild"], 1e-9)
	assert.InDelta(t, 0, degrees["hot"], 1e-9)

	best, mu := v.Best(15)
	assert.Equal(t, "mild", best.Name())
	assert.InDelta(t, 1, mu, 1e-9)

	v.Reset()
	_, bound = v.Value()
	assert.False(t, bound)
}

func TestEmptyVariableDomain(t *testing.T) {
	v, err := fuzzy.NewVariable("empty")
	require.NoError(t, err)
	assert.Equal(t, fuzzy.DefaultMin, v.Min())
	assert.Equal(t, fuzzy.DefaultMax, v.Max())
	best, mu := v.Best(3)
	assert.Nil(t, best)
	assert.Equal(t, 0.0, mu)

	_, err = fuzzy.NewVariable("")
	assert.Error(t, err)
}

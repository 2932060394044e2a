/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: defuzzify.go
Description: Defuzzification methods that turn an aggregated output curve into a crisp
value: equal-area bisector, centroid and mean of maximum.
*/

package execution

import (
	"fmt"
	"strings"
)

// Method selects a defuzzification strategy
type Method string

const (
	Bisector      Method = "bisector"
	Centroid      Method = "centroid"
	MeanOfMaximum Method = "mom"
)

// ParseMethod maps a name from configuration to a Method
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bisector", "bisection":
		return Bisector, nil
	case "centroid", "cog":
		return Centroid, nil
	case "mom", "mean-of-maximum", "meanofmaximum":
		return MeanOfMaximum, nil
	}
	return "", fmt.Errorf("unknown defuzzification method %q", name)
}

// Defuzzify reduces evenly spaced samples ys over xs to one value.
// ok is false when the curve has no area.
func (m Method) Defuzzify(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}
	switch m {
	case Centroid:
		return centroid(xs, ys)
	case MeanOfMaximum:
		return meanOfMaximum(xs, ys)
	default:
		return bisector(xs, ys)
	}
}

// bisector walks in from both ends, always growing the smaller area, until the two
// fronts meet. The meeting point splits the area under the curve in half.
func bisector(xs, ys []float64) (float64, bool) {
	dx := xs[1] - xs[0]
	l, r := 0, len(xs)-1
	var left, right float64
	for l < r {
		if left <= right {
			left += (ys[l] + ys[l+1]) / 2 * dx
			l++
		} else {
			right += (ys[r] + ys[r-1]) / 2 * dx
			r--
		}
	}
	if left+right <= 0 {
		return 0, false
	}
	return xs[l], true
}

func centroid(xs, ys []float64) (float64, bool) {
	var num, den float64
	for i := range xs {
		num += xs[i] * ys[i]
		den += ys[i]
	}
	if den <= 0 {
		return 0, false
	}
	return num / den, true
}

func meanOfMaximum(xs, ys []float64) (float64, bool) {
	peak := 0.0
	for _, y := range ys {
		if y > peak {
			peak = y
		}
	}
	if peak <= 0 {
		return 0, false
	}
	var sum float64
	var n int
	for i, y := range ys {
		if y >= peak-1e-9 {
			sum += xs[i]
			n++
		}
	}
	return sum / float64(n), true
}

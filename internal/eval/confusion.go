// Package eval measures classification accuracy overall, per class and per
// held-out subgroup.
package eval

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Confusion counts predictions in a classes x classes matrix indexed by
// true label then predicted label.
func Confusion(trueLabels, predicted []int, classes int) *mat.Dense {
	cm := mat.NewDense(classes, classes, nil)
	for i, t := range trueLabels {
		p := predicted[i]
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm
}

// Normalize divides every row by its sum. Rows without support become NaN.
func Normalize(cm *mat.Dense) *mat.Dense {
	rows, cols := cm.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, cm)
		sum := floats.Sum(row)
		if sum == 0 {
			floats.AddConst(math.NaN(), row)
		} else {
			floats.Scale(1/sum, row)
		}
		out.SetRow(i, row)
	}
	return out
}

// PerClassAccuracy returns the diagonal of the row-normalised matrix as a
// percentage; classes with no true examples are NaN.
func PerClassAccuracy(cm *mat.Dense) []float64 {
	rows, _ := cm.Dims()
	out := make([]float64, rows)
	for i := range out {
		support := floats.Sum(mat.Row(nil, i, cm))
		if support == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cm.At(i, i) / support * 100
	}
	return out
}

// Summary aggregates accuracies over the defined (non-NaN) entries only.
type Summary struct {
	Mean      float64
	Var       float64
	Max       float64
	Min       float64
	Defined   int
	Undefined int
}

// Summarize computes mean, population variance, max and min of values,
// ignoring NaN. With nothing defined every statistic is NaN.
func Summarize(values []float64) Summary {
	defined := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			defined = append(defined, v)
		}
	}
	s := Summary{Defined: len(defined), Undefined: len(values) - len(defined)}
	if len(defined) == 0 {
		nan := math.NaN()
		s.Mean, s.Var, s.Max, s.Min = nan, nan, nan, nan
		return s
	}
	s.Mean, s.Var = stat.PopMeanVariance(defined, nil)
	s.Max = floats.Max(defined)
	s.Min = floats.Min(defined)
	return s
}

package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// GradNorm returns the L2 norm of all gradients taken jointly.
func GradNorm(params []*Param) float64 {
	total := 0.0
	for _, p := range params {
		n := floats.Norm(p.Grad, 2)
		total += n * n
	}
	return math.Sqrt(total)
}

// ClipGradNorm rescales all gradients jointly so their global L2 norm does not
// exceed maxNorm and returns the norm measured before clipping.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	total := GradNorm(params)
	coef := maxNorm / (total + 1e-6)
	if coef < 1 {
		for _, p := range params {
			floats.Scale(coef, p.Grad)
		}
	}
	return total
}

// GradVector flattens every gradient into a single fresh vector.
func GradVector(params []*Param) []float64 {
	n := 0
	for _, p := range params {
		n += len(p.Grad)
	}
	out := make([]float64, 0, n)
	for _, p := range params {
		out = append(out, p.Grad...)
	}
	return out
}

package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dense is a fully connected layer y = Wx + b backed by gonum views over the
// parameter slices, so optimizer updates are visible without copying.
type dense struct {
	in, out int
	w, b    *Param
	wm, gm  *mat.Dense
}

func newDense(name string, in, out int, rng *rand.Rand) *dense {
	w := NewParam(name+".weight", out, in)
	b := NewParam(name+".bias", out)
	bound := 1 / math.Sqrt(float64(in))
	uniform(rng, w.Data, bound)
	uniform(rng, b.Data, bound)
	return &dense{
		in:  in,
		out: out,
		w:   w,
		b:   b,
		wm:  mat.NewDense(out, in, w.Data),
		gm:  mat.NewDense(out, in, w.Grad),
	}
}

func (d *dense) params() []*Param {
	return []*Param{d.w, d.b}
}

func (d *dense) forward(x []float64) []float64 {
	y := mat.NewVecDense(d.out, nil)
	y.MulVec(d.wm, mat.NewVecDense(d.in, x))
	out := y.RawVector().Data
	floats.Add(out, d.b.Data)
	return out
}

// backward accumulates dW += dy xᵀ and db += dy and returns dx = Wᵀ dy.
func (d *dense) backward(x, dy []float64) []float64 {
	dyv := mat.NewVecDense(d.out, dy)
	d.gm.RankOne(d.gm, 1, dyv, mat.NewVecDense(d.in, x))
	floats.Add(d.b.Grad, dy)
	dx := mat.NewVecDense(d.in, nil)
	dx.MulVec(d.wm.T(), dyv)
	return dx.RawVector().Data
}

func uniform(rng *rand.Rand, dst []float64, bound float64) {
	for i := range dst {
		dst[i] = (rng.Float64()*2 - 1) * bound
	}
}

func relu(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = x
		}
	}
	return out
}

// reluBackward masks dy by the positions where the activation was positive.
func reluBackward(act, dy []float64) []float64 {
	out := make([]float64, len(dy))
	for i, a := range act {
		if a > 0 {
			out[i] = dy[i]
		}
	}
	return out
}

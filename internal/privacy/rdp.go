// Package privacy tracks the cumulative privacy loss of DP-SGD training using
// Rényi differential privacy of the sampled Gaussian mechanism.
package privacy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/combin"
)

// DefaultOrders are the integer Rényi orders the accountant evaluates.
var DefaultOrders = defaultOrders()

func defaultOrders() []int {
	orders := make([]int, 0, 66)
	for a := 2; a <= 64; a++ {
		orders = append(orders, a)
	}
	return append(orders, 128, 256, 512)
}

// Params describes a DP-SGD run for accounting purposes.
type Params struct {
	BatchSize       int
	DatasetSize     int
	Epochs          int
	NoiseMultiplier float64
	Delta           float64
}

// Report is the outcome of composing the per-step RDP over the whole run.
type Report struct {
	Epsilon         float64
	Delta           float64
	Order           int
	Steps           int
	SamplingRate    float64
	NoiseMultiplier float64
}

func (r Report) String() string {
	return fmt.Sprintf("epsilon=%.4f delta=%g order=%d steps=%d q=%.5f z=%.3f",
		r.Epsilon, r.Delta, r.Order, r.Steps, r.SamplingRate, r.NoiseMultiplier)
}

// Compute returns the (epsilon, delta) guarantee for p.
func Compute(p Params) (Report, error) {
	if p.BatchSize <= 0 || p.DatasetSize <= 0 {
		return Report{}, errors.New("privacy: batch and dataset size must be > 0")
	}
	if p.Epochs <= 0 {
		return Report{}, errors.New("privacy: epochs must be > 0")
	}
	if p.NoiseMultiplier < 0 {
		return Report{}, errors.New("privacy: noise multiplier must be >= 0")
	}
	if p.Delta <= 0 || p.Delta >= 1 {
		return Report{}, fmt.Errorf("privacy: delta must be in (0,1) (got %g)", p.Delta)
	}
	q := math.Min(1, float64(p.BatchSize)/float64(p.DatasetSize))
	perEpoch := (p.DatasetSize + p.BatchSize - 1) / p.BatchSize
	steps := p.Epochs * perEpoch

	rdp := RDP(q, p.NoiseMultiplier, steps, DefaultOrders)
	eps, order := Epsilon(DefaultOrders, rdp, p.Delta)
	return Report{
		Epsilon:         eps,
		Delta:           p.Delta,
		Order:           order,
		Steps:           steps,
		SamplingRate:    q,
		NoiseMultiplier: p.NoiseMultiplier,
	}, nil
}

// RDP returns the Rényi divergence at each order after steps compositions
// of the sampled Gaussian mechanism with sampling rate q and noise
// multiplier sigma.
func RDP(q, sigma float64, steps int, orders []int) []float64 {
	out := make([]float64, len(orders))
	for i, a := range orders {
		out[i] = rdpOrder(q, sigma, a) * float64(steps)
	}
	return out
}

func rdpOrder(q, sigma float64, alpha int) float64 {
	switch {
	case q == 0:
		return 0
	case sigma == 0:
		return math.Inf(1)
	case q == 1:
		return float64(alpha) / (2 * sigma * sigma)
	}
	return logA(q, sigma, alpha) / float64(alpha-1)
}

// logA computes log E[(p/q)^alpha] for integer alpha by the binomial
// expansion of the mixture density.
func logA(q, sigma float64, alpha int) float64 {
	terms := make([]float64, alpha+1)
	a := float64(alpha)
	for i := 0; i <= alpha; i++ {
		k := float64(i)
		terms[i] = combin.LogGeneralizedBinomial(a, k) +
			k*math.Log(q) + (a-k)*math.Log1p(-q) +
			(k*k-k)/(2*sigma*sigma)
	}
	return floats.LogSumExp(terms)
}

// Epsilon converts RDP values to an epsilon at delta, returning the best
// epsilon and the order that achieved it.
func Epsilon(orders []int, rdp []float64, delta float64) (float64, int) {
	best := math.Inf(1)
	bestOrder := 0
	for i, a := range orders {
		eps := rdp[i] - math.Log(delta)/float64(a-1)
		if eps < best {
			best = eps
			bestOrder = a
		}
	}
	return best, bestOrder
}

package model

import (
	"fmt"
	"math"
	"math/rand"
)

const kernelSize = 3

// SimpleCNN is a single channel conv(3x3) -> ReLU -> maxpool(2x2) -> dense
// classifier over a square input grid.
type SimpleCNN struct {
	numClasses int
	side       int
	filters    int
	convOut    int
	poolOut    int
	kernel     *Param
	bias       *Param
	fc         *dense
}

// NewSimpleCNN constructs the network. inputSize must be a perfect square of
// at least 16.
func NewSimpleCNN(numClasses, inputSize, filters int, seed int64) (*SimpleCNN, error) {
	if numClasses <= 1 {
		return nil, fmt.Errorf("simplecnn: need at least 2 classes (got %d)", numClasses)
	}
	side := int(math.Sqrt(float64(inputSize)))
	if side*side != inputSize || side < 4 {
		return nil, fmt.Errorf("simplecnn: input size %d is not a square grid of side >= 4", inputSize)
	}
	if filters <= 0 {
		return nil, fmt.Errorf("simplecnn: filters must be > 0 (got %d)", filters)
	}
	rng := rand.New(rand.NewSource(seed))
	convOut := side - kernelSize + 1
	poolOut := convOut / 2
	kernel := NewParam("conv.weight", filters, kernelSize, kernelSize)
	bias := NewParam("conv.bias", filters)
	bound := 1 / math.Sqrt(kernelSize*kernelSize)
	uniform(rng, kernel.Data, bound)
	uniform(rng, bias.Data, bound)
	return &SimpleCNN{
		numClasses: numClasses,
		side:       side,
		filters:    filters,
		convOut:    convOut,
		poolOut:    poolOut,
		kernel:     kernel,
		bias:       bias,
		fc:         newDense("fc", filters*poolOut*poolOut, numClasses, rng),
	}, nil
}

// Forward implements Model.
func (m *SimpleCNN) Forward(input []float64) ([]float64, Backward) {
	co, po := m.convOut, m.poolOut
	act := make([]float64, m.filters*co*co)
	for f := 0; f < m.filters; f++ {
		w := m.kernel.Data[f*kernelSize*kernelSize : (f+1)*kernelSize*kernelSize]
		for y := 0; y < co; y++ {
			for x := 0; x < co; x++ {
				sum := m.bias.Data[f]
				for ky := 0; ky < kernelSize; ky++ {
					row := (y+ky)*m.side + x
					for kx := 0; kx < kernelSize; kx++ {
						sum += w[ky*kernelSize+kx] * input[row+kx]
					}
				}
				if sum > 0 {
					act[(f*co+y)*co+x] = sum
				}
			}
		}
	}

	pooled := make([]float64, m.filters*po*po)
	winners := make([]int, len(pooled))
	for f := 0; f < m.filters; f++ {
		for py := 0; py < po; py++ {
			for px := 0; px < po; px++ {
				best := (f*co+2*py)*co + 2*px
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						idx := (f*co+2*py+dy)*co + 2*px + dx
						if act[idx] > act[best] {
							best = idx
						}
					}
				}
				out := (f*po+py)*po + px
				pooled[out] = act[best]
				winners[out] = best
			}
		}
	}

	logits := m.fc.forward(pooled)
	return logits, func(dLogits []float64) {
		dPooled := m.fc.backward(pooled, dLogits)
		dAct := make([]float64, len(act))
		for i, g := range dPooled {
			if src := winners[i]; act[src] > 0 {
				dAct[src] += g
			}
		}
		for f := 0; f < m.filters; f++ {
			gw := m.kernel.Grad[f*kernelSize*kernelSize : (f+1)*kernelSize*kernelSize]
			for y := 0; y < co; y++ {
				for x := 0; x < co; x++ {
					g := dAct[(f*co+y)*co+x]
					if g == 0 {
						continue
					}
					m.bias.Grad[f] += g
					for ky := 0; ky < kernelSize; ky++ {
						row := (y+ky)*m.side + x
						for kx := 0; kx < kernelSize; kx++ {
							gw[ky*kernelSize+kx] += g * input[row+kx]
						}
					}
				}
			}
		}
	}
}

// Params implements Model.
func (m *SimpleCNN) Params() []*Param {
	return append([]*Param{m.kernel, m.bias}, m.fc.params()...)
}

// Classes implements Model.
func (m *SimpleCNN) Classes() int {
	return m.numClasses
}

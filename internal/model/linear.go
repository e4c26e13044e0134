package model

import (
	"fmt"
	"math/rand"
)

// Linear is a softmax regression classifier: logits = Wx + b.
type Linear struct {
	numClasses int
	inputSize  int
	fc         *dense
}

// NewLinear constructs the model with random initialization.
func NewLinear(numClasses, inputSize int, seed int64) (*Linear, error) {
	if numClasses <= 1 {
		return nil, fmt.Errorf("linear: need at least 2 classes (got %d)", numClasses)
	}
	if inputSize <= 0 {
		return nil, fmt.Errorf("linear: input size must be > 0 (got %d)", inputSize)
	}
	rng := rand.New(rand.NewSource(seed))
	return &Linear{
		numClasses: numClasses,
		inputSize:  inputSize,
		fc:         newDense("fc", inputSize, numClasses, rng),
	}, nil
}

// Forward implements Model.
func (m *Linear) Forward(input []float64) ([]float64, Backward) {
	logits := m.fc.forward(input)
	return logits, func(dLogits []float64) {
		m.fc.backward(input, dLogits)
	}
}

// Params implements Model.
func (m *Linear) Params() []*Param {
	return m.fc.params()
}

// Classes implements Model.
func (m *Linear) Classes() int {
	return m.numClasses
}

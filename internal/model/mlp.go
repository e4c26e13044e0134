package model

import (
	"fmt"
	"math/rand"
)

// MLP is a one hidden layer ReLU network.
type MLP struct {
	numClasses int
	fc1, fc2   *dense
}

// NewMLP constructs the network with hidden units in its hidden layer.
func NewMLP(numClasses, inputSize, hidden int, seed int64) (*MLP, error) {
	if numClasses <= 1 {
		return nil, fmt.Errorf("mlp: need at least 2 classes (got %d)", numClasses)
	}
	if inputSize <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("mlp: input size and hidden must be > 0 (got %d, %d)", inputSize, hidden)
	}
	rng := rand.New(rand.NewSource(seed))
	return &MLP{
		numClasses: numClasses,
		fc1:        newDense("fc1", inputSize, hidden, rng),
		fc2:        newDense("fc2", hidden, numClasses, rng),
	}, nil
}

// Forward implements Model.
func (m *MLP) Forward(input []float64) ([]float64, Backward) {
	pre := m.fc1.forward(input)
	act := relu(pre)
	logits := m.fc2.forward(act)
	return logits, func(dLogits []float64) {
		dAct := m.fc2.backward(act, dLogits)
		m.fc1.backward(input, reluBackward(pre, dAct))
	}
}

// Params implements Model.
func (m *MLP) Params() []*Param {
	return append(m.fc1.params(), m.fc2.params()...)
}

// Classes implements Model.
func (m *MLP) Classes() int {
	return m.numClasses
}

package model

import (
	"errors"
	"fmt"
)

// Batch represents a minibatch of features and labels. IDs is optional and,
// when present, indexes per-sample auxiliary data such as a subgroup.
type Batch struct {
	Inputs [][]float64
	Labels []int
	IDs    []int
}

// Len returns the number of examples in the batch.
func (b Batch) Len() int {
	return len(b.Inputs)
}

// Validate checks that inputs, labels and ids line up.
func (b Batch) Validate() error {
	if len(b.Inputs) != len(b.Labels) {
		return fmt.Errorf("batch: %d inputs but %d labels", len(b.Inputs), len(b.Labels))
	}
	if b.IDs != nil && len(b.IDs) != len(b.Labels) {
		return fmt.Errorf("batch: %d ids but %d labels", len(b.IDs), len(b.Labels))
	}
	return nil
}

// Backward accumulates the gradient of one example's loss, given the
// gradient with respect to its logits, into the parameter gradient slots.
// It may be called more than once; each call adds.
type Backward func(dLogits []float64)

// Model maps an input vector to class logits.
type Model interface {
	// Forward evaluates the model on one example and returns the logits
	// together with the closure that backpropagates through this evaluation.
	Forward(input []float64) ([]float64, Backward)
	// Params returns the trainable parameters in a stable order.
	Params() []*Param
	// Classes is the number of output logits.
	Classes() int
}

// ErrUnknownModel is returned for selectors missing from the registry.
var ErrUnknownModel = errors.New("model: unknown architecture")

// Param is a named trainable tensor with its gradient slot.
type Param struct {
	Name  string
	Shape []int
	Data  []float64
	Grad  []float64
}

// NewParam allocates a zeroed parameter with the given shape.
func NewParam(name string, shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, n),
		Grad:  make([]float64, n),
	}
}

// Len returns the number of scalar elements.
func (p *Param) Len() int {
	return len(p.Data)
}

// ZeroGrad clears the gradient slot.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// ZeroGrad clears the gradient slot of every parameter.
func ZeroGrad(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// CountParams returns the total number of trainable scalars.
func CountParams(m Model) int {
	total := 0
	for _, p := range m.Params() {
		total += p.Len()
	}
	return total
}

// Argmax returns the index of the largest logit, the first on ties.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

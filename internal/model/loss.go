package model

import (
	"fmt"
	"math"
)

// CrossEntropy returns the softmax cross-entropy of logits against label and
// the gradient of that loss with respect to the logits.
func CrossEntropy(logits []float64, label int) (float64, []float64) {
	probs := softmax(logits)
	loss := -math.Log(math.Max(probs[label], 1e-300))
	probs[label] -= 1
	return loss, probs
}

// Losses evaluates the batch and returns unreduced per-example losses, the
// logit gradients and the backward closures. The closures keep their
// activations alive until the caller drops the returned slices.
func Losses(m Model, batch Batch, workers int) ([]float64, [][]float64, []Backward, error) {
	if err := batch.Validate(); err != nil {
		return nil, nil, nil, err
	}
	logits, backs := ForwardBatch(m, batch.Inputs, workers)
	losses := make([]float64, len(logits))
	grads := make([][]float64, len(logits))
	for i, l := range logits {
		label := batch.Labels[i]
		if label < 0 || label >= m.Classes() {
			return nil, nil, nil, fmt.Errorf("model: label %d out of range [0,%d)", label, m.Classes())
		}
		losses[i], grads[i] = CrossEntropy(l, label)
	}
	return losses, grads, backs, nil
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}

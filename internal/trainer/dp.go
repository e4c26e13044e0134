package trainer

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"

	"dpfair/internal/dataset"
	"dpfair/internal/metrics"
	"dpfair/internal/model"
	"dpfair/internal/optim"
)

// ErrMicrobatch is returned when a batch does not split evenly into
// microbatches.
var ErrMicrobatch = errors.New("trainer: batch does not divide into microbatches")

const cosineEps = 1e-8

// DP takes one DP-SGD step per batch: every microbatch gradient is clipped
// to S, the clipped gradients are summed, Gaussian noise with standard
// deviation Sigma is added and the sum is divided by the microbatch count.
type DP struct {
	Model           model.Model
	Optimizer       optim.Optimizer
	Sink            metrics.Sink
	Logger          *log.Logger
	LogEvery        int
	Workers         int
	NumMicrobatches int
	S               float64
	Sigma           float64
	// RecordClipped files the norm measured after clipping.
	RecordClipped bool
	// TrackCosine compares each class's mean raw gradient with the final
	// gradient of every batch.
	TrackCosine bool
	// Data names norm buckets; nil files norms by label.
	Data  *dataset.Dataset
	Noise *rand.Rand

	norms map[string][]float64
}

// StepStats describes one DP step.
type StepStats struct {
	Loss float64
	// Keys and Norms hold the bucket and recorded norm of every microbatch
	// in order.
	Keys  []string
	Norms []float64
	// Cosine and Distance are set per class when TrackCosine is on.
	Cosine   map[int]float64
	Distance map[int]float64
}

// Gradients leaves the noised, clipped average gradient of batch in the
// parameter gradient slots without stepping the optimizer.
func (t *DP) Gradients(batch model.Batch) (StepStats, error) {
	n, m := batch.Len(), t.NumMicrobatches
	if m <= 0 || n == 0 || n%m != 0 {
		return StepStats{}, fmt.Errorf("%w: %d examples, %d microbatches", ErrMicrobatch, n, m)
	}
	losses, dLogits, backs, err := model.Losses(t.Model, batch, t.Workers)
	if err != nil {
		return StepStats{}, err
	}
	stats := StepStats{Loss: floats.Sum(losses) / float64(n)}

	params := t.Model.Params()
	acc := make([][]float64, len(params))
	for i, p := range params {
		acc[i] = make([]float64, p.Len())
	}
	var sums map[int][]float64
	var counts map[int]int
	if t.TrackCosine {
		sums = make(map[int][]float64)
		counts = make(map[int]int)
	}

	size := n / m
	model.ZeroGrad(params)
	for j := 0; j < m; j++ {
		first := j * size
		for k := first; k < first+size; k++ {
			floats.Scale(1/float64(size), dLogits[k])
			backs[k](dLogits[k])
		}
		label := batch.Labels[first]
		if t.TrackCosine {
			vec := model.GradVector(params)
			if sum, ok := sums[label]; ok {
				floats.Add(sum, vec)
			} else {
				sums[label] = vec
			}
			counts[label]++
		}

		norm := model.ClipGradNorm(params, t.S)
		if t.RecordClipped {
			norm = model.GradNorm(params)
		}
		group := -1
		if batch.IDs != nil {
			group = batch.IDs[first]
		}
		stats.Keys = append(stats.Keys, t.normKey(label, group))
		stats.Norms = append(stats.Norms, norm)

		for i, p := range params {
			floats.Add(acc[i], p.Grad)
		}
		model.ZeroGrad(params)
	}

	for i, p := range params {
		if t.Sigma > 0 {
			for e := range acc[i] {
				acc[i][e] += t.Noise.NormFloat64() * t.Sigma
			}
		}
		for e, v := range acc[i] {
			p.Grad[e] = v / float64(m)
		}
	}

	if t.TrackCosine {
		total := model.GradVector(params)
		stats.Cosine = make(map[int]float64, len(sums))
		stats.Distance = make(map[int]float64, len(sums))
		for label, sum := range sums {
			floats.Scale(1/float64(counts[label]), sum)
			stats.Cosine[label] = cosine(total, sum)
			stats.Distance[label] = floats.Distance(total, sum, 2)
		}
	}
	return stats, nil
}

func (t *DP) normKey(label, group int) string {
	if t.Data == nil {
		return strconv.Itoa(label)
	}
	return t.Data.NormKey(label, group)
}

func cosine(a, b []float64) float64 {
	denom := floats.Norm(a, 2) * floats.Norm(b, 2)
	return floats.Dot(a, b) / math.Max(denom, cosineEps)
}

// TrainEpoch implements Trainer.
func (t *DP) TrainEpoch(epoch int, loader *dataset.Loader) error {
	batches := loader.Batches()
	reporter := newLossReporter(t.Sink, t.Logger, t.LogEvery)
	t.norms = make(map[string][]float64)
	for i, batch := range batches {
		start := time.Now()
		stats, err := t.Gradients(batch)
		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
		}
		for k, key := range stats.Keys {
			t.norms[key] = append(t.norms[key], stats.Norms[k])
		}
		if t.TrackCosine {
			if err := t.emitCosine(i+epoch*len(batches), stats); err != nil {
				return err
			}
		}
		t.Optimizer.Step()
		reporter.record(batch.Len(), 0, time.Since(start), stats.Loss)
		if err := reporter.maybeEmit(epoch, i, len(batches)); err != nil {
			return err
		}
	}
	return t.emitNorms(epoch)
}

func (t *DP) emitCosine(step int, stats StepStats) error {
	labels := make([]int, 0, len(stats.Cosine))
	for label := range stats.Cosine {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	for _, label := range labels {
		if err := t.Sink.Scalar(step, fmt.Sprintf("cosine/%d", label), stats.Cosine[label]); err != nil {
			return err
		}
		if err := t.Sink.Scalar(step, fmt.Sprintf("distance/%d", label), stats.Distance[label]); err != nil {
			return err
		}
	}
	return nil
}

// emitNorms reports the mean recorded norm of every bucket seen this epoch.
func (t *DP) emitNorms(epoch int) error {
	keys := make([]string, 0, len(t.norms))
	for key := range t.norms {
		keys = append(keys, key)
	}
	sortKeys(keys)
	subgroups := t.Data != nil && t.Data.HasSubgroups()
	for _, key := range keys {
		mean := floats.Sum(t.norms[key]) / float64(len(t.norms[key]))
		t.Logger.Printf("epoch=%d norm_key=%s mean_norm=%.6f count=%d", epoch, key, mean, len(t.norms[key]))
		tag := "norms/class_" + key
		if subgroups {
			tag = "dif_norms_class/" + key
		}
		if err := t.Sink.Scalar(epoch, tag, mean); err != nil {
			return err
		}
	}
	return nil
}

// Norms returns the norms recorded during the last epoch by bucket.
func (t *DP) Norms() map[string][]float64 {
	return t.norms
}

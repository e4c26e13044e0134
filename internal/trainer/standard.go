package trainer

import (
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/floats"

	"dpfair/internal/dataset"
	"dpfair/internal/metrics"
	"dpfair/internal/model"
	"dpfair/internal/optim"
)

// Standard takes one averaged-gradient step per batch.
type Standard struct {
	Model     model.Model
	Optimizer optim.Optimizer
	Sink      metrics.Sink
	Logger    *log.Logger
	LogEvery  int
	// KeyToDrop examples are blurred with CSigma before the forward pass.
	KeyToDrop int
	CSigma    float64
	Workers   int
}

// Step trains on one batch and returns its mean loss.
func (t *Standard) Step(batch model.Batch) (float64, error) {
	t.Optimizer.ZeroGrad()
	batch = dataset.BlurLabel(batch, t.KeyToDrop, t.CSigma)
	losses, dLogits, backs, err := model.Losses(t.Model, batch, t.Workers)
	if err != nil {
		return 0, err
	}
	scale := 1 / float64(len(losses))
	for i, back := range backs {
		floats.Scale(scale, dLogits[i])
		back(dLogits[i])
	}
	t.Optimizer.Step()
	return floats.Sum(losses) * scale, nil
}

// TrainEpoch implements Trainer.
func (t *Standard) TrainEpoch(epoch int, loader *dataset.Loader) error {
	batches := loader.Batches()
	reporter := newLossReporter(t.Sink, t.Logger, t.LogEvery)
	for i, batch := range batches {
		start := time.Now()
		loss, err := t.Step(batch)
		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
		}
		reporter.record(batch.Len(), 0, time.Since(start), loss)
		if err := reporter.maybeEmit(epoch, i, len(batches)); err != nil {
			return err
		}
	}
	return nil
}

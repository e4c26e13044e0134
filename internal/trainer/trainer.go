// Package trainer runs epochs of standard or differentially private
// training and drives evaluation and checkpointing around them.
package trainer

import (
	"log"
	"sort"
	"strconv"
	"time"

	"dpfair/internal/dataset"
	"dpfair/internal/metrics"
)

const trainLossTag = "Train Loss"

// Trainer runs one pass over a loader.
type Trainer interface {
	TrainEpoch(epoch int, loader *dataset.Loader) error
}

// lossReporter emits the running loss every logEvery batches and resets it.
type lossReporter struct {
	sink     metrics.Sink
	logger   *log.Logger
	logEvery int
	window   metrics.Window
}

func (r *lossReporter) record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	r.window.Record(batchSize, dataTime, computeTime, loss)
}

// maybeEmit reports the loss accumulated since the last emission when batch
// i is a reporting batch. The first batch never reports.
func (r *lossReporter) maybeEmit(epoch, i, batches int) error {
	if i == 0 || i%r.logEvery != 0 {
		return nil
	}
	snap := r.window.Snapshot()
	step := epoch*batches + i
	r.logger.Printf("epoch=%d batch=%d step=%d running_loss=%.4f mean_loss=%.4f examples_per_sec=%.1f data_ms=%.2f compute_ms=%.2f",
		epoch,
		i,
		step,
		snap.RunningLoss,
		snap.MeanLoss,
		snap.ExamplesPerSec,
		snap.AvgDataMS,
		snap.AvgComputeMS,
	)
	return r.sink.Scalar(step, trainLossTag, snap.RunningLoss)
}

func newLossReporter(sink metrics.Sink, logger *log.Logger, logEvery int) *lossReporter {
	if logEvery <= 0 {
		logEvery = 20
	}
	return &lossReporter{sink: sink, logger: logger, logEvery: logEvery}
}

// sortKeys orders keys numerically when every key is an integer and
// lexically otherwise.
func sortKeys(keys []string) {
	numeric := true
	for _, k := range keys {
		if _, err := strconv.Atoi(k); err != nil {
			numeric = false
			break
		}
	}
	if !numeric {
		sort.Strings(keys)
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
}

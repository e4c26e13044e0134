package metrics

import "time"

// Window accumulates the loss and timing of the batches between two
// emissions of the running loss. The zero value is ready to use.
type Window struct {
	examples int
	batches  int
	data     time.Duration
	compute  time.Duration
	lossSum  float64
	lastLoss float64
}

// Record adds one batch to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	w.examples += batchSize
	w.batches++
	w.data += dataTime
	w.compute += computeTime
	w.lossSum += loss
	w.lastLoss = loss
}

// Snapshot returns the aggregate of the window and starts a new one.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{
		Batches:     w.batches,
		RunningLoss: w.lossSum,
		LastLoss:    w.lastLoss,
	}
	if total := w.data + w.compute; total > 0 {
		snap.ExamplesPerSec = float64(w.examples) / total.Seconds()
	}
	if w.batches > 0 {
		n := float64(w.batches)
		snap.MeanLoss = w.lossSum / n
		snap.AvgDataMS = w.data.Seconds() * 1000 / n
		snap.AvgComputeMS = w.compute.Seconds() * 1000 / n
	}
	*w = Window{}
	return snap
}

// Snapshot is one emission of a Window. RunningLoss is the sum of the batch
// losses recorded since the previous snapshot.
type Snapshot struct {
	Batches        int
	ExamplesPerSec float64
	AvgDataMS      float64
	AvgComputeMS   float64
	RunningLoss    float64
	MeanLoss       float64
	LastLoss       float64
}

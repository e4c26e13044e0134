package metrics

import (
	"math"
	"testing"
	"time"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 10*time.Millisecond, 1.2)
	w.Record(64, 10*time.Millisecond, 20*time.Millisecond, 0.8)
	snap := w.Snapshot()
	if math.Abs(snap.ExamplesPerSec-2133.3333) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.ExamplesPerSec)
	}
	if snap.Batches != 2 || snap.LastLoss != 0.8 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if math.Abs(snap.RunningLoss-2.0) > 1e-12 || math.Abs(snap.MeanLoss-1.0) > 1e-12 {
		t.Fatalf("expected running loss 2.0 and mean 1.0, got %+v", snap)
	}
	if math.Abs(snap.AvgComputeMS-15) > 1e-9 {
		t.Fatalf("unexpected compute time %.4f", snap.AvgComputeMS)
	}

	if next := w.Snapshot(); next != (Snapshot{}) {
		t.Fatalf("window was not reset: %+v", next)
	}
}

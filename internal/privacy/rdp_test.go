package privacy

import (
	"math"
	"testing"
)

func TestFullBatchMatchesGaussianMechanism(t *testing.T) {
	rdp := RDP(1, 2, 3, []int{2, 10})
	for i, a := range []float64{2, 10} {
		want := 3 * a / (2 * 4)
		if math.Abs(rdp[i]-want) > 1e-12 {
			t.Fatalf("order %v: got %f want %f", a, rdp[i], want)
		}
	}
}

func TestSubsamplingAmplifies(t *testing.T) {
	full := RDP(1, 1.1, 1, DefaultOrders)
	sub := RDP(0.01, 1.1, 1, DefaultOrders)
	for i := range full {
		if sub[i] > full[i] {
			t.Fatalf("order %d: subsampled rdp %g exceeds full %g", DefaultOrders[i], sub[i], full[i])
		}
	}
}

func TestEpsilonGrowsWithEpochs(t *testing.T) {
	base := Params{BatchSize: 64, DatasetSize: 10000, Epochs: 1, NoiseMultiplier: 1.1, Delta: 1e-5}
	one, err := Compute(base)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	base.Epochs = 10
	ten, err := Compute(base)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !(ten.Epsilon > one.Epsilon) {
		t.Fatalf("expected epsilon to grow: 1 epoch=%f 10 epochs=%f", one.Epsilon, ten.Epsilon)
	}
	if one.Steps != 157 {
		t.Fatalf("expected 157 steps per epoch, got %d", one.Steps)
	}
	if math.IsInf(ten.Epsilon, 0) || ten.Epsilon <= 0 {
		t.Fatalf("unexpected epsilon %f", ten.Epsilon)
	}
}

func TestZeroNoiseGivesNoGuarantee(t *testing.T) {
	r, err := Compute(Params{BatchSize: 8, DatasetSize: 80, Epochs: 1, NoiseMultiplier: 0, Delta: 1e-5})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !math.IsInf(r.Epsilon, 1) {
		t.Fatalf("expected infinite epsilon, got %f", r.Epsilon)
	}
}

func TestComputeValidates(t *testing.T) {
	if _, err := Compute(Params{BatchSize: 1, DatasetSize: 1, Epochs: 1, NoiseMultiplier: 1, Delta: 0}); err == nil {
		t.Fatal("expected delta validation error")
	}
}

package trainer

import (
	"errors"
	"io"
	"log"
	"math"
	"math/rand"
	"testing"

	"dpfair/internal/dataset"
	"dpfair/internal/metrics"
	"dpfair/internal/model"
	"dpfair/internal/optim"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func fourExamples() model.Batch {
	return model.Batch{
		Inputs: [][]float64{
			{3, -1, 2},
			{-2, 4, 1},
			{0.5, 0.5, -3},
			{5, 5, 5},
		},
		Labels: []int{0, 1, 2, 1},
	}
}

func newDP(t *testing.T, m model.Model, s, sigma float64, microbatches int) *DP {
	t.Helper()
	return &DP{
		Model:           m,
		Optimizer:       optim.NewSGD(m.Params(), 0.1, 0, 0),
		Sink:            metrics.NewMemory(),
		Logger:          quietLogger(),
		LogEvery:        20,
		NumMicrobatches: microbatches,
		S:               s,
		Sigma:           sigma,
	}
}

func TestDPClippedNormsWithinBound(t *testing.T) {
	m, _ := model.NewLinear(3, 3, 1)
	tr := newDP(t, m, 0.5, 0, 4)
	tr.RecordClipped = true
	stats, err := tr.Gradients(fourExamples())
	if err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	if len(stats.Norms) != 4 {
		t.Fatalf("expected 4 recorded norms, got %d", len(stats.Norms))
	}
	for i, n := range stats.Norms {
		if n > 0.5+1e-9 {
			t.Fatalf("clipped norm %d = %f exceeds bound", i, n)
		}
	}

	tr.RecordClipped = false
	stats, err = tr.Gradients(fourExamples())
	if err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	clipped := false
	for _, n := range stats.Norms {
		if n > 0.5 {
			clipped = true
		}
	}
	if !clipped {
		t.Fatal("expected at least one pre-clip norm above the bound")
	}
}

func TestDPZeroClipBoundZeroesGradients(t *testing.T) {
	m, _ := model.NewMLP(3, 3, 4, 2)
	tr := newDP(t, m, 0, 0, 4)
	if _, err := tr.Gradients(fourExamples()); err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	for _, p := range m.Params() {
		for i, g := range p.Grad {
			if g != 0 {
				t.Fatalf("%s grad[%d] = %g, want 0", p.Name, i, g)
			}
		}
	}
}

// With z=0 and one example per microbatch the step must equal the average of
// the individually clipped per-example gradients.
func TestDPMatchesAverageOfClippedGradients(t *testing.T) {
	m, _ := model.NewLinear(3, 3, 3)
	batch := fourExamples()
	params := m.Params()

	want := make([][]float64, len(params))
	for i, p := range params {
		want[i] = make([]float64, p.Len())
	}
	for k, input := range batch.Inputs {
		model.ZeroGrad(params)
		logits, back := m.Forward(input)
		_, d := model.CrossEntropy(logits, batch.Labels[k])
		back(d)
		model.ClipGradNorm(params, 1)
		for i, p := range params {
			for e, g := range p.Grad {
				want[i][e] += g
			}
		}
	}
	for i := range want {
		for e := range want[i] {
			want[i][e] /= 4
		}
	}

	tr := newDP(t, m, 1, 0, 4)
	if _, err := tr.Gradients(batch); err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	for i, p := range params {
		for e, g := range p.Grad {
			if math.Abs(g-want[i][e]) > 1e-12 {
				t.Fatalf("%s grad[%d] = %g, want %g", p.Name, e, g, want[i][e])
			}
		}
	}
}

func TestDPNoiseAddedBeforeDivision(t *testing.T) {
	m, _ := model.NewLinear(3, 3, 4)
	batch := fourExamples()
	params := m.Params()

	clean := newDP(t, m, 1, 0, 2)
	if _, err := clean.Gradients(batch); err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	base := make([][]float64, len(params))
	for i, p := range params {
		base[i] = append([]float64(nil), p.Grad...)
	}

	const sigma = 3.0
	noisy := newDP(t, m, 1, sigma, 2)
	noisy.Noise = rand.New(rand.NewSource(7))
	if _, err := noisy.Gradients(batch); err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	replay := rand.New(rand.NewSource(7))
	for i, p := range params {
		for e, g := range p.Grad {
			want := base[i][e] + replay.NormFloat64()*sigma/2
			if math.Abs(g-want) > 1e-9 {
				t.Fatalf("%s grad[%d] = %g, want %g", p.Name, e, g, want)
			}
		}
	}
}

func TestDPMicrobatchGrouping(t *testing.T) {
	m, _ := model.NewLinear(3, 3, 5)
	tr := newDP(t, m, 1, 0, 2)
	stats, err := tr.Gradients(fourExamples())
	if err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	if len(stats.Keys) != 2 || stats.Keys[0] != "0" || stats.Keys[1] != "2" {
		t.Fatalf("expected one key per microbatch from its first label, got %v", stats.Keys)
	}

	tr.NumMicrobatches = 3
	if _, err := tr.Gradients(fourExamples()); !errors.Is(err, ErrMicrobatch) {
		t.Fatalf("expected ErrMicrobatch, got %v", err)
	}
}

func TestDPCosineAgainstFinalGradient(t *testing.T) {
	m, _ := model.NewLinear(2, 3, 6)
	batch := model.Batch{
		Inputs: [][]float64{{1, 0, 2}, {0, 1, -1}},
		Labels: []int{0, 0},
	}
	tr := newDP(t, m, 1e6, 0, 2)
	tr.TrackCosine = true
	stats, err := tr.Gradients(batch)
	if err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	if math.Abs(stats.Cosine[0]-1) > 1e-9 || stats.Distance[0] > 1e-9 {
		t.Fatalf("unclipped single class must match the final gradient: cosine=%g distance=%g", stats.Cosine[0], stats.Distance[0])
	}

	sink := tr.Sink.(*metrics.Memory)
	loader := dataset.NewLoader([]dataset.Example{
		{Features: batch.Inputs[0], Label: 0, Group: -1},
		{Features: batch.Inputs[1], Label: 1, Group: -1},
	}, dataset.LoaderOptions{BatchSize: 2})
	if err := tr.TrainEpoch(3, loader); err != nil {
		t.Fatalf("TrainEpoch: %v", err)
	}
	for _, tag := range []string{"cosine/0", "cosine/1", "distance/0", "distance/1"} {
		got := sink.Series(tag)
		if len(got) != 1 || got[0].Step != 3 {
			t.Fatalf("%s: unexpected series %+v", tag, got)
		}
	}
	for _, tag := range []string{"norms/class_0", "norms/class_1"} {
		got := sink.Series(tag)
		if len(got) != 1 || got[0].Step != 3 || got[0].Value <= 0 {
			t.Fatalf("%s: unexpected series %+v", tag, got)
		}
	}
}

func TestDPTrackingOffEmitsNoCosine(t *testing.T) {
	m, _ := model.NewLinear(3, 3, 8)
	tr := newDP(t, m, 1, 0, 4)
	stats, err := tr.Gradients(fourExamples())
	if err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	if stats.Cosine != nil || stats.Distance != nil {
		t.Fatalf("cosine tracking must be skipped when disabled: %+v", stats)
	}
}

func TestDPSubgroupNormKeys(t *testing.T) {
	m, _ := model.NewLinear(3, 3, 9)
	tr := newDP(t, m, 1, 0, 4)
	tr.Data = &dataset.Dataset{Groups: []string{"major", "minor"}}
	batch := fourExamples()
	batch.IDs = []int{0, 1, 1, 0}
	stats, err := tr.Gradients(batch)
	if err != nil {
		t.Fatalf("Gradients: %v", err)
	}
	want := []string{"0_major", "1_minor", "2_minor", "1_major"}
	for i, k := range want {
		if stats.Keys[i] != k {
			t.Fatalf("key %d = %q, want %q", i, stats.Keys[i], k)
		}
	}
}

func TestSortKeys(t *testing.T) {
	keys := []string{"10", "2", "1"}
	sortKeys(keys)
	if keys[0] != "1" || keys[1] != "2" || keys[2] != "10" {
		t.Fatalf("numeric keys sorted as %v", keys)
	}
	keys = []string{"1_minor", "0_major", "1_major"}
	sortKeys(keys)
	if keys[0] != "0_major" || keys[1] != "1_major" || keys[2] != "1_minor" {
		t.Fatalf("composite keys sorted as %v", keys)
	}
}

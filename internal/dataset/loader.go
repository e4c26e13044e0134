package dataset

import (
	"math/rand"

	"dpfair/internal/model"
)

// LoaderOptions configures batching.
type LoaderOptions struct {
	BatchSize int
	Shuffle   bool
	// DropLast discards a trailing partial batch.
	DropLast bool
	// WithIDs fills Batch.IDs with each example's group.
	WithIDs bool
	Seed    int64
}

// Loader slices a split into batches, reshuffling at every epoch.
type Loader struct {
	examples []Example
	opts     LoaderOptions
	rng      *rand.Rand
}

// NewLoader creates a loader over examples. A non-positive batch size is
// treated as 1.
func NewLoader(examples []Example, opts LoaderOptions) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	return &Loader{
		examples: examples,
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
}

// Size returns the number of examples.
func (l *Loader) Size() int {
	return len(l.examples)
}

// Len returns the number of batches in one epoch.
func (l *Loader) Len() int {
	n := len(l.examples) / l.opts.BatchSize
	if !l.opts.DropLast && len(l.examples)%l.opts.BatchSize != 0 {
		n++
	}
	return n
}

// Batches returns one epoch of batches. Feature slices are shared with the
// loader and must not be modified.
func (l *Loader) Batches() []model.Batch {
	order := make([]int, len(l.examples))
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	batches := make([]model.Batch, 0, l.Len())
	for start := 0; start < len(order); start += l.opts.BatchSize {
		end := start + l.opts.BatchSize
		if end > len(order) {
			if l.opts.DropLast {
				break
			}
			end = len(order)
		}
		batch := model.Batch{
			Inputs: make([][]float64, 0, end-start),
			Labels: make([]int, 0, end-start),
		}
		if l.opts.WithIDs {
			batch.IDs = make([]int, 0, end-start)
		}
		for _, idx := range order[start:end] {
			ex := l.examples[idx]
			batch.Inputs = append(batch.Inputs, ex.Features)
			batch.Labels = append(batch.Labels, ex.Label)
			if l.opts.WithIDs {
				batch.IDs = append(batch.IDs, ex.Group)
			}
		}
		batches = append(batches, batch)
	}
	return batches
}

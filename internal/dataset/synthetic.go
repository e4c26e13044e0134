package dataset

import (
	"context"
	"fmt"
	"math/rand"
)

const (
	defaultSyntheticSize = 1000
	prototypeScale       = 0.3
	minorityShift        = 0.6
)

// syntheticSpace draws class prototypes on the feature grid; examples are a
// prototype plus unit Gaussian noise.
type syntheticSpace struct {
	rng        *rand.Rand
	prototypes [][]float64
	shift      []float64
}

func newSyntheticSpace(classes int, seed int64) *syntheticSpace {
	rng := rand.New(rand.NewSource(seed))
	s := &syntheticSpace{rng: rng, prototypes: make([][]float64, classes)}
	for c := range s.prototypes {
		s.prototypes[c] = gaussianVector(rng, FeatureSize, prototypeScale)
	}
	s.shift = gaussianVector(rng, FeatureSize, minorityShift)
	return s
}

func gaussianVector(rng *rand.Rand, n int, scale float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64() * scale
	}
	return v
}

func (s *syntheticSpace) sample(label int, shifted bool) []float64 {
	out := make([]float64, FeatureSize)
	for i := range out {
		out[i] = s.prototypes[label][i] + s.rng.NormFloat64()
		if shifted {
			out[i] += s.shift[i]
		}
	}
	return out
}

func syntheticShape(opts Options) (classes, train, test int, err error) {
	classes = opts.Classes
	if classes == 0 {
		classes = 10
	}
	if classes < 2 {
		return 0, 0, 0, fmt.Errorf("synthetic: need at least 2 classes (got %d)", classes)
	}
	train = opts.Size
	if train <= 0 {
		train = defaultSyntheticSize
	}
	test = train / 5
	if test < classes {
		test = classes
	}
	return classes, train, test, nil
}

func loadSynthetic(_ context.Context, opts Options) (*Dataset, error) {
	classes, nTrain, nTest, err := syntheticShape(opts)
	if err != nil {
		return nil, err
	}
	space := newSyntheticSpace(classes, opts.Seed)
	draw := func(n int) []Example {
		out := make([]Example, n)
		for i := range out {
			label := i % classes
			out[i] = Example{Features: space.sample(label, false), Label: label, Group: -1}
		}
		space.rng.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	return &Dataset{
		Labels:    labelNames(classes),
		InputSize: FeatureSize,
		Train:     draw(nTrain),
		Test:      draw(nTest),
	}, nil
}

// loadSyntheticSubgroup draws a majority and a minority subgroup; the
// minority is rare in training, balanced in the held-out split, and shifted
// by a common offset.
func loadSyntheticSubgroup(_ context.Context, opts Options) (*Dataset, error) {
	classes, nTrain, nTest, err := syntheticShape(opts)
	if err != nil {
		return nil, err
	}
	groups := []string{"major", "minor"}
	space := newSyntheticSpace(classes, opts.Seed)
	draw := func(n, minorEvery int) []Example {
		out := make([]Example, n)
		for i := range out {
			label := i % classes
			group := 0
			if (i/classes)%minorEvery == 0 {
				group = 1
			}
			out[i] = Example{Features: space.sample(label, group == 1), Label: label, Group: group}
		}
		space.rng.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	ds := &Dataset{
		Labels:    labelNames(classes),
		Groups:    groups,
		InputSize: FeatureSize,
		Train:     draw(nTrain, 10),
		Test:      draw(nTest, 2),
	}
	ds.Subgroups = splitByGroup(ds.Test, groups)
	return ds, nil
}

func splitByGroup(examples []Example, groups []string) map[string][]Example {
	out := make(map[string][]Example, len(groups))
	for _, ex := range examples {
		if ex.Group >= 0 && ex.Group < len(groups) {
			name := groups[ex.Group]
			out[name] = append(out[name], ex)
		}
	}
	return out
}

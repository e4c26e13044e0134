package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

func collectRoots(ctx context.Context, roots []string, opts Options, requireGroup bool) ([]Sample, error) {
	byRoot, err := DiscoverByRoot(roots)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, SamplerOptions{
		Roots:        byRoot,
		Seed:         opts.Seed,
		NumWorkers:   opts.NumWorkers,
		RequireGroup: requireGroup,
	})
}

// splits streams the train and test roots.
func splits(ctx context.Context, opts Options, requireGroup bool) (train, test []Sample, err error) {
	if train, err = collectRoots(ctx, opts.TrainRoots, opts, requireGroup); err != nil {
		return nil, nil, fmt.Errorf("train split: %w", err)
	}
	if test, err = collectRoots(ctx, opts.TestRoots, opts, requireGroup); err != nil {
		return nil, nil, fmt.Errorf("test split: %w", err)
	}
	return train, test, nil
}

func classCount(samples ...[]Sample) (int, error) {
	maxLabel := -1
	for _, split := range samples {
		for _, s := range split {
			if s.Label < 0 {
				return 0, fmt.Errorf("sample %s: negative label %d", s.Key, s.Label)
			}
			if s.Label > maxLabel {
				maxLabel = s.Label
			}
		}
	}
	if maxLabel < 1 {
		return 0, errors.New("need at least 2 classes")
	}
	return maxLabel + 1, nil
}

// decodeImages converts samples to examples, skipping undecodable images.
func decodeImages(samples []Sample, groupIndex map[string]int) ([]Example, int) {
	out := make([]Example, 0, len(samples))
	skipped := 0
	for _, s := range samples {
		features, err := ImageFeatures(s.Image)
		if err != nil {
			skipped++
			continue
		}
		group := -1
		if groupIndex != nil {
			group = groupIndex[s.Group]
		}
		out = append(out, Example{Features: features, Label: s.Label, Group: group})
	}
	return out, skipped
}

func loadImageShards(ctx context.Context, opts Options) (*Dataset, error) {
	trainSamples, testSamples, err := splits(ctx, opts, false)
	if err != nil {
		return nil, err
	}
	classes, err := classCount(trainSamples, testSamples)
	if err != nil {
		return nil, err
	}
	train, skippedTrain := decodeImages(trainSamples, nil)
	test, skippedTest := decodeImages(testSamples, nil)
	return &Dataset{
		Labels:    labelNames(classes),
		InputSize: FeatureSize,
		Train:     train,
		Test:      test,
		Skipped:   skippedTrain + skippedTest,
	}, nil
}

func loadSubgroupShards(ctx context.Context, opts Options) (*Dataset, error) {
	trainSamples, testSamples, err := splits(ctx, opts, true)
	if err != nil {
		return nil, err
	}
	classes, err := classCount(trainSamples, testSamples)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, split := range [][]Sample{trainSamples, testSamples} {
		for _, s := range split {
			seen[s.Group] = true
		}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	index := make(map[string]int, len(groups))
	for i, g := range groups {
		index[g] = i
	}

	train, skippedTrain := decodeImages(trainSamples, index)
	test, skippedTest := decodeImages(testSamples, index)
	return &Dataset{
		Labels:    labelNames(classes),
		Groups:    groups,
		InputSize: FeatureSize,
		Train:     train,
		Test:      test,
		Subgroups: splitByGroup(test, groups),
		Skipped:   skippedTrain + skippedTest,
	}, nil
}

func loadTextShards(ctx context.Context, opts Options) (*Dataset, error) {
	trainSamples, testSamples, err := splits(ctx, opts, false)
	if err != nil {
		return nil, err
	}
	classes, err := classCount(trainSamples, testSamples)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(trainSamples))
	for i, s := range trainSamples {
		texts[i] = s.Text
	}
	vocab := BuildVocabulary(texts)
	encode := func(samples []Sample) []Example {
		out := make([]Example, len(samples))
		for i, s := range samples {
			out[i] = Example{Features: vocab.Encode(s.Text), Label: s.Label, Group: -1}
		}
		return out
	}
	return &Dataset{
		Labels: labelNames(classes),
		Vocab:  vocab.Size(),
		Train:  encode(trainSamples),
		Test:   encode(testSamples),
	}, nil
}

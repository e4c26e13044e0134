package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
)

// ErrUnknownDataset is returned for selectors missing from the registry.
var ErrUnknownDataset = errors.New("dataset: unknown source")

// Example is one labelled input. Group indexes Dataset.Groups and is -1
// when the source has no subgroups.
type Example struct {
	Features []float64
	Label    int
	Group    int
}

// Dataset holds the train and held-out splits of one source.
type Dataset struct {
	Name      string
	Labels    []string
	Groups    []string
	InputSize int
	Vocab     int
	Train     []Example
	Test      []Example
	// Subgroups holds the held-out examples of each group, keyed by name.
	Subgroups map[string][]Example
	// Skipped counts samples that could not be decoded.
	Skipped int
}

// HasSubgroups reports whether examples carry a subgroup.
func (d *Dataset) HasSubgroups() bool {
	return len(d.Groups) > 0
}

// NormKey names the bucket an example's gradient statistics are filed
// under: the label, or "<label>_<group>" for subgroup sources.
func (d *Dataset) NormKey(label, group int) string {
	if d.HasSubgroups() && group >= 0 && group < len(d.Groups) {
		return fmt.Sprintf("%d_%s", label, d.Groups[group])
	}
	return strconv.Itoa(label)
}

// Options carries the knobs data sources understand.
type Options struct {
	TrainRoots []string
	TestRoots  []string
	NumWorkers int
	Seed       int64
	Classes    int
	// Size caps the training split; synthetic sources generate this many.
	Size int
	// KeyToDrop is the label thinned out by Entries and EntriesTest.
	KeyToDrop   int
	Entries     int
	EntriesTest int
}

// Source builds a dataset.
type Source func(ctx context.Context, opts Options) (*Dataset, error)

var sources = map[string]Source{
	"synthetic":          loadSynthetic,
	"synthetic_subgroup": loadSyntheticSubgroup,
	"shards":             loadImageShards,
	"subgroup":           loadSubgroupShards,
	"text":               loadTextShards,
}

// Registered reports whether name selects a known source.
func Registered(name string) bool {
	_, ok := sources[name]
	return ok
}

// Names lists the registered sources.
func Names() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load builds the source registered under name and applies the size and
// unbalancing knobs to it.
func Load(ctx context.Context, name string, opts Options) (*Dataset, error) {
	source, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownDataset, name, Names())
	}
	ds, err := source(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	ds.Name = name
	if opts.Size > 0 && len(ds.Train) > opts.Size {
		rng := rand.New(rand.NewSource(opts.Seed))
		rng.Shuffle(len(ds.Train), func(i, j int) { ds.Train[i], ds.Train[j] = ds.Train[j], ds.Train[i] })
		ds.Train = ds.Train[:opts.Size]
	}
	if opts.Entries > 0 {
		ds.Train = LimitClass(ds.Train, opts.KeyToDrop, opts.Entries)
	}
	if opts.EntriesTest > 0 {
		ds.Test = LimitClass(ds.Test, opts.KeyToDrop, opts.EntriesTest)
		if ds.HasSubgroups() {
			ds.Subgroups = splitByGroup(ds.Test, ds.Groups)
		}
	}
	if len(ds.Train) == 0 {
		return nil, fmt.Errorf("load %s: empty training split", name)
	}
	return ds, nil
}

// LimitClass keeps at most n examples labelled key, preserving order.
func LimitClass(examples []Example, key, n int) []Example {
	out := make([]Example, 0, len(examples))
	kept := 0
	for _, ex := range examples {
		if ex.Label == key {
			if kept >= n {
				continue
			}
			kept++
		}
		out = append(out, ex)
	}
	return out
}

func labelNames(classes int) []string {
	names := make([]string, classes)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names
}

package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	stdreflect "reflect"
	"testing"
)

func TestLoaderBatching(t *testing.T) {
	examples := make([]Example, 10)
	for i := range examples {
		examples[i] = Example{Features: []float64{float64(i)}, Label: i % 2, Group: i % 3}
	}
	keep := NewLoader(examples, LoaderOptions{BatchSize: 4})
	if keep.Len() != 3 {
		t.Fatalf("expected 3 batches, got %d", keep.Len())
	}
	batches := keep.Batches()
	if len(batches) != 3 || batches[2].Len() != 2 {
		t.Fatalf("unexpected batches %v", batches)
	}
	if batches[0].IDs != nil {
		t.Fatal("ids should be omitted by default")
	}

	drop := NewLoader(examples, LoaderOptions{BatchSize: 4, DropLast: true, WithIDs: true})
	batches = drop.Batches()
	if drop.Len() != 2 || len(batches) != 2 {
		t.Fatalf("expected 2 full batches, got %d", len(batches))
	}
	for _, b := range batches {
		if err := b.Validate(); err != nil {
			t.Fatalf("invalid batch: %v", err)
		}
		if len(b.IDs) != 4 {
			t.Fatalf("expected ids, got %v", b.IDs)
		}
	}
}

func TestLoaderShuffleDeterministic(t *testing.T) {
	examples := make([]Example, 20)
	for i := range examples {
		examples[i] = Example{Features: []float64{float64(i)}, Label: i}
	}
	first := NewLoader(examples, LoaderOptions{BatchSize: 5, Shuffle: true, Seed: 9}).Batches()
	second := NewLoader(examples, LoaderOptions{BatchSize: 5, Shuffle: true, Seed: 9}).Batches()
	if !stdreflect.DeepEqual(first, second) {
		t.Fatal("same seed produced different epochs")
	}
	l := NewLoader(examples, LoaderOptions{BatchSize: 5, Shuffle: true, Seed: 9})
	a, b := l.Batches(), l.Batches()
	if stdreflect.DeepEqual(a, b) {
		t.Fatal("consecutive epochs should be reshuffled")
	}
}

func TestLimitClass(t *testing.T) {
	examples := []Example{{Label: 1}, {Label: 0}, {Label: 1}, {Label: 1}, {Label: 2}}
	got := LimitClass(examples, 1, 1)
	if len(got) != 3 || got[0].Label != 1 || got[1].Label != 0 || got[2].Label != 2 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestLoadSynthetic(t *testing.T) {
	ds, err := Load(context.Background(), "synthetic", Options{Classes: 3, Size: 60, Seed: 1, KeyToDrop: 2, Entries: 5})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Labels) != 3 || ds.InputSize != FeatureSize {
		t.Fatalf("unexpected shape: %d labels, input %d", len(ds.Labels), ds.InputSize)
	}
	count := 0
	for _, ex := range ds.Train {
		if ex.Label == 2 {
			count++
		}
	}
	if count != 5 || len(ds.Train) != 45 {
		t.Fatalf("expected 5 examples of class 2 out of 45, got %d of %d", count, len(ds.Train))
	}
	if ds.HasSubgroups() || ds.NormKey(2, -1) != "2" {
		t.Fatal("plain synthetic data should not have subgroups")
	}
}

func TestLoadSyntheticSubgroup(t *testing.T) {
	ds, err := Load(context.Background(), "synthetic_subgroup", Options{Classes: 2, Size: 200, Seed: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ds.HasSubgroups() || len(ds.Subgroups) != 2 {
		t.Fatalf("expected two subgroups, got %v", ds.Groups)
	}
	if len(ds.Subgroups["major"])+len(ds.Subgroups["minor"]) != len(ds.Test) {
		t.Fatal("subgroup loaders must partition the held-out split")
	}
	minor := 0
	for _, ex := range ds.Train {
		if ex.Group == 1 {
			minor++
		}
	}
	if minor == 0 || minor*4 > len(ds.Train) {
		t.Fatalf("minority should be rare in training, got %d of %d", minor, len(ds.Train))
	}
	if got := ds.NormKey(1, 1); got != "1_minor" {
		t.Fatalf("NormKey=%q", got)
	}
}

func TestLoadUnknownSource(t *testing.T) {
	if _, err := Load(context.Background(), "cifar10", Options{}); !errors.Is(err, ErrUnknownDataset) {
		t.Fatalf("expected ErrUnknownDataset, got %v", err)
	}
}

type record struct {
	label int
	image []byte
	text  string
	group string
}

func writeShard(t *testing.T, path string, records map[string]record) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for key, r := range records {
		if r.group != "" {
			addTarPayload(t, tw, key+".grp", []byte(r.group))
		}
		if r.image != nil {
			addTarPayload(t, tw, key+".png", r.image)
		}
		if r.text != "" {
			addTarPayload(t, tw, key+".txt", []byte(r.text))
		}
		addTarPayload(t, tw, key+".cls", []byte{byte('0' + r.label)})
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}
}

func TestLoadSubgroupShards(t *testing.T) {
	dir := t.TempDir()
	img := encodePNG(t, 40)
	writeShard(t, filepath.Join(dir, "train", "shard-000000.tar"), map[string]record{
		"a": {label: 0, image: img, group: "light"},
		"b": {label: 1, image: img, group: "dark"},
		"c": {label: 1, image: []byte("broken"), group: "dark"},
	})
	writeShard(t, filepath.Join(dir, "test", "shard-000000.tar"), map[string]record{
		"d": {label: 0, image: img, group: "dark"},
		"e": {label: 1, image: img, group: "light"},
	})
	ds, err := Load(context.Background(), "subgroup", Options{
		TrainRoots: []string{filepath.Join(dir, "train")},
		TestRoots:  []string{filepath.Join(dir, "test")},
		NumWorkers: 2,
		Seed:       3,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !stdreflect.DeepEqual(ds.Groups, []string{"dark", "light"}) {
		t.Fatalf("unexpected groups %v", ds.Groups)
	}
	if len(ds.Train) != 2 || ds.Skipped != 1 {
		t.Fatalf("expected 2 decoded and 1 skipped, got %d and %d", len(ds.Train), ds.Skipped)
	}
	if len(ds.Subgroups["dark"]) != 1 || len(ds.Subgroups["light"]) != 1 {
		t.Fatalf("unexpected subgroup split %v", ds.Subgroups)
	}
}

func TestLoadTextShards(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "train", "shard-000000.tar"), map[string]record{
		"a": {label: 0, text: "good movie"},
		"b": {label: 1, text: "bad movie"},
	})
	writeShard(t, filepath.Join(dir, "test", "shard-000000.tar"), map[string]record{
		"c": {label: 1, text: "bad plot"},
	})
	ds, err := Load(context.Background(), "text", Options{
		TrainRoots: []string{filepath.Join(dir, "train")},
		TestRoots:  []string{filepath.Join(dir, "test")},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Vocab != 4 {
		t.Fatalf("expected vocabulary of 4, got %d", ds.Vocab)
	}
	if got := ds.Test[0].Features; len(got) != 2 || got[1] != UnknownToken {
		t.Fatalf("unexpected encoding %v", got)
	}
}

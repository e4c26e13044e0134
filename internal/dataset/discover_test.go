package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverShardsNestedAndSorted(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "shard-000000.tar"))
	mustWrite(t, filepath.Join(dir, "nested", "shard-000001.tar"))
	mustWrite(t, filepath.Join(dir, "ignore.txt"))
	mustWrite(t, filepath.Join(dir, "other.tar"))

	shards, err := DiscoverShards(dir)
	if err != nil {
		t.Fatalf("DiscoverShards error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "nested", "shard-000001.tar"),
		filepath.Join(dir, "shard-000000.tar"),
	}
	if len(shards) != len(want) {
		t.Fatalf("expected %d shards, got %v", len(want), shards)
	}
	for i, shard := range want {
		if shards[i] != shard {
			t.Fatalf("shard[%d]=%s want %s", i, shards[i], shard)
		}
	}
}

func TestDiscoverShardsSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "held-out.tar")
	mustWrite(t, path)
	shards, err := DiscoverShards(path)
	if err != nil {
		t.Fatalf("DiscoverShards error: %v", err)
	}
	if len(shards) != 1 || shards[0] != path {
		t.Fatalf("expected the file itself, got %v", shards)
	}

	txt := filepath.Join(t.TempDir(), "notes.txt")
	mustWrite(t, txt)
	if _, err := DiscoverShards(txt); err == nil {
		t.Fatal("expected error for a non-tar file root")
	}
}

func TestDiscoverByRoot(t *testing.T) {
	full := t.TempDir()
	mustWrite(t, filepath.Join(full, "shard-000000.tar"))
	empty := t.TempDir()

	byRoot, err := DiscoverByRoot([]string{full, full + string(filepath.Separator)})
	if err != nil {
		t.Fatalf("DiscoverByRoot error: %v", err)
	}
	if len(byRoot) != 1 || len(byRoot[full]) != 1 {
		t.Fatalf("expected one deduplicated root, got %v", byRoot)
	}

	if _, err := DiscoverByRoot([]string{full, empty}); !errors.Is(err, ErrNoShards) {
		t.Fatalf("expected ErrNoShards for an empty root, got %v", err)
	}
	if _, err := DiscoverByRoot(nil); !errors.Is(err, ErrNoShards) {
		t.Fatalf("expected ErrNoShards without roots, got %v", err)
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

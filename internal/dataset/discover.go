package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// ErrNoShards is returned when a configured root holds no shard files.
var ErrNoShards = errors.New("dataset: no shards discovered")

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// DiscoverShards returns the shard TAR files beneath root in lexical order.
// A root naming a single .tar file is its own shard list.
func DiscoverShards(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover shards: %w", err)
	}
	if !info.IsDir() {
		if filepath.Ext(root) != ".tar" {
			return nil, fmt.Errorf("discover shards: %s is neither a directory nor a .tar file", root)
		}
		return []string{root}, nil
	}

	var entries []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && shardRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover shards: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}

// DiscoverByRoot scans each distinct root independently. Every root must
// contribute at least one shard.
func DiscoverByRoot(roots []string) (map[string][]string, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no roots configured", ErrNoShards)
	}
	result := make(map[string][]string, len(roots))
	for _, root := range roots {
		root = filepath.Clean(root)
		if _, seen := result[root]; seen {
			continue
		}
		shards, err := DiscoverShards(root)
		if err != nil {
			return nil, err
		}
		if len(shards) == 0 {
			return nil, fmt.Errorf("%w under %s", ErrNoShards, root)
		}
		result[root] = shards
	}
	return result, nil
}

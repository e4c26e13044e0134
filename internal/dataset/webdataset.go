package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sample represents a grouped record from a WebDataset shard: an image or a
// text payload, its class label and, for subgroup corpora, its group name.
type Sample struct {
	Key   string
	Image []byte
	Text  string
	Label int
	Group string
}

// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
var ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")

const defaultPendingCap = 1024

// ShardOptions controls how shard entries are grouped into samples.
type ShardOptions struct {
	PendingCap int
	// RequireGroup holds samples back until their .grp entry was seen.
	RequireGroup bool
}

// StreamShard streams grouped samples from the shard at path.
func StreamShard(ctx context.Context, path string, opts ShardOptions) (<-chan Sample, <-chan error) {
	pendingCap := opts.PendingCap
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Sample)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- fmt.Errorf("open shard: %w", err)
			return
		}
		defer f.Close()

		tr := tar.NewReader(bufio.NewReader(f))
		pending := make(map[string]*partial)

		for {
			if ctx != nil {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				default:
				}
			}

			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- fmt.Errorf("read tar: %w", err)
				return
			}
			if hdr.FileInfo().IsDir() {
				continue
			}
			name := filepath.Base(hdr.Name)
			key := strings.TrimSuffix(name, filepath.Ext(name))
			ext := strings.ToLower(filepath.Ext(name))

			if ext == ".grp" && !opts.RequireGroup {
				continue
			}

			var part *partial
			switch ext {
			case ".jpg", ".jpeg", ".png", ".txt", ".cls", ".grp":
				payload, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read %s: %w", name, err)
					return
				}
				part = pending[key]
				if part == nil {
					part = &partial{}
					pending[key] = part
				}
				if err := part.set(ext, payload); err != nil {
					errCh <- fmt.Errorf("parse %s: %w", name, err)
					return
				}
			default:
				// ignore unknown extension
				continue
			}

			if len(pending) > pendingCap {
				errCh <- ErrPendingOverflow
				return
			}

			if part.ready(opts.RequireGroup) {
				sample := Sample{Key: key, Image: part.image, Text: part.text, Label: *part.label, Group: part.group}
				delete(pending, key)

				if ctx != nil {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- sample:
					}
				} else {
					out <- sample
				}
			}
		}

		if len(pending) > 0 {
			errCh <- fmt.Errorf("%d samples incomplete", len(pending))
		}
	}()

	return out, errCh
}

type partial struct {
	image   []byte
	text    string
	hasText bool
	label   *int
	group   string
	hasGrp  bool
}

func (p *partial) set(ext string, payload []byte) error {
	switch ext {
	case ".cls":
		label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil {
			return err
		}
		p.label = &label
	case ".grp":
		p.group = strings.TrimSpace(string(payload))
		p.hasGrp = true
	case ".txt":
		p.text = string(payload)
		p.hasText = true
	default:
		p.image = payload
	}
	return nil
}

func (p *partial) ready(requireGroup bool) bool {
	if p.label == nil || (len(p.image) == 0 && !p.hasText) {
		return false
	}
	return !requireGroup || p.hasGrp
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dpfair/internal/dataset"
	"dpfair/internal/model"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Dataset         string  `yaml:"dataset"`
	Model           string  `yaml:"model"`
	BatchSize       int     `yaml:"batch_size"`
	NumMicrobatches int     `yaml:"num_microbatches"`
	LR              float64 `yaml:"lr"`
	Momentum        float64 `yaml:"momentum"`
	Decay           float64 `yaml:"decay"`
	Epochs          int     `yaml:"epochs"`
	S               float64 `yaml:"S"`
	Z               float64 `yaml:"z"`
	DP              bool    `yaml:"dp"`
	Mu              float64 `yaml:"mu"`
	Optimizer       string  `yaml:"optimizer"`
	Scheduler       bool    `yaml:"scheduler"`
	KeyToDrop       int     `yaml:"key_to_drop"`
	CSigma          float64 `yaml:"csigma"`
	ResumedModel    string  `yaml:"resumed_model"`
	MultiGPU        bool    `yaml:"multi_gpu"`

	// CosinePerBatch enables per-class cosine and distance tracking in the
	// DP trainer.
	CosinePerBatch bool `yaml:"count_norm_cosine_per_batch"`

	// RecordClippedNorm records norms after clipping instead of before.
	RecordClippedNorm bool `yaml:"record_clipped_norm"`

	DSSize              int `yaml:"ds_size"`
	NumberOfEntries     int `yaml:"number_of_entries"`
	NumberOfEntriesTest int `yaml:"number_of_entries_test"`
	NumClasses          int `yaml:"num_classes"`
	Hidden              int `yaml:"hidden"`
	EmbedSize           int `yaml:"emsize"`

	TrainRoots []string `yaml:"train_roots"`
	TestRoots  []string `yaml:"test_roots"`
	NumWorkers int      `yaml:"num_workers"`
	Seed       int64    `yaml:"seed"`
	Delta      float64  `yaml:"delta"`
	LogEvery   int      `yaml:"log_every"`
	SaveDir    string   `yaml:"save_dir"`
	RunsDir    string   `yaml:"runs_dir"`
}

// Default returns a Config holding the value of every optional key.
func Default() *Config {
	return &Config{
		S:          1,
		KeyToDrop:  -1,
		NumClasses: 10,
		Hidden:     64,
		EmbedSize:  32,
		NumWorkers: 2,
		Seed:       5,
		Delta:      1e-5,
		LogEvery:   20,
		SaveDir:    "saved_models",
		RunsDir:    "runs",
	}
}

// Load reads and validates a Config from YAML. Keys that do not map to a
// field are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !dataset.Registered(c.Dataset) {
		return fmt.Errorf("%w %q (known: %v)", dataset.ErrUnknownDataset, c.Dataset, dataset.Names())
	}
	if !model.Registered(c.Model) {
		return fmt.Errorf("%w %q (known: %v)", model.ErrUnknownModel, c.Model, model.Names())
	}
	if c.Optimizer != "SGD" && c.Optimizer != "Adam" {
		return fmt.Errorf("optimizer must be SGD or Adam (got %q)", c.Optimizer)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.NumMicrobatches <= 0 {
		return fmt.Errorf("num_microbatches must be > 0 (got %d)", c.NumMicrobatches)
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be > 0 (got %g)", c.LR)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.Z < 0 {
		return fmt.Errorf("z must be >= 0 (got %g)", c.Z)
	}
	if c.DP {
		if c.S <= 0 {
			return fmt.Errorf("S must be > 0 for dp runs (got %g)", c.S)
		}
		if c.BatchSize%c.NumMicrobatches != 0 {
			return fmt.Errorf("batch_size %d is not divisible by num_microbatches %d", c.BatchSize, c.NumMicrobatches)
		}
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be > 0 (got %d)", c.NumWorkers)
	}
	if c.Delta <= 0 || c.Delta >= 1 {
		return fmt.Errorf("delta must be in (0, 1) (got %g)", c.Delta)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 20
	}
	return nil
}

// Sigma is the standard deviation of the noise added to summed gradients.
func (c *Config) Sigma() float64 {
	return c.Z * c.S
}

// Table renders every key as a two column markdown table, sorted by key.
func (c *Config) Table() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	var kv map[string]any
	if err := yaml.Unmarshal(data, &kv); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("|Attribute|Value|\n|-|-|\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s|%v|\n", k, kv[k])
	}
	return b.String()
}

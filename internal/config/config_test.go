package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dpfair/internal/dataset"
	"dpfair/internal/model"
)

const base = `
dataset: synthetic
model: linear
batch_size: 8
num_microbatches: 8
lr: 0.1
epochs: 3
optimizer: SGD
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, base+"dp: true\nz: 1.5\nS: 2\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KeyToDrop != -1 || cfg.LogEvery != 20 || cfg.Seed != 5 || cfg.SaveDir != "saved_models" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Sigma() != 3 {
		t.Fatalf("sigma=%v want 3", cfg.Sigma())
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	if _, err := Load(writeConfig(t, base+"learning_rate: 0.1\n")); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Config)
		want error
	}{
		{"unknown optimizer", func(c *Config) { c.Optimizer = "RMSprop" }, nil},
		{"unknown model", func(c *Config) { c.Model = "resnet18" }, model.ErrUnknownModel},
		{"unknown dataset", func(c *Config) { c.Dataset = "cifar10" }, dataset.ErrUnknownDataset},
		{"indivisible batch", func(c *Config) { c.DP, c.NumMicrobatches = true, 3 }, nil},
		{"zero clip bound", func(c *Config) { c.DP, c.S = true, 0 }, nil},
		{"negative noise", func(c *Config) { c.Z = -1 }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse([]byte(base))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			tc.edit(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestStandardRunIgnoresMicrobatchDivisibility(t *testing.T) {
	cfg, err := Parse([]byte(base))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.NumMicrobatches = 3
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTable(t *testing.T) {
	cfg, err := Parse([]byte(base))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	table := cfg.Table()
	for _, want := range []string{"|Attribute|Value|", "|batch_size|8|", "|optimizer|SGD|"} {
		if !strings.Contains(table, want) {
			t.Fatalf("table missing %q:\n%s", want, table)
		}
	}
}

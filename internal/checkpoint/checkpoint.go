// Package checkpoint persists model parameters together with the epoch and
// accuracy they were recorded at.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dpfair/internal/model"
)

// Record is the persisted form of a checkpoint.
type Record struct {
	Epoch     int                  `json:"epoch"`
	Accuracy  float64              `json:"accuracy"`
	Model     string               `json:"model"`
	StateDict map[string][]float64 `json:"state_dict"`
}

// FileName returns the name a checkpoint for epoch and acc is stored under.
func FileName(epoch int, acc float64) string {
	return fmt.Sprintf("model_epoch_%d_acc_%.2f.json", epoch, acc)
}

// Save writes m's parameters to dir and returns the file path.
func Save(dir string, m model.Model, modelName string, epoch int, acc float64) (string, error) {
	rec := Record{
		Epoch:     epoch,
		Accuracy:  acc,
		Model:     modelName,
		StateDict: model.StateDict(m),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint: mkdir: %w", err)
	}
	path := filepath.Join(dir, FileName(epoch, acc))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("checkpoint: rename: %w", err)
	}
	return path, nil
}

// Load reads a checkpoint record from path.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", filepath.Base(path), err)
	}
	if rec.StateDict == nil {
		return nil, fmt.Errorf("checkpoint: %s has no state_dict", filepath.Base(path))
	}
	return &rec, nil
}

// Restore loads the record at path into m. A record written for a different
// architecture is rejected.
func Restore(path string, m model.Model, modelName string) (*Record, error) {
	rec, err := Load(path)
	if err != nil {
		return nil, err
	}
	if rec.Model != "" && rec.Model != modelName {
		return nil, fmt.Errorf("checkpoint: %s holds model %q, run uses %q", filepath.Base(path), rec.Model, modelName)
	}
	if err := model.LoadStateDict(m, rec.StateDict); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return rec, nil
}

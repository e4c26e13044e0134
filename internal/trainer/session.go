package trainer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"

	"dpfair/internal/checkpoint"
	"dpfair/internal/config"
	"dpfair/internal/dataset"
	"dpfair/internal/device"
	"dpfair/internal/eval"
	"dpfair/internal/metrics"
	"dpfair/internal/model"
	"dpfair/internal/optim"
	"dpfair/internal/privacy"
)

// Session owns everything one run needs, from construction out of a config
// to Close at the end of the run.
type Session struct {
	Config    *config.Config
	Logger    *log.Logger
	Sink      metrics.Sink
	Folder    string
	Device    device.Info
	Data      *dataset.Dataset
	Model     model.Model
	Optimizer optim.Optimizer
	// Scheduler is nil unless the config enables it.
	Scheduler *optim.MultiStep
	Train     *dataset.Loader
	Test      *dataset.Loader
	Subgroups map[string]*dataset.Loader
	Evaluator *eval.Evaluator
	Privacy   privacy.Report
	// StartEpoch is 1, or one past the epoch of the resumed checkpoint.
	StartEpoch int
	// Resumed is the checkpoint the model was restored from, if any.
	Resumed *checkpoint.Record
}

// NewSession loads data, builds the model and optimizer and restores the
// configured checkpoint. Artifacts and checkpoints go to folder.
func NewSession(ctx context.Context, cfg *config.Config, folder string, logger *log.Logger, sink metrics.Sink) (*Session, error) {
	s := &Session{
		Config:     cfg,
		Logger:     logger,
		Sink:       sink,
		Folder:     folder,
		Device:     device.Probe(cfg.MultiGPU),
		StartEpoch: 1,
	}
	logger.Printf("folder=%s dp=%t device: %s", folder, cfg.DP, s.Device)

	ds, err := dataset.Load(ctx, cfg.Dataset, dataset.Options{
		TrainRoots:  cfg.TrainRoots,
		TestRoots:   cfg.TestRoots,
		NumWorkers:  cfg.NumWorkers,
		Seed:        cfg.Seed,
		Classes:     cfg.NumClasses,
		Size:        cfg.DSSize,
		KeyToDrop:   cfg.KeyToDrop,
		Entries:     cfg.NumberOfEntries,
		EntriesTest: cfg.NumberOfEntriesTest,
	})
	if err != nil {
		return nil, err
	}
	s.Data = ds
	logger.Printf("dataset=%s train=%d test=%d classes=%d groups=%d skipped=%d",
		ds.Name, len(ds.Train), len(ds.Test), len(ds.Labels), len(ds.Groups), ds.Skipped)

	s.Train = dataset.NewLoader(ds.Train, dataset.LoaderOptions{
		BatchSize: cfg.BatchSize,
		Shuffle:   true,
		DropLast:  cfg.DP,
		WithIDs:   ds.HasSubgroups(),
		Seed:      cfg.Seed,
	})
	s.Test = dataset.NewLoader(ds.Test, dataset.LoaderOptions{BatchSize: cfg.BatchSize})
	s.Subgroups = make(map[string]*dataset.Loader, len(ds.Subgroups))
	for name, examples := range ds.Subgroups {
		s.Subgroups[name] = dataset.NewLoader(examples, dataset.LoaderOptions{BatchSize: cfg.BatchSize})
	}

	s.Privacy, err = privacy.Compute(privacy.Params{
		BatchSize:       cfg.BatchSize,
		DatasetSize:     len(ds.Train),
		Epochs:          cfg.Epochs,
		NoiseMultiplier: cfg.Z,
		Delta:           cfg.Delta,
	})
	if err != nil {
		return nil, err
	}
	logger.Printf("privacy: %s mu=%g", s.Privacy, cfg.Mu)

	s.Model, err = model.New(cfg.Model, model.Spec{
		InputSize: ds.InputSize,
		Classes:   len(ds.Labels),
		Hidden:    cfg.Hidden,
		Vocab:     ds.Vocab,
		EmbedSize: cfg.EmbedSize,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	if cfg.ResumedModel != "" {
		path := filepath.Join(cfg.SaveDir, cfg.ResumedModel)
		rec, err := checkpoint.Restore(path, s.Model, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		s.Resumed = rec
		s.StartEpoch = rec.Epoch + 1
		logger.Printf("resumed path=%s epoch=%d lr=%g next_epoch=%d", path, rec.Epoch, cfg.LR, s.StartEpoch)
	}
	logger.Printf("model=%s params=%d", cfg.Model, model.CountParams(s.Model))

	s.Optimizer, err = optim.New(cfg.Optimizer, s.Model.Params(), optim.Options{
		LR:          cfg.LR,
		Momentum:    cfg.Momentum,
		WeightDecay: cfg.Decay,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Scheduler {
		s.Scheduler = optim.NewEpochMilestones(s.Optimizer, cfg.Epochs)
	}

	s.Evaluator = &eval.Evaluator{
		Sink:    sink,
		Logger:  logger,
		Labels:  ds.Labels,
		Folder:  folder,
		Workers: s.Device.Replicas,
	}

	table := cfg.Table()
	logger.Printf("params:\n%s", table)
	logger.Printf("labels=%v", ds.Labels)
	if err := sink.Text("Model Params", table); err != nil {
		return nil, err
	}
	if err := sink.Text("Privacy", s.Privacy.String()); err != nil {
		return nil, err
	}
	return s, nil
}

// Trainer returns the trainer the config selects.
func (s *Session) Trainer() Trainer {
	cfg := s.Config
	if !cfg.DP {
		return &Standard{
			Model:     s.Model,
			Optimizer: s.Optimizer,
			Sink:      s.Sink,
			Logger:    s.Logger,
			LogEvery:  cfg.LogEvery,
			KeyToDrop: cfg.KeyToDrop,
			CSigma:    cfg.CSigma,
			Workers:   s.Device.Replicas,
		}
	}
	return &DP{
		Model:           s.Model,
		Optimizer:       s.Optimizer,
		Sink:            s.Sink,
		Logger:          s.Logger,
		LogEvery:        cfg.LogEvery,
		Workers:         s.Device.Replicas,
		NumMicrobatches: cfg.NumMicrobatches,
		S:               cfg.S,
		Sigma:           cfg.Sigma(),
		RecordClipped:   cfg.RecordClippedNorm,
		TrackCosine:     cfg.CosinePerBatch,
		Data:            s.Data,
		Noise:           rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Close releases the metric sink.
func (s *Session) Close() error {
	return s.Sink.Close()
}

package trainer

import (
	"context"
	"time"

	"dpfair/internal/checkpoint"
	"dpfair/internal/eval"
)

const mainAccuracyTag = "accuracy"

// Run trains from s.StartEpoch through the configured last epoch. After each
// epoch it steps the scheduler, evaluates, evaluates subgroups and writes a
// checkpoint. The context is only consulted between epochs.
func Run(ctx context.Context, s *Session) error {
	cfg := s.Config
	if s.Resumed != nil {
		restored := eval.Evaluate(s.Model, s.Test.Batches(), s.Device.Replicas)
		s.Logger.Printf("restored epoch=%d acc=%.4f recorded_acc=%.4f", s.Resumed.Epoch, restored.Accuracy, s.Resumed.Accuracy)
	}

	tr := s.Trainer()
	for epoch := s.StartEpoch; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := tr.TrainEpoch(epoch, s.Train); err != nil {
			return err
		}
		if s.Scheduler != nil {
			s.Scheduler.Step()
		}

		res, err := s.Evaluator.Test(s.Model, epoch, mainAccuracyTag, s.Test, true)
		if err != nil {
			return err
		}
		if s.Data.HasSubgroups() && len(s.Subgroups) > 0 {
			if _, _, err := s.Evaluator.Subgroups(s.Model, epoch, s.Subgroups); err != nil {
				return err
			}
		}

		path, err := checkpoint.Save(s.Folder, s.Model, cfg.Model, epoch, res.Accuracy)
		if err != nil {
			return err
		}
		s.Logger.Printf("epoch=%d acc=%.4f lr=%g checkpoint=%s elapsed=%s",
			epoch, res.Accuracy, s.Optimizer.LR(), path, time.Since(start).Round(time.Millisecond))
	}
	s.Logger.Printf("finished training folder=%s", s.Folder)
	return nil
}

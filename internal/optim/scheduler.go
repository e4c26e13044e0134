package optim

// MultiStep decays the learning rate by gamma each time the epoch counter
// reaches a milestone. Milestones are compared exactly, so a fractional
// milestone such as 2.5 never fires.
type MultiStep struct {
	opt        Optimizer
	milestones []float64
	gamma      float64
	lastEpoch  int
}

// NewMultiStep creates a scheduler that steps opt's learning rate.
func NewMultiStep(opt Optimizer, milestones []float64, gamma float64) *MultiStep {
	return &MultiStep{
		opt:        opt,
		milestones: append([]float64(nil), milestones...),
		gamma:      gamma,
	}
}

// NewEpochMilestones returns the usual schedule for a run of epochs: decay
// by 10x at half and three quarters of training.
func NewEpochMilestones(opt Optimizer, epochs int) *MultiStep {
	return NewMultiStep(opt, []float64{0.5 * float64(epochs), 0.75 * float64(epochs)}, 0.1)
}

// Step advances the epoch counter and applies any decay due.
func (s *MultiStep) Step() {
	s.lastEpoch++
	lr := s.opt.LR()
	for _, m := range s.milestones {
		if m == float64(s.lastEpoch) {
			lr *= s.gamma
		}
	}
	s.opt.SetLR(lr)
}

// LastEpoch returns how many times Step has been called.
func (s *MultiStep) LastEpoch() int {
	return s.lastEpoch
}

package optim

import (
	"errors"
	"fmt"
	"math"

	"dpfair/internal/model"
)

// ErrUnknownOptimizer is returned when the configured optimizer name is not
// one of the supported kinds.
var ErrUnknownOptimizer = errors.New("optim: unknown optimizer")

// Optimizer updates parameters from the gradients held in their slots.
type Optimizer interface {
	// Step applies the current gradients.
	Step()
	// ZeroGrad clears every gradient slot.
	ZeroGrad()
	// LR returns the current learning rate.
	LR() float64
	// SetLR changes the learning rate, e.g. from a scheduler.
	SetLR(lr float64)
	// Name returns the optimizer name.
	Name() string
}

// Options carries the hyperparameters shared by all optimizers.
type Options struct {
	LR          float64
	Momentum    float64
	WeightDecay float64
}

// New builds the optimizer selected by name ("SGD" or "Adam").
func New(name string, params []*model.Param, opts Options) (Optimizer, error) {
	switch name {
	case "SGD":
		return NewSGD(params, opts.LR, opts.Momentum, opts.WeightDecay), nil
	case "Adam":
		return NewAdam(params, opts.LR, opts.WeightDecay), nil
	default:
		return nil, fmt.Errorf("%w %q: specify `optimizer` as SGD or Adam", ErrUnknownOptimizer, name)
	}
}

// SGD is stochastic gradient descent with optional momentum and L2 weight
// decay added to the gradient.
type SGD struct {
	params      []*model.Param
	lr          float64
	momentum    float64
	weightDecay float64
	velocities  map[string][]float64
}

// NewSGD creates an SGD optimizer over params.
func NewSGD(params []*model.Param, lr, momentum, weightDecay float64) *SGD {
	return &SGD{
		params:      params,
		lr:          lr,
		momentum:    momentum,
		weightDecay: weightDecay,
		velocities:  make(map[string][]float64),
	}
}

// Step updates parameters: d = grad + wd*p; v = momentum*v + d; p -= lr*v.
// The first step seeds v with d.
func (opt *SGD) Step() {
	for _, p := range opt.params {
		v, seeded := opt.velocities[p.Name]
		if opt.momentum != 0 && !seeded {
			v = make([]float64, p.Len())
			opt.velocities[p.Name] = v
		}
		for j := range p.Data {
			d := p.Grad[j] + opt.weightDecay*p.Data[j]
			if opt.momentum != 0 {
				if seeded {
					d += opt.momentum * v[j]
				}
				v[j] = d
			}
			p.Data[j] -= opt.lr * d
		}
	}
}

// ZeroGrad implements Optimizer.
func (opt *SGD) ZeroGrad() { model.ZeroGrad(opt.params) }

// LR implements Optimizer.
func (opt *SGD) LR() float64 { return opt.lr }

// SetLR implements Optimizer.
func (opt *SGD) SetLR(lr float64) { opt.lr = lr }

// Name implements Optimizer.
func (opt *SGD) Name() string {
	if opt.momentum > 0 {
		return "SGD (momentum)"
	}
	return "SGD"
}

// Adam implements the Adam update with bias correction and L2 weight decay
// added to the gradient:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g²
//	p -= lr * m̂ / (sqrt(v̂) + eps)
type Adam struct {
	params      []*model.Param
	lr          float64
	beta1       float64
	beta2       float64
	epsilon     float64
	weightDecay float64
	step        int

	m map[string][]float64
	v map[string][]float64
}

// NewAdam creates an Adam optimizer with the usual betas (0.9, 0.999).
func NewAdam(params []*model.Param, lr, weightDecay float64) *Adam {
	return &Adam{
		params:      params,
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		epsilon:     1e-8,
		weightDecay: weightDecay,
		m:           make(map[string][]float64),
		v:           make(map[string][]float64),
	}
}

// Step implements Optimizer.
func (opt *Adam) Step() {
	opt.step++
	bias1 := 1 - math.Pow(opt.beta1, float64(opt.step))
	bias2 := 1 - math.Pow(opt.beta2, float64(opt.step))

	for _, p := range opt.params {
		m, ok := opt.m[p.Name]
		if !ok {
			m = make([]float64, p.Len())
			opt.m[p.Name] = m
			opt.v[p.Name] = make([]float64, p.Len())
		}
		v := opt.v[p.Name]
		for j := range p.Data {
			g := p.Grad[j] + opt.weightDecay*p.Data[j]
			m[j] = opt.beta1*m[j] + (1-opt.beta1)*g
			v[j] = opt.beta2*v[j] + (1-opt.beta2)*g*g
			mHat := m[j] / bias1
			vHat := v[j] / bias2
			p.Data[j] -= opt.lr * mHat / (math.Sqrt(vHat) + opt.epsilon)
		}
	}
}

// ZeroGrad implements Optimizer.
func (opt *Adam) ZeroGrad() { model.ZeroGrad(opt.params) }

// LR implements Optimizer.
func (opt *Adam) LR() float64 { return opt.lr }

// SetLR implements Optimizer.
func (opt *Adam) SetLR(lr float64) { opt.lr = lr }

// Name implements Optimizer.
func (opt *Adam) Name() string { return "Adam" }

package learning

import "github.com/pkg/errors"
import "gorgonia.org/gorgonia"

import "github.com/neurlang/segmentation/config"

// HyperParameters configure the optimizer stepping the network parameters.
type HyperParameters struct {
	Optimizer string // adam, sgd, momentum or rmsprop

	LearningRate float64
	Beta1        float64 // adam first moment decay (0 keeps the solver default)
	Beta2        float64 // adam second moment decay (0 keeps the solver default)
	Epsilon      float64 // adam and rmsprop stabilizer (0 keeps the solver default)
	Momentum     float64 // momentum solver only

	L2   float64 // l2 regularization, 0 disables it
	Clip float64 // gradient clipping, 0 disables it
}

// NewHyperParameters copies the optimizer block of a training config.
func NewHyperParameters(o config.OptimizerSpec) *HyperParameters {
	return &HyperParameters{
		Optimizer:    o.Name,
		LearningRate: o.LearningRate,
		Beta1:        o.Beta1,
		Beta2:        o.Beta2,
		Epsilon:      o.Epsilon,
		Momentum:     o.Momentum,
		L2:           o.L2,
		Clip:         o.Clip,
	}
}

// Solver builds a fresh solver. Solvers keep per parameter state, so every
// training run needs its own.
func (h *HyperParameters) Solver() (gorgonia.Solver, error) {
	opts := []gorgonia.SolverOpt{gorgonia.WithLearnRate(h.LearningRate)}
	if h.L2 > 0 {
		opts = append(opts, gorgonia.WithL2Reg(h.L2))
	}
	if h.Clip > 0 {
		opts = append(opts, gorgonia.WithClip(h.Clip))
	}

	switch h.Optimizer {
	case "adam", "":
		if h.Beta1 > 0 {
			opts = append(opts, gorgonia.WithBeta1(h.Beta1))
		}
		if h.Beta2 > 0 {
			opts = append(opts, gorgonia.WithBeta2(h.Beta2))
		}
		if h.Epsilon > 0 {
			opts = append(opts, gorgonia.WithEps(h.Epsilon))
		}
		return gorgonia.NewAdamSolver(opts...), nil
	case "sgd":
		return gorgonia.NewVanillaSolver(opts...), nil
	case "momentum":
		if h.Momentum > 0 {
			opts = append(opts, gorgonia.WithMomentum(h.Momentum))
		}
		return gorgonia.NewMomentum(opts...), nil
	case "rmsprop":
		if h.Epsilon > 0 {
			opts = append(opts, gorgonia.WithEps(h.Epsilon))
		}
		return gorgonia.NewRMSPropSolver(opts...), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedConfiguration, "optimizer %q", h.Optimizer)
}

// Package model is the trainable model runtime: it owns one network built
// from the configuration and exposes Fit, Transform, Save and Load to the
// pipeline driving it.
package model

import "context"
import "math/rand/v2"

import "github.com/pkg/errors"

import "github.com/neurlang/segmentation/config"
import "github.com/neurlang/segmentation/datasets"
import "github.com/neurlang/segmentation/device"
import "github.com/neurlang/segmentation/inference"
import "github.com/neurlang/segmentation/learning"
import "github.com/neurlang/segmentation/logging"
import "github.com/neurlang/segmentation/net/feedforward"
import "github.com/neurlang/segmentation/trainer"

// initStream separates the initialization generator from other users of the
// training seed.
const initStream = 0x5eed

// Model is the runtime of one network. Calls must be serialized by the
// caller.
type Model struct {
	cfg       config.Config
	net       *feedforward.FeedforwardNetwork
	variant   Variant
	policy    device.Policy
	logger    logging.Logger
	callbacks []trainer.Callback
	executor  *inference.Executor
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithPolicy sets the device policy. The default is device.Detect().
func WithPolicy(p device.Policy) Option {
	return func(m *Model) { m.policy = p }
}

// WithCallbacks adds callbacks run after the configured ones on every Fit.
func WithCallbacks(cbs ...trainer.Callback) Option {
	return func(m *Model) { m.callbacks = append(m.callbacks, cbs...) }
}

// New validates cfg and builds the network and the task variant. cfg is
// copied; later changes to it have no effect.
func New(cfg *config.Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	m := &Model{cfg: *cfg}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrNoOp(m.logger)
	if m.policy == nil {
		m.policy = device.Detect()
	}

	var err error
	if m.net, err = feedforward.FromConfig(cfg.Architecture); err != nil {
		return nil, errors.Wrap(err, "architecture")
	}
	if m.variant, err = NewVariant(cfg.Architecture, cfg.Training); err != nil {
		return nil, err
	}
	m.executor = &inference.Executor{
		Net:    m.net,
		Policy: m.policy,
		Logger: m.logger.With("component", "inference"),
	}
	m.logger.Debug("model built", "variant", m.variant.Kind.String(), "layers", m.net.LenLayers(),
		"params", m.net.Len(), "device", m.policy.Describe())
	return m, nil
}

// Network returns the network owned by the model.
func (m *Model) Network() *feedforward.FeedforwardNetwork {
	return m.net
}

// Variant returns the task variant.
func (m *Model) Variant() Variant {
	return m.variant
}

// Fit initializes the weights (unless training.skip_init is set) and trains
// the network on train, evaluating valid after every epoch when given.
func (m *Model) Fit(ctx context.Context, train datasets.Feed, valid *datasets.Feed) error {
	if got, want := m.net.Arity(), m.variant.Objective.Arity(); got != want {
		return errors.Wrapf(learning.ErrUnsupportedConfiguration, "network has %d outputs, %d losses configured", got, want)
	}
	if !m.cfg.Training.SkipInit {
		rng := rand.New(rand.NewPCG(m.cfg.Training.Seed, initStream))
		if err := learning.Initialize(m.net, m.cfg.Architecture.WeightsInit, rng); err != nil {
			return err
		}
	}
	solver, err := learning.NewHyperParameters(m.cfg.Training.Optimizer).Solver()
	if err != nil {
		return err
	}

	callbacks := append(trainer.NewCallbacks(m.cfg.Callbacks, m.logger), m.callbacks...)
	c := &trainer.Controller{
		Net:       m.net,
		Objective: m.variant.Objective,
		Solver:    solver,
		Policy:    m.policy,
		Callbacks: callbacks,
		Epochs:    m.cfg.Training.Epochs,
		Logger:    m.logger.With("component", "trainer"),
	}
	defer c.Close()
	return c.Fit(ctx, train, valid)
}

// Transform predicts every batch of the feed in evaluation mode.
func (m *Model) Transform(ctx context.Context, feed datasets.Feed) (inference.Outputs, error) {
	return m.executor.Run(ctx, feed, m.variant.Assembler)
}

// Close releases compiled inference machines.
func (m *Model) Close() error {
	return m.executor.Close()
}

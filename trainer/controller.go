package trainer

import "context"
import "fmt"
import "strings"

import "github.com/google/uuid"
import "github.com/pkg/errors"
import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/datasets"
import "github.com/neurlang/segmentation/device"
import "github.com/neurlang/segmentation/learning"
import "github.com/neurlang/segmentation/logging"
import "github.com/neurlang/segmentation/net/feedforward"

// Network is the model being fitted.
type Network interface {
	device.Placeable
	WeightsWriter
	Graph(input tensor.Shape, training bool) (*feedforward.Graph, error)
	Train()
	Eval()
}

// ComputationError reports a failure inside the forward, backward or solver
// step. It is fatal for the run.
type ComputationError struct {
	Stage string // graph, run, loss or step
	Epoch int
	Batch int
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("trainer: %s failed at epoch %d batch %d: %v", e.Stage, e.Epoch, e.Batch, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// Controller fits a network. A Controller serves a single goroutine.
type Controller struct {
	Net       Network
	Objective learning.Objective
	Solver    gorgonia.Solver
	Policy    device.Policy
	Callbacks Set
	Epochs    int
	Logger    logging.Logger

	sessions map[string]*session
}

type session struct {
	graph   *feedforward.Graph
	targets []*gorgonia.Node
	losses  *learning.Losses
	vm      gorgonia.VM
}

// Fit runs the training loop. Batch streams are bounded by their Steps:
// the pass stops right after the batch whose index equals Steps. The context
// is handed to the batch iterators and checked at every epoch boundary; a
// cancelled run still ends with OnTrainEnd and returns the context error. A
// ComputationError or a failing batch stream returns at once, without
// OnTrainEnd.
func (c *Controller) Fit(ctx context.Context, train datasets.Feed, valid *datasets.Feed) error {
	state := State{
		RunID:  uuid.NewString(),
		Epochs: c.Epochs,
		Steps:  train.Steps,
		Model:  c.Net,
	}
	log := logging.OrNoOp(c.Logger).With("run_id", state.RunID)
	policy := c.policy()
	if policy.PlaceModel(c.Net) {
		log.Debug("model placed", "device", policy.Name())
	}

	c.Net.Train()
	c.Callbacks.TrainBegin(state)

	var result error
	for epoch := 0; epoch < c.Epochs; epoch++ {
		state.Epoch = epoch
		state.Batch, state.Batches, state.BatchSize = 0, 0, 0
		state.Losses, state.EpochLosses, state.Validation = nil, nil, nil
		c.Callbacks.EpochBegin(state)

		if err := c.epoch(ctx, train, &state); err != nil {
			if ctx.Err() != nil {
				result = ctx.Err()
				break
			}
			return err
		}

		if valid != nil {
			table, err := c.Evaluate(ctx, *valid)
			c.Net.Train()
			if err != nil {
				if ctx.Err() != nil {
					result = ctx.Err()
					break
				}
				return errors.Wrap(err, "validation")
			}
			state.Validation = table
		}

		decision, err := c.Callbacks.EpochEnd(state)
		if err != nil {
			result = errors.Wrapf(err, "epoch %d callbacks", epoch)
			break
		}
		if decision == Stop {
			log.Info("training stopped by callback", "epoch", epoch)
			break
		}
		if err := ctx.Err(); err != nil {
			result = err
			break
		}
	}

	c.Callbacks.TrainEnd(state)
	return result
}

func (c *Controller) epoch(ctx context.Context, train datasets.Feed, state *State) error {
	sums := make(learning.LossTable)
	it := train.Generator.Iter()
	for batchID := 0; ; batchID++ {
		b, ok, err := it.Next(ctx)
		if err != nil {
			return errors.Wrapf(err, "batch %d", batchID)
		}
		if !ok {
			break
		}
		state.Batch = batchID
		state.BatchSize = b.Size()
		c.Callbacks.BatchBegin(*state)

		table, err := c.step(b, true)
		if err != nil {
			if ce, ok := err.(*ComputationError); ok {
				ce.Epoch, ce.Batch = state.Epoch, batchID
			}
			return err
		}
		for k, v := range table {
			sums[k] += v
		}
		state.Losses = table
		state.Batches++
		c.Callbacks.BatchEnd(*state)

		if train.Last(batchID) {
			break
		}
	}
	state.EpochLosses = mean(sums, state.Batches)
	return nil
}

// Evaluate computes the mean losses of the network in evaluation mode over a
// feed whose batches carry targets. No parameter is updated.
func (c *Controller) Evaluate(ctx context.Context, feed datasets.Feed) (learning.LossTable, error) {
	c.Net.Eval()
	sums := make(learning.LossTable)
	n := 0
	it := feed.Generator.Iter()
	for batchID := 0; ; batchID++ {
		b, ok, err := it.Next(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d", batchID)
		}
		if !ok {
			break
		}
		table, err := c.step(b, false)
		if err != nil {
			return nil, err
		}
		for k, v := range table {
			sums[k] += v
		}
		n++
		if feed.Last(batchID) {
			break
		}
	}
	return mean(sums, n), nil
}

// step runs one batch. With training set the gradients are zeroed, the
// total loss is backpropagated and the solver updates the parameters.
func (c *Controller) step(b datasets.Batch, training bool) (learning.LossTable, error) {
	b = c.policy().PlaceBatch(b)
	s, err := c.session(b, training)
	if err != nil {
		return nil, &ComputationError{Stage: "graph", Err: err}
	}
	if err := gorgonia.Let(s.graph.Input, b.Input); err != nil {
		return nil, &ComputationError{Stage: "graph", Err: err}
	}
	for i, t := range s.targets {
		if err := gorgonia.Let(t, b.Targets[i]); err != nil {
			return nil, &ComputationError{Stage: "graph", Err: err}
		}
	}

	s.graph.SyncIn()
	if training {
		s.graph.ZeroGrad()
	}
	defer s.vm.Reset()
	if err := s.vm.RunAll(); err != nil {
		return nil, &ComputationError{Stage: "run", Err: err}
	}
	table, err := s.losses.Table()
	if err != nil {
		return nil, &ComputationError{Stage: "loss", Err: err}
	}
	if training {
		if err := c.Solver.Step(gorgonia.NodesToValueGrads(s.graph.Learnables)); err != nil {
			return nil, &ComputationError{Stage: "step", Err: err}
		}
		s.graph.SyncOut()
	}
	return table, nil
}

func (c *Controller) session(b datasets.Batch, training bool) (*session, error) {
	key := sessionKey(b, training)
	if s, ok := c.sessions[key]; ok {
		return s, nil
	}
	if b.Input == nil {
		return nil, errors.New("batch has no input")
	}

	gr, err := c.Net.Graph(b.Input.Shape(), training)
	if err != nil {
		return nil, err
	}
	s := &session{graph: gr}
	for i, t := range b.Targets {
		s.targets = append(s.targets, gorgonia.NewTensor(gr.G, tensor.Float64, t.Dims(),
			gorgonia.WithShape(t.Shape()...), gorgonia.WithName(fmt.Sprintf("target%d", i))))
	}
	if s.losses, err = c.Objective.Build(gr.Outputs, s.targets); err != nil {
		return nil, err
	}

	opts := c.policy().MachineOpts()
	if training {
		if _, err := gorgonia.Grad(s.losses.Total, gr.Learnables...); err != nil {
			return nil, errors.Wrap(err, "gradients")
		}
		opts = append(opts, gorgonia.BindDualValues(gr.Learnables...))
	}
	s.vm = gorgonia.NewTapeMachine(gr.G, opts...)

	if c.sessions == nil {
		c.sessions = make(map[string]*session)
	}
	c.sessions[key] = s
	return s, nil
}

// Close releases the compiled machines.
func (c *Controller) Close() error {
	var first error
	for key, s := range c.sessions {
		if err := s.vm.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.sessions, key)
	}
	return first
}

func (c *Controller) policy() device.Policy {
	if c.Policy == nil {
		return device.Host{}
	}
	return c.Policy
}

func sessionKey(b datasets.Batch, training bool) string {
	var sb strings.Builder
	fmt.Fprint(&sb, training)
	if b.Input != nil {
		fmt.Fprint(&sb, b.Input.Shape())
	}
	for _, t := range b.Targets {
		fmt.Fprint(&sb, t.Shape())
	}
	return sb.String()
}

func mean(sums learning.LossTable, n int) learning.LossTable {
	out := make(learning.LossTable, len(sums))
	if n == 0 {
		return out
	}
	for k, v := range sums {
		out[k] = v / float64(n)
	}
	return out
}

package trainer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/neurlang/segmentation/config"
	"github.com/neurlang/segmentation/datasets"
	"github.com/neurlang/segmentation/device"
	"github.com/neurlang/segmentation/learning"
	"github.com/neurlang/segmentation/net/feedforward"
)

// linear builds a 1x1 convolution network, optionally with three heads.
func linear(t *testing.T, heads int) *feedforward.FeedforwardNetwork {
	a := config.Architecture{
		InputChannels: 1,
		InputSize:     []int{2, 2},
		Trunk:         []config.LayerSpec{{Type: "conv2d", Filters: 1, Kernel: 1}},
	}
	for i := 0; i < heads; i++ {
		a.Heads = append(a.Heads, config.HeadSpec{
			Name:   fmt.Sprintf("h%d", i),
			Layers: []config.LayerSpec{{Type: "conv2d", Filters: 1, Kernel: 1}, {Type: "sigmoid"}},
		})
	}
	f, err := feedforward.FromConfig(a)
	require.NoError(t, err)
	for _, p := range f.Params() {
		for i := range p.Data() {
			p.Data()[i] = 0.1
		}
	}
	return f
}

// batches returns n batches of two 2x2 samples with targets 2x+1 (or, with
// sigmoid heads, x) for each of the targets.
func batches(n, targets int, sigmoid bool) datasets.Slice {
	var out datasets.Slice
	for b := 0; b < n; b++ {
		x := make([]float64, 8)
		y := make([]float64, 8)
		for i := range x {
			x[i] = float64((b*8+i)%5) / 5
			y[i] = 2*x[i] + 1
			if sigmoid {
				y[i] = x[i]
			}
		}
		batch := datasets.Batch{Input: tensor.New(tensor.WithShape(2, 1, 2, 2), tensor.WithBacking(x))}
		for i := 0; i < targets; i++ {
			batch.Targets = append(batch.Targets,
				tensor.New(tensor.WithShape(2, 1, 2, 2), tensor.WithBacking(append([]float64(nil), y...))))
		}
		out = append(out, batch)
	}
	return out
}

func controller(t *testing.T, net *feedforward.FeedforwardNetwork, obj learning.Objective, lr float64, epochs int, cbs ...Callback) *Controller {
	solver, err := learning.NewHyperParameters(config.OptimizerSpec{Name: "sgd", LearningRate: lr}).Solver()
	require.NoError(t, err)
	c := &Controller{
		Net:       net,
		Objective: obj,
		Solver:    solver,
		Policy:    device.Host{},
		Callbacks: cbs,
		Epochs:    epochs,
	}
	t.Cleanup(func() { c.Close() })
	return c
}

var mse = learning.Single{Term: learning.Term{Name: "mask", Fn: learning.MSE}}

// recorder logs every hook and optionally stops at an epoch.
type recorder struct {
	events    []string
	states    []State
	stopAt    int
	trainEnds int
	onEnd     func(State)
}

func (r *recorder) OnTrainBegin(s State) { r.events = append(r.events, "train_begin") }
func (r *recorder) OnEpochBegin(s State) {
	r.events = append(r.events, fmt.Sprintf("epoch_begin %d", s.Epoch))
}
func (r *recorder) OnBatchBegin(s State) {
	r.events = append(r.events, fmt.Sprintf("batch_begin %d/%d", s.Epoch, s.Batch))
}
func (r *recorder) OnBatchEnd(s State) {
	r.events = append(r.events, fmt.Sprintf("batch_end %d/%d", s.Epoch, s.Batch))
	r.states = append(r.states, s)
}
func (r *recorder) OnEpochEnd(s State) (Decision, error) {
	r.events = append(r.events, fmt.Sprintf("epoch_end %d", s.Epoch))
	if r.onEnd != nil {
		r.onEnd(s)
	}
	if r.stopAt >= 0 && s.Epoch == r.stopAt {
		return Stop, nil
	}
	return Continue, nil
}
func (r *recorder) OnTrainEnd(s State) {
	r.events = append(r.events, "train_end")
	r.trainEnds++
}

func TestHookOrder(t *testing.T) {
	rec := &recorder{stopAt: -1}
	c := controller(t, linear(t, 0), mse, 0.1, 2, rec)
	require.NoError(t, c.Fit(context.Background(), batches(2, 1, false).Feed(-1), nil))
	assert.Equal(t, []string{
		"train_begin",
		"epoch_begin 0", "batch_begin 0/0", "batch_end 0/0", "batch_begin 0/1", "batch_end 0/1", "epoch_end 0",
		"epoch_begin 1", "batch_begin 1/0", "batch_end 1/0", "batch_begin 1/1", "batch_end 1/1", "epoch_end 1",
		"train_end",
	}, rec.events)
	assert.NotEmpty(t, rec.states[0].RunID)
	assert.Equal(t, 2, rec.states[0].BatchSize)
}

func TestStopAtEpochTwo(t *testing.T) {
	rec := &recorder{stopAt: 2}
	c := controller(t, linear(t, 0), mse, 0.1, 10, rec)
	require.NoError(t, c.Fit(context.Background(), batches(3, 1, false).Feed(-1), nil))

	assert.Equal(t, 1, rec.trainEnds)
	assert.Equal(t, "train_end", rec.events[len(rec.events)-1])
	for _, s := range rec.states {
		assert.LessOrEqual(t, s.Epoch, 2)
	}
	assert.Len(t, rec.states, 9)
}

func TestStepsBound(t *testing.T) {
	tests := []struct {
		name      string
		available int
		steps     int
		want      int
	}{
		{"bounded", 10, 2, 3},
		{"zero", 10, 0, 1},
		{"exhausted", 2, 5, 2},
		{"exact", 3, 2, 3},
		{"unbounded", 4, -1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{stopAt: -1}
			c := controller(t, linear(t, 0), mse, 0.1, 1, rec)
			require.NoError(t, c.Fit(context.Background(), batches(tt.available, 1, false).Feed(tt.steps), nil))
			assert.Len(t, rec.states, tt.want)
		})
	}
}

func TestFitReducesLoss(t *testing.T) {
	rec := &recorder{stopAt: -1}
	var epochLosses []float64
	rec.onEnd = func(s State) { epochLosses = append(epochLosses, s.EpochLosses.Total()) }
	c := controller(t, linear(t, 0), mse, 0.2, 30, rec)
	require.NoError(t, c.Fit(context.Background(), batches(4, 1, false).Feed(-1), nil))
	require.Len(t, epochLosses, 30)
	assert.Less(t, epochLosses[29], epochLosses[0]/10)
}

func TestMultiTotalIsSum(t *testing.T) {
	obj := learning.Multi{Terms: []learning.Term{
		{Name: "mask", Fn: learning.BCEDice},
		{Name: "contour", Fn: learning.BCE},
		{Name: "center", Fn: learning.MSE},
	}}
	rec := &recorder{stopAt: -1}
	c := controller(t, linear(t, 3), obj, 0.1, 2, rec)
	require.NoError(t, c.Fit(context.Background(), batches(3, 3, true).Feed(-1), nil))
	require.Len(t, rec.states, 6)
	for _, s := range rec.states {
		require.Len(t, s.Losses, 4)
		assert.Equal(t, s.Losses["batch_mask"]+s.Losses["batch_contour"]+s.Losses["batch_center"], s.Losses.Total())
	}
}

func TestValidation(t *testing.T) {
	rec := &recorder{stopAt: -1}
	var validations []learning.LossTable
	rec.onEnd = func(s State) { validations = append(validations, s.Validation) }
	c := controller(t, linear(t, 0), mse, 0.1, 2, rec)
	valid := batches(3, 1, false).Feed(0)
	require.NoError(t, c.Fit(context.Background(), batches(2, 1, false).Feed(-1), &valid))
	require.Len(t, validations, 2)
	for _, v := range validations {
		assert.Contains(t, v, "batch_loss")
		assert.Contains(t, v, "batch_mask")
	}
}

func TestComputationErrorIsFatal(t *testing.T) {
	rec := &recorder{stopAt: -1}
	c := controller(t, linear(t, 0), mse, 0.1, 3, rec)
	bad := batches(2, 1, false)
	bad[1].Targets[0] = tensor.New(tensor.WithShape(2, 1, 3, 3), tensor.WithBacking(make([]float64, 18)))

	err := c.Fit(context.Background(), bad.Feed(-1), nil)
	var ce *ComputationError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, 0, ce.Epoch)
	assert.Equal(t, 1, ce.Batch)
	assert.Equal(t, 0, rec.trainEnds)
}

func TestCancelAtEpochBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{stopAt: -1}
	rec.onEnd = func(s State) { cancel() }
	c := controller(t, linear(t, 0), mse, 0.1, 5, rec)

	err := c.Fit(ctx, batches(2, 1, false).Feed(-1), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rec.trainEnds)
	assert.Len(t, rec.states, 2)
}

type failing struct{ Base }

func (failing) OnEpochEnd(State) (Decision, error) { return Continue, errors.New("disk full") }

func TestCallbackErrorEndsTraining(t *testing.T) {
	rec := &recorder{stopAt: -1}
	c := controller(t, linear(t, 0), mse, 0.1, 5, rec, failing{})
	err := c.Fit(context.Background(), batches(1, 1, false).Feed(-1), nil)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, rec.trainEnds)
	assert.Len(t, rec.states, 1)
}

func TestZeroEpochs(t *testing.T) {
	rec := &recorder{stopAt: -1}
	c := controller(t, linear(t, 0), mse, 0.1, 0, rec)
	require.NoError(t, c.Fit(context.Background(), batches(1, 1, false).Feed(-1), nil))
	assert.Equal(t, []string{"train_begin", "train_end"}, rec.events)
}

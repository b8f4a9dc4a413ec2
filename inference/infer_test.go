package inference

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/neurlang/segmentation/config"
	"github.com/neurlang/segmentation/datasets"
	"github.com/neurlang/segmentation/device"
	"github.com/neurlang/segmentation/logging"
	"github.com/neurlang/segmentation/net/feedforward"
)

func network(t *testing.T, heads ...string) *feedforward.FeedforwardNetwork {
	a := config.Architecture{
		InputChannels: 1,
		InputSize:     []int{2, 2},
		Trunk: []config.LayerSpec{
			{Type: "conv2d", Filters: 2, Kernel: 1},
			{Type: "dropout", P: 0.5},
		},
	}
	for _, h := range heads {
		a.Heads = append(a.Heads, config.HeadSpec{Name: h, Layers: []config.LayerSpec{
			{Type: "conv2d", Filters: 1, Kernel: 1}, {Type: "sigmoid"},
		}})
	}
	if len(heads) == 0 {
		a.Trunk = append(a.Trunk, config.LayerSpec{Type: "conv2d", Filters: 1, Kernel: 1})
	}
	f, err := feedforward.FromConfig(a)
	require.NoError(t, err)
	for i, p := range f.Params() {
		for j := range p.Data() {
			p.Data()[j] = 0.1 * float64(i+j+1)
		}
	}
	f.Train()
	return f
}

// feed returns n batches of three samples; sample values encode the batch.
func feed(n int, targets bool) datasets.Slice {
	var out datasets.Slice
	for b := 0; b < n; b++ {
		x := make([]float64, 12)
		for i := range x {
			x[i] = float64(b) + float64(i)/12
		}
		batch := datasets.Batch{Input: tensor.New(tensor.WithShape(3, 1, 2, 2), tensor.WithBacking(x))}
		if targets {
			batch.Targets = []*tensor.Dense{tensor.New(tensor.WithShape(3, 1, 2, 2), tensor.Of(tensor.Float64))}
		}
		out = append(out, batch)
	}
	return out
}

func executor(t *testing.T, net Network, log logging.Logger) *Executor {
	e := &Executor{Net: net, Policy: device.Host{}, Logger: log}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestRunSingle(t *testing.T) {
	net := network(t)
	e := executor(t, net, nil)
	out, err := e.Run(context.Background(), feed(2, true).Feed(-1), SingleOutput{})
	require.NoError(t, err)
	assert.False(t, net.Training())
	assert.Equal(t, []string{"mask_prediction"}, out.Keys())
	assert.Equal(t, []int{6, 1, 2, 2}, []int(out["mask_prediction"].Shape()))
}

func TestRunStepsBound(t *testing.T) {
	tests := []struct {
		available, steps, samples int
	}{
		{5, 2, 9},
		{5, 0, 3},
		{2, 5, 6},
		{4, -1, 12},
	}
	for _, tt := range tests {
		e := executor(t, network(t), nil)
		out, err := e.Run(context.Background(), feed(tt.available, false).Feed(tt.steps), SingleOutput{})
		require.NoError(t, err)
		assert.Equal(t, tt.samples, out["mask_prediction"].Shape()[0], "available %d steps %d", tt.available, tt.steps)
	}
}

func TestRunStacksInOrder(t *testing.T) {
	net := network(t)
	e := executor(t, net, nil)
	whole, err := e.Run(context.Background(), feed(3, false).Feed(-1), SingleOutput{})
	require.NoError(t, err)

	for b, batch := range feed(3, false) {
		one, err := e.Run(context.Background(), datasets.Slice{batch}.Feed(-1), SingleOutput{})
		require.NoError(t, err)
		got := one["mask_prediction"].Data().([]float64)
		want := whole["mask_prediction"].Data().([]float64)[b*12 : (b+1)*12]
		assert.InDeltaSlice(t, want, got, 1e-12)
	}
}

func TestRunMulti(t *testing.T) {
	names := []string{"mask", "contour", "center"}
	e := executor(t, network(t, names...), nil)
	out, err := e.Run(context.Background(), feed(2, false).Feed(-1), MultiOutput{Outputs: names})
	require.NoError(t, err)
	assert.Equal(t, []string{"center_prediction", "contour_prediction", "mask_prediction"}, out.Keys())
	for _, k := range out.Keys() {
		assert.Equal(t, []int{6, 1, 2, 2}, []int(out[k].Shape()))
		for _, v := range out[k].Data().([]float64) {
			assert.True(t, v > 0 && v < 1)
		}
	}
}

func TestRunArityMismatchFallback(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewSlogLogger(logging.LevelDebug, "json", &buf)
	e := executor(t, network(t), log)
	out, err := e.Run(context.Background(), feed(2, false).Feed(-1),
		MultiOutput{Outputs: []string{"mask", "contour", "center"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"mask_prediction"}, out.Keys())
	assert.Equal(t, 6, out["mask_prediction"].Shape()[0])
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("output count differs")))
}

func TestRunDeterministicInEval(t *testing.T) {
	e := executor(t, network(t), nil)
	a, err := e.Run(context.Background(), feed(1, false).Feed(-1), SingleOutput{})
	require.NoError(t, err)
	b, err := e.Run(context.Background(), feed(1, false).Feed(-1), SingleOutput{})
	require.NoError(t, err)
	assert.Equal(t, a["mask_prediction"].Data(), b["mask_prediction"].Data())
	assert.NotSame(t, a["mask_prediction"], b["mask_prediction"])
}

func TestRunEmpty(t *testing.T) {
	e := executor(t, network(t), nil)
	out, err := e.Run(context.Background(), datasets.Slice{}.Feed(3), SingleOutput{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMultiOutputRoute(t *testing.T) {
	a := tensor.New(tensor.WithShape(1), tensor.WithBacking([]float64{1}))
	b := tensor.New(tensor.WithShape(1), tensor.WithBacking([]float64{2}))
	m := MultiOutput{Outputs: []string{"mask", "contour"}}

	routed, mismatch := m.Route([]*tensor.Dense{a, b})
	assert.False(t, mismatch)
	assert.Equal(t, []Named{{"mask", a}, {"contour", b}}, routed)

	routed, mismatch = m.Route([]*tensor.Dense{a})
	assert.True(t, mismatch)
	assert.Equal(t, []Named{{"mask", a}}, routed)

	routed, mismatch = SingleOutput{}.Route([]*tensor.Dense{b})
	assert.False(t, mismatch)
	assert.Equal(t, []Named{{"mask", b}}, routed)
}

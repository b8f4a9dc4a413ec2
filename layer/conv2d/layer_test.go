package conv2d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/neurlang/segmentation/layer"
)

func bindTo(g *gorgonia.ExprGraph) layer.Binder {
	return func(p *layer.Param) *gorgonia.Node {
		return gorgonia.NewTensor(g, tensor.Float64, p.Shape().Dims(),
			gorgonia.WithShape(p.Shape()...), gorgonia.WithName(p.Name), gorgonia.WithValue(p.Value))
	}
}

func TestNewRejectsEvenKernel(t *testing.T) {
	_, err := New("c", 1, 1, 2)
	assert.Error(t, err)
	_, err = New("c", 0, 1, 3)
	assert.Error(t, err)
}

func TestParamsAndFans(t *testing.T) {
	c := MustNew("enc", 3, 8, 3)
	require.Len(t, c.Params(), 2)
	assert.Equal(t, "enc.weight", c.Weight().Name)
	assert.Equal(t, layer.Bias, c.Bias().Role)
	assert.Equal(t, []int{8, 3, 3, 3}, []int(c.Weight().Shape()))
	in, out := c.Fans()
	assert.Equal(t, 27, in)
	assert.Equal(t, 72, out)

	shp, err := c.OutShape([]int{3, 16, 12})
	require.NoError(t, err)
	assert.Equal(t, []int{8, 16, 12}, shp)
	_, err = c.OutShape([]int{4, 16, 12})
	assert.Error(t, err)
}

func TestApplyPointwise(t *testing.T) {
	c := MustNew("c", 1, 1, 1)
	c.Weight().Data()[0] = 2
	c.Bias().Data()[0] = 1

	g := gorgonia.NewGraph()
	x := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(1, 1, 2, 2), gorgonia.WithName("x"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking([]float64{1, 2, 3, 4}))))
	y, err := c.Apply(x, bindTo(g), false)
	require.NoError(t, err)

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())
	assert.InDeltaSlice(t, []float64{3, 5, 7, 9}, y.Value().Data().([]float64), 1e-12)
}

func TestApplyKeepsSpatialSize(t *testing.T) {
	c := MustNew("c", 2, 3, 3)
	g := gorgonia.NewGraph()
	x := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(2, 2, 5, 5), gorgonia.WithName("x"),
		gorgonia.WithInit(gorgonia.Ones()))
	y, err := c.Apply(x, bindTo(g), true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5, 5}, []int(y.Shape()))
}

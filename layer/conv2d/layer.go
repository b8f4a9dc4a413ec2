// Package conv2d implements a 2D convolution layer with same padding
package conv2d

import "fmt"

import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/layer"

// Conv2DLayer convolves NCHW input with an odd square kernel, stride 1, and
// pads so that height and width are preserved.
type Conv2DLayer struct {
	in, out, kernel, pad int
	weight, bias         *layer.Param
}

// MustNew creates a new Conv2D layer with input channels, filters and kernel size
func MustNew(name string, in, out, kernel int) *Conv2DLayer {
	o, err := New(name, in, out, kernel)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new Conv2D layer with input channels, filters and kernel size
func New(name string, in, out, kernel int) (o *Conv2DLayer, err error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("New Conv2D %s: channels must be positive (in %d, out %d)", name, in, out)
	}
	if kernel <= 0 || kernel%2 == 0 {
		return nil, fmt.Errorf("New Conv2D %s: kernel %d must be odd and positive", name, kernel)
	}
	o = new(Conv2DLayer)
	o.in = in
	o.out = out
	o.kernel = kernel
	o.pad = kernel / 2
	o.weight = layer.NewParam(name+".weight", layer.Weight, out, in, kernel, kernel)
	o.bias = layer.NewParam(name+".bias", layer.Bias, 1, out, 1, 1)
	return
}

func (c *Conv2DLayer) Kind() layer.Kind { return layer.Conv2D }

func (c *Conv2DLayer) Params() []*layer.Param { return []*layer.Param{c.weight, c.bias} }

// Weight returns the filter bank, shaped (out, in, kernel, kernel).
func (c *Conv2DLayer) Weight() *layer.Param { return c.weight }

// Bias returns the per filter bias, shaped (1, out, 1, 1).
func (c *Conv2DLayer) Bias() *layer.Param { return c.bias }

// Fans returns the receptive field sizes used by Glorot initialization.
func (c *Conv2DLayer) Fans() (in, out int) {
	field := c.kernel * c.kernel
	return c.in * field, c.out * field
}

// Apply adds the convolution and the broadcast bias.
func (c *Conv2DLayer) Apply(x *gorgonia.Node, bind layer.Binder, training bool) (*gorgonia.Node, error) {
	y, err := gorgonia.Conv2d(x, bind(c.weight), tensor.Shape{c.kernel, c.kernel},
		[]int{c.pad, c.pad}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastAdd(y, bind(c.bias), nil, []byte{0, 2, 3})
}

// OutShape maps (C, H, W) to (filters, H, W).
func (c *Conv2DLayer) OutShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("conv2d: want (C, H, W) input, got %v", in)
	}
	if in[0] != c.in {
		return nil, fmt.Errorf("conv2d: want %d input channels, got %d", c.in, in[0])
	}
	return []int{c.out, in[1], in[2]}, nil
}

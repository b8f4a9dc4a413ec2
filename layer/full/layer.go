// Package full implements a fully connected layer
package full

import "fmt"

import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/layer"

// FullLayer multiplies the flattened input by an (in, out) weight matrix.
type FullLayer struct {
	in, out      int
	weight, bias *layer.Param
}

// MustNew creates a new full layer with input and output size
func MustNew(name string, in, out int) *FullLayer {
	o, err := New(name, in, out)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new full layer with input and output size
func New(name string, in, out int) (o *FullLayer, err error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("New Full %s: sizes must be positive (in %d, out %d)", name, in, out)
	}
	o = new(FullLayer)
	o.in = in
	o.out = out
	o.weight = layer.NewParam(name+".weight", layer.Weight, in, out)
	o.bias = layer.NewParam(name+".bias", layer.Bias, 1, out)
	return
}

func (f *FullLayer) Kind() layer.Kind { return layer.Linear }

func (f *FullLayer) Params() []*layer.Param { return []*layer.Param{f.weight, f.bias} }

// Fans returns input and output sizes.
func (f *FullLayer) Fans() (in, out int) { return f.in, f.out }

// Apply flattens x to (N, in) when needed and applies x·W + b.
func (f *FullLayer) Apply(x *gorgonia.Node, bind layer.Binder, training bool) (*gorgonia.Node, error) {
	var err error
	if shp := x.Shape(); len(shp) != 2 {
		x, err = gorgonia.Reshape(x, tensor.Shape{shp[0], f.in})
		if err != nil {
			return nil, err
		}
	}
	y, err := gorgonia.Mul(x, bind(f.weight))
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastAdd(y, bind(f.bias), nil, []byte{0})
}

// OutShape maps any input whose volume equals in to (out).
func (f *FullLayer) OutShape(in []int) ([]int, error) {
	volume := 1
	for _, d := range in {
		volume *= d
	}
	if volume != f.in {
		return nil, fmt.Errorf("full: want %d input features, got %v", f.in, in)
	}
	return []int{f.out}, nil
}

// Package pool2d implements 2D max pooling and nearest neighbour upsampling,
// the down and up steps of an encoder/decoder network
package pool2d

import "fmt"

import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/layer"

// MaxPoolLayer takes the maximum over non overlapping kernel x kernel windows.
type MaxPoolLayer struct {
	kernel int
}

// UpsampleLayer repeats every pixel scale x scale times.
type UpsampleLayer struct {
	scale int
}

// MustNewMax creates a new max pooling layer
func MustNewMax(kernel int) *MaxPoolLayer {
	o, err := NewMax(kernel)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// NewMax creates a new max pooling layer
func NewMax(kernel int) (*MaxPoolLayer, error) {
	if kernel < 2 {
		return nil, fmt.Errorf("New MaxPool2D: kernel %d must be at least 2", kernel)
	}
	return &MaxPoolLayer{kernel: kernel}, nil
}

// MustNewUpsample creates a new upsampling layer
func MustNewUpsample(scale int) *UpsampleLayer {
	o, err := NewUpsample(scale)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// NewUpsample creates a new upsampling layer
func NewUpsample(scale int) (*UpsampleLayer, error) {
	if scale < 2 {
		return nil, fmt.Errorf("New Upsample2D: scale %d must be at least 2", scale)
	}
	return &UpsampleLayer{scale: scale}, nil
}

func (m *MaxPoolLayer) Kind() layer.Kind { return layer.Pool }

func (m *MaxPoolLayer) Params() []*layer.Param { return nil }

func (m *MaxPoolLayer) Apply(x *gorgonia.Node, bind layer.Binder, training bool) (*gorgonia.Node, error) {
	return gorgonia.MaxPool2D(x, tensor.Shape{m.kernel, m.kernel}, []int{0, 0}, []int{m.kernel, m.kernel})
}

func (m *MaxPoolLayer) OutShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("maxpool2d: want (C, H, W) input, got %v", in)
	}
	if in[1]%m.kernel != 0 || in[2]%m.kernel != 0 {
		return nil, fmt.Errorf("maxpool2d: %dx%d input not divisible by kernel %d", in[1], in[2], m.kernel)
	}
	return []int{in[0], in[1] / m.kernel, in[2] / m.kernel}, nil
}

func (u *UpsampleLayer) Kind() layer.Kind { return layer.Pool }

func (u *UpsampleLayer) Params() []*layer.Param { return nil }

func (u *UpsampleLayer) Apply(x *gorgonia.Node, bind layer.Binder, training bool) (*gorgonia.Node, error) {
	return gorgonia.Upsample2D(x, u.scale)
}

func (u *UpsampleLayer) OutShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("upsample2d: want (C, H, W) input, got %v", in)
	}
	return []int{in[0], in[1] * u.scale, in[2] * u.scale}, nil
}

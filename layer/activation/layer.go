// Package activation implements parameterless elementwise activations
package activation

import "fmt"

import "gorgonia.org/gorgonia"

import "github.com/neurlang/segmentation/layer"

// ActivationLayer applies relu, sigmoid or tanh.
type ActivationLayer struct {
	fn   func(*gorgonia.Node) (*gorgonia.Node, error)
	name string
}

// MustNew creates a new activation by name
func MustNew(name string) *ActivationLayer {
	o, err := New(name)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new activation by name
func New(name string) (*ActivationLayer, error) {
	var fn func(*gorgonia.Node) (*gorgonia.Node, error)
	switch name {
	case "relu":
		fn = gorgonia.Rectify
	case "sigmoid":
		fn = gorgonia.Sigmoid
	case "tanh":
		fn = gorgonia.Tanh
	default:
		return nil, fmt.Errorf("New Activation: unknown activation %q", name)
	}
	return &ActivationLayer{fn: fn, name: name}, nil
}

// Name returns the activation name.
func (a *ActivationLayer) Name() string { return a.name }

func (a *ActivationLayer) Kind() layer.Kind { return layer.Activation }

func (a *ActivationLayer) Params() []*layer.Param { return nil }

func (a *ActivationLayer) Apply(x *gorgonia.Node, bind layer.Binder, training bool) (*gorgonia.Node, error) {
	return a.fn(x)
}

func (a *ActivationLayer) OutShape(in []int) ([]int, error) { return in, nil }

// Package dropout implements a stochastic regularization layer active only
// while training
package dropout

import "fmt"

import "gorgonia.org/gorgonia"

import "github.com/neurlang/segmentation/layer"

// DropoutLayer zeroes activations with probability p during training.
type DropoutLayer struct {
	p float64
}

// MustNew creates a new dropout layer with drop probability p
func MustNew(p float64) *DropoutLayer {
	o, err := New(p)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new dropout layer with drop probability p
func New(p float64) (*DropoutLayer, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("New Dropout: probability %g outside [0, 1)", p)
	}
	return &DropoutLayer{p: p}, nil
}

// Probability returns the drop probability.
func (d *DropoutLayer) Probability() float64 { return d.p }

func (d *DropoutLayer) Kind() layer.Kind { return layer.Dropout }

func (d *DropoutLayer) Params() []*layer.Param { return nil }

// Apply is the identity outside training.
func (d *DropoutLayer) Apply(x *gorgonia.Node, bind layer.Binder, training bool) (*gorgonia.Node, error) {
	if !training || d.p == 0 {
		return x, nil
	}
	return gorgonia.Dropout(x, d.p)
}

func (d *DropoutLayer) OutShape(in []int) ([]int, error) { return in, nil }

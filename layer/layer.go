// Package layer defines the layer and parameter types the network graph is
// assembled from.
package layer

import "fmt"

import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

// Kind classifies a layer for weight initialization.
type Kind int

const (
	Conv2D Kind = iota
	Linear
	Activation
	Dropout
	Pool
)

func (k Kind) String() string {
	switch k {
	case Conv2D:
		return "conv2d"
	case Linear:
		return "full"
	case Activation:
		return "activation"
	case Dropout:
		return "dropout"
	case Pool:
		return "pool"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Role tells weights and biases apart.
type Role int

const (
	Weight Role = iota
	Bias
)

// Param is a trainable tensor owned by a layer. Its Value is updated in place
// by initialization, optimizer steps and checkpoint loads.
type Param struct {
	Name  string
	Role  Role
	Value *tensor.Dense
}

// NewParam allocates a zero valued float64 parameter.
func NewParam(name string, role Role, shape ...int) *Param {
	return &Param{
		Name:  name,
		Role:  role,
		Value: tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(shape...)),
	}
}

// Data returns the backing slice of the parameter.
func (p *Param) Data() []float64 {
	return p.Value.Data().([]float64)
}

// Shape returns the parameter shape.
func (p *Param) Shape() tensor.Shape {
	return p.Value.Shape()
}

// Binder returns the node bound to p in the graph under construction.
type Binder func(p *Param) *gorgonia.Node

// Layer is one stage of the network.
type Layer interface {

	// Kind classifies the layer.
	Kind() Kind

	// Params returns the trainable parameters, weights first.
	Params() []*Param

	// Apply adds the layer's computation on top of x. training enables
	// training only behaviour such as dropout.
	Apply(x *gorgonia.Node, bind Binder, training bool) (*gorgonia.Node, error)

	// OutShape maps a per sample input shape to the per sample output shape.
	OutShape(in []int) ([]int, error)
}

// Fans is implemented by layers that know their fan in and fan out.
type Fans interface {
	Fans() (in, out int)
}

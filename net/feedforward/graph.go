package feedforward

import "github.com/pkg/errors"
import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/layer"

// Graph is the network expressed as a gorgonia expression graph for one
// input shape. Callers may add more nodes (targets, losses, gradients) to G
// before compiling a VM.
type Graph struct {
	G          *gorgonia.ExprGraph
	Input      *gorgonia.Node
	Outputs    []*gorgonia.Node
	Learnables gorgonia.Nodes

	params []*layer.Param
}

// Graph builds the forward computation for inputs of the given shape.
// Learnables are bound to the parameter tensors and ordered like Params.
func (f *FeedforwardNetwork) Graph(input tensor.Shape, training bool) (*Graph, error) {
	g := gorgonia.NewGraph()
	gr := &Graph{
		G:     g,
		Input: gorgonia.NewTensor(g, tensor.Float64, input.Dims(), gorgonia.WithShape(input...), gorgonia.WithName("x")),
	}

	bound := make(map[*layer.Param]*gorgonia.Node)
	bind := func(p *layer.Param) *gorgonia.Node {
		if n, ok := bound[p]; ok {
			return n
		}
		n := gorgonia.NewTensor(g, tensor.Float64, p.Shape().Dims(),
			gorgonia.WithShape(p.Shape()...), gorgonia.WithName(p.Name), gorgonia.WithValue(p.Value))
		bound[p] = n
		gr.Learnables = append(gr.Learnables, n)
		gr.params = append(gr.params, p)
		return n
	}

	trunk, err := apply(f.trunk, gr.Input, bind, training)
	if err != nil {
		return nil, errors.Wrap(err, "trunk")
	}
	if len(f.heads) == 0 {
		gr.Outputs = []*gorgonia.Node{trunk}
		return gr, nil
	}
	for _, h := range f.heads {
		out, err := apply(h.layers, trunk, bind, training)
		if err != nil {
			return nil, errors.Wrapf(err, "head %s", h.Name)
		}
		gr.Outputs = append(gr.Outputs, out)
	}
	return gr, nil
}

func apply(layers []layer.Layer, x *gorgonia.Node, bind layer.Binder, training bool) (*gorgonia.Node, error) {
	for i, l := range layers {
		var err error
		x, err = l.Apply(x, bind, training)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d (%s)", i, l.Kind())
		}
	}
	return x, nil
}

// SyncIn copies the parameters into the learnable values when the VM keeps
// its own copies of them.
func (g *Graph) SyncIn() {
	for i, n := range g.Learnables {
		if v, ok := n.Value().(*tensor.Dense); ok && v != g.params[i].Value {
			copy(v.Data().([]float64), g.params[i].Data())
		}
	}
}

// SyncOut copies learnable values back into the parameters when the VM keeps
// its own copies of them.
func (g *Graph) SyncOut() {
	for i, n := range g.Learnables {
		if v, ok := n.Value().(*tensor.Dense); ok && v != g.params[i].Value {
			copy(g.params[i].Data(), v.Data().([]float64))
		}
	}
}

// ZeroGrad clears the gradients bound to the learnables, if any.
func (g *Graph) ZeroGrad() {
	for _, n := range g.Learnables {
		grad, err := n.Grad()
		if err != nil {
			continue
		}
		if d, ok := grad.(*tensor.Dense); ok {
			d.Zero()
		}
	}
}

// Package feedforward implements the segmentation network: a trunk of layers
// followed by zero or more named prediction heads
package feedforward

import "github.com/neurlang/segmentation/layer"

// Host is the placement of a network living in host memory.
const Host = "cpu"

// Head is a named stack of layers applied to the trunk output.
type Head struct {
	Name   string
	layers []layer.Layer
}

// Layers returns the head layers.
func (h Head) Layers() []layer.Layer {
	return h.layers
}

// FeedforwardNetwork is the feedforward network
type FeedforwardNetwork struct {
	trunk    []layer.Layer
	heads    []Head
	training bool
	device   string
}

// NewLayer adds a layer to the end of the trunk.
func (f *FeedforwardNetwork) NewLayer(l layer.Layer) {
	f.trunk = append(f.trunk, l)
}

// NewHead adds a named head. The network yields one output per head, in the
// order heads were added; without heads it yields the trunk output.
func (f *FeedforwardNetwork) NewHead(name string, layers ...layer.Layer) {
	f.heads = append(f.heads, Head{Name: name, layers: layers})
}

// Heads returns the heads in output order.
func (f *FeedforwardNetwork) Heads() []Head {
	return f.heads
}

// Arity returns the number of outputs the network produces.
func (f *FeedforwardNetwork) Arity() int {
	if len(f.heads) == 0 {
		return 1
	}
	return len(f.heads)
}

// Layers returns every layer, trunk first, then heads in order.
func (f *FeedforwardNetwork) Layers() (o []layer.Layer) {
	o = append(o, f.trunk...)
	for _, h := range f.heads {
		o = append(o, h.layers...)
	}
	return
}

// LenLayers returns the number of layers.
func (f *FeedforwardNetwork) LenLayers() int {
	return len(f.Layers())
}

// Params returns every trainable parameter in graph order.
func (f *FeedforwardNetwork) Params() (o []*layer.Param) {
	for _, l := range f.Layers() {
		o = append(o, l.Params()...)
	}
	return
}

// Len returns the number of trainable scalars.
func (f *FeedforwardNetwork) Len() (o int) {
	for _, p := range f.Params() {
		o += p.Value.Shape().TotalSize()
	}
	return
}

// Train switches the network to training mode.
func (f *FeedforwardNetwork) Train() {
	f.training = true
}

// Eval switches the network to evaluation mode, disabling dropout.
func (f *FeedforwardNetwork) Eval() {
	f.training = false
}

// Training reports whether the network is in training mode.
func (f *FeedforwardNetwork) Training() bool {
	return f.training
}

// Placement returns the device the parameters live on.
func (f *FeedforwardNetwork) Placement() string {
	if f.device == "" {
		return Host
	}
	return f.device
}

// SetPlacement records the device the parameters were moved to.
func (f *FeedforwardNetwork) SetPlacement(device string) {
	f.device = device
}

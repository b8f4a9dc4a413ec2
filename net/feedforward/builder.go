package feedforward

import "fmt"

import "github.com/pkg/errors"

import "github.com/neurlang/segmentation/config"
import "github.com/neurlang/segmentation/layer"
import "github.com/neurlang/segmentation/layer/activation"
import "github.com/neurlang/segmentation/layer/conv2d"
import "github.com/neurlang/segmentation/layer/dropout"
import "github.com/neurlang/segmentation/layer/full"
import "github.com/neurlang/segmentation/layer/pool2d"

// FromConfig builds the network described by an architecture block. Per
// sample shapes are tracked through the layers so that mismatches surface
// here instead of at graph construction. Without input_size the spatial
// dimensions are unknown and tracked as zero.
func FromConfig(a config.Architecture) (*FeedforwardNetwork, error) {
	shape := []int{a.InputChannels, 0, 0}
	if len(a.InputSize) == 2 {
		shape = []int{a.InputChannels, a.InputSize[0], a.InputSize[1]}
	} else if len(a.Trunk) > 0 && a.Trunk[0].Type == "full" {
		shape = []int{a.InputChannels}
	}

	f := new(FeedforwardNetwork)
	var err error
	for i, spec := range a.Trunk {
		var l layer.Layer
		l, shape, err = buildLayer(fmt.Sprintf("trunk.%d", i), spec, shape)
		if err != nil {
			return nil, err
		}
		f.NewLayer(l)
	}
	for _, h := range a.Heads {
		hshape := shape
		var layers []layer.Layer
		for i, spec := range h.Layers {
			var l layer.Layer
			l, hshape, err = buildLayer(fmt.Sprintf("%s.%d", h.Name, i), spec, hshape)
			if err != nil {
				return nil, err
			}
			layers = append(layers, l)
		}
		f.NewHead(h.Name, layers...)
	}
	return f, nil
}

func buildLayer(name string, spec config.LayerSpec, in []int) (l layer.Layer, out []int, err error) {
	switch spec.Type {
	case "conv2d":
		kernel := spec.Kernel
		if kernel == 0 {
			kernel = 3
		}
		l, err = conv2d.New(name, in[0], spec.Filters, kernel)
	case "full":
		volume := 1
		for _, d := range in {
			volume *= d
		}
		if volume == 0 {
			return nil, nil, errors.Errorf("%s: full layer needs architecture.input_size", name)
		}
		l, err = full.New(name, volume, spec.Units)
	case "relu", "sigmoid", "tanh":
		l, err = activation.New(spec.Type)
	case "dropout":
		l, err = dropout.New(spec.P)
	case "maxpool2d":
		kernel := spec.Kernel
		if kernel == 0 {
			kernel = 2
		}
		l, err = pool2d.NewMax(kernel)
	case "upsample2d":
		scale := spec.Scale
		if scale == 0 {
			scale = 2
		}
		l, err = pool2d.NewUpsample(scale)
	default:
		return nil, nil, errors.Errorf("%s: unknown layer type %q", name, spec.Type)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, name)
	}
	out, err = l.OutShape(in)
	if err != nil {
		return nil, nil, errors.Wrap(err, name)
	}
	return l, out, nil
}

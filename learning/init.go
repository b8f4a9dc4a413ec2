// Package learning implements weight initialization, the named loss
// functions, loss aggregation over the network heads and optimizer setup
package learning

import "math"
import "math/rand/v2"

import "github.com/pkg/errors"

import "github.com/neurlang/segmentation/config"
import "github.com/neurlang/segmentation/layer"

// ErrUnsupportedConfiguration is returned for unknown initialization, loss or
// optimizer names and for missing strategy parameters.
var ErrUnsupportedConfiguration = errors.New("unsupported configuration")

// Layered is anything exposing its layers, such as the feedforward network.
type Layered interface {
	Layers() []layer.Layer
}

type initializer func(l layer.Layer, rng *rand.Rand)

// Initialize applies the weights_init strategy to every layer of net, in
// place. Identically seeded generators produce identical weights.
func Initialize(net Layered, init config.WeightsInit, rng *rand.Rand) error {
	fn, err := strategy(init)
	if err != nil {
		return err
	}
	for _, l := range net.Layers() {
		fn(l, rng)
	}
	return nil
}

func strategy(init config.WeightsInit) (initializer, error) {
	switch init.Function {
	case "normal":
		mean, err := param(init, "mean")
		if err != nil {
			return nil, err
		}
		stdConv, err := param(init, "std_conv2d")
		if err != nil {
			return nil, err
		}
		stdLinear, err := param(init, "std_linear")
		if err != nil {
			return nil, err
		}
		return func(l layer.Layer, rng *rand.Rand) {
			switch l.Kind() {
			case layer.Conv2D:
				fillWeights(l, mean, stdConv, rng)
			case layer.Linear:
				fillWeights(l, mean, stdLinear, rng)
			}
		}, nil

	case "xavier":
		gain := 1.0
		if g, ok := init.Params["gain"]; ok {
			gain = g
		}
		return func(l layer.Layer, rng *rand.Rand) {
			if l.Kind() != layer.Conv2D {
				return
			}
			fans, ok := l.(layer.Fans)
			if !ok {
				return
			}
			in, out := fans.Fans()
			fillWeights(l, 0, gain*math.Sqrt(2/float64(in+out)), rng)
			for _, p := range l.Params() {
				if p.Role == layer.Bias {
					clear(p.Data())
				}
			}
		}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedConfiguration, "weights_init function %q", init.Function)
}

func param(init config.WeightsInit, name string) (float64, error) {
	v, ok := init.Params[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedConfiguration, "weights_init %s needs param %q", init.Function, name)
	}
	return v, nil
}

func fillWeights(l layer.Layer, mean, std float64, rng *rand.Rand) {
	for _, p := range l.Params() {
		if p.Role != layer.Weight {
			continue
		}
		data := p.Data()
		for i := range data {
			data[i] = mean + std*rng.NormFloat64()
		}
	}
}

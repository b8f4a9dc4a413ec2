// Package inference implements the inference stage: the network runs in
// evaluation mode over a bounded batch stream and the per batch outputs are
// stacked per output name
package inference

import "context"
import "fmt"
import "sort"

import "github.com/pkg/errors"
import "gorgonia.org/gorgonia"
import "gorgonia.org/tensor"

import "github.com/neurlang/segmentation/datasets"
import "github.com/neurlang/segmentation/device"
import "github.com/neurlang/segmentation/logging"
import "github.com/neurlang/segmentation/net/feedforward"

// Suffix marks prediction keys of an output table.
const Suffix = "_prediction"

// Key returns the output table key of a named output.
func Key(name string) string {
	return name + Suffix
}

// Outputs maps <name>_prediction to host resident predictions stacked along
// the sample axis. The caller owns the tensors.
type Outputs map[string]*tensor.Dense

// Keys returns the keys in sorted order.
func (o Outputs) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Network is the model being run.
type Network interface {
	device.Placeable
	Graph(input tensor.Shape, training bool) (*feedforward.Graph, error)
	Eval()
}

// Executor runs a network without updating it. An Executor serves a single
// goroutine.
type Executor struct {
	Net    Network
	Policy device.Policy
	Logger logging.Logger

	sessions map[string]*session
}

type session struct {
	graph *feedforward.Graph
	vm    gorgonia.VM
}

// Run switches the network to evaluation mode and predicts every batch of
// the feed, stopping right after the batch whose index equals feed.Steps.
// Batch targets are ignored. An empty feed yields an empty table.
func (e *Executor) Run(ctx context.Context, feed datasets.Feed, asm Assembler) (Outputs, error) {
	log := logging.OrNoOp(e.Logger)
	policy := e.policy()
	e.Net.Eval()
	if policy.PlaceModel(e.Net) {
		log.Debug("model placed", "device", policy.Name())
	}

	parts := make(map[string][]*tensor.Dense)
	var order []string
	warned := false
	it := feed.Generator.Iter()
	for batchID := 0; ; batchID++ {
		b, ok, err := it.Next(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d", batchID)
		}
		if !ok {
			break
		}
		outputs, err := e.predict(policy.PlaceBatch(b))
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d", batchID)
		}
		routed, mismatch := asm.Route(outputs)
		if mismatch && !warned {
			log.Warn("model output count differs from declared outputs, stacking the first output under the first name",
				"outputs", len(outputs), "names", asm.Names())
			warned = true
		}
		for _, r := range routed {
			if _, ok := parts[r.Name]; !ok {
				order = append(order, r.Name)
			}
			parts[r.Name] = append(parts[r.Name], r.Value)
		}
		if feed.Last(batchID) {
			break
		}
	}

	out := make(Outputs, len(order))
	for _, name := range order {
		stacked, err := stack(parts[name])
		if err != nil {
			return nil, errors.Wrapf(err, "stack %s", name)
		}
		out[Key(name)] = stacked
	}
	return out, nil
}

func (e *Executor) predict(b datasets.Batch) ([]*tensor.Dense, error) {
	if b.Input == nil {
		return nil, errors.New("batch has no input")
	}
	s, err := e.session(b.Input.Shape())
	if err != nil {
		return nil, err
	}
	if err := gorgonia.Let(s.graph.Input, b.Input); err != nil {
		return nil, err
	}
	s.graph.SyncIn()
	defer s.vm.Reset()
	if err := s.vm.RunAll(); err != nil {
		return nil, err
	}
	outputs := make([]*tensor.Dense, 0, len(s.graph.Outputs))
	for _, n := range s.graph.Outputs {
		v, err := e.policy().ToHost(n.Value())
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, v)
	}
	return outputs, nil
}

func (e *Executor) session(shape tensor.Shape) (*session, error) {
	key := fmt.Sprint(shape)
	if s, ok := e.sessions[key]; ok {
		return s, nil
	}
	gr, err := e.Net.Graph(shape, false)
	if err != nil {
		return nil, err
	}
	s := &session{graph: gr, vm: gorgonia.NewTapeMachine(gr.G, e.policy().MachineOpts()...)}
	if e.sessions == nil {
		e.sessions = make(map[string]*session)
	}
	e.sessions[key] = s
	return s, nil
}

// Close releases the compiled machines.
func (e *Executor) Close() error {
	var first error
	for key, s := range e.sessions {
		if err := s.vm.Close(); err != nil && first == nil {
			first = err
		}
		delete(e.sessions, key)
	}
	return first
}

func (e *Executor) policy() device.Policy {
	if e.Policy == nil {
		return device.Host{}
	}
	return e.Policy
}

func stack(parts []*tensor.Dense) (*tensor.Dense, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[0].Concat(0, parts[1:]...)
}

// Package datasets defines the batch streams consumed by the model runtime
// and a synthetic nuclei dataset for demos and tests.
package datasets

import "context"

import "gorgonia.org/tensor"

// Batch is one input tensor and zero or more targets, one per model head, in
// head order. Inference ignores Targets.
type Batch struct {
	Input   *tensor.Dense
	Targets []*tensor.Dense
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	if b.Input == nil || b.Input.Dims() == 0 {
		return 0
	}
	return b.Input.Shape()[0]
}

// Iterator yields batches. ok is false once the pass is exhausted.
type Iterator interface {
	Next(ctx context.Context) (b Batch, ok bool, err error)
}

// Generator starts a fresh pass over its batches on every Iter call.
type Generator interface {
	Iter() Iterator
}

// Feed is a batch generator bound by a step count. A pass consumes batches
// up to and including the batch whose index equals Steps, so at most Steps+1
// batches are used. A negative Steps leaves the pass unbounded.
type Feed struct {
	Generator Generator
	Steps     int
}

// Last reports whether batch index i is the last one the feed allows.
func (f Feed) Last(i int) bool {
	return f.Steps >= 0 && i == f.Steps
}

// Slice is an in-memory Generator.
type Slice []Batch

// Iter starts a pass over the slice.
func (s Slice) Iter() Iterator {
	return &sliceIterator{batches: s}
}

// Feed binds the slice to steps.
func (s Slice) Feed(steps int) Feed {
	return Feed{Generator: s, Steps: steps}
}

// WithoutTargets returns the batches stripped of their targets.
func (s Slice) WithoutTargets() Slice {
	out := make(Slice, len(s))
	for i, b := range s {
		out[i] = Batch{Input: b.Input}
	}
	return out
}

type sliceIterator struct {
	batches []Batch
	pos     int
}

func (it *sliceIterator) Next(ctx context.Context) (Batch, bool, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, false, err
	}
	if it.pos >= len(it.batches) {
		return Batch{}, false, nil
	}
	b := it.batches[it.pos]
	it.pos++
	return b, true, nil
}

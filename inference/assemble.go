package inference

import "gorgonia.org/tensor"

// SingleName is the output name of single output models.
const SingleName = "mask"

// Named is one output of one batch.
type Named struct {
	Name  string
	Value *tensor.Dense
}

// Assembler routes the outputs of a batch to output names.
type Assembler interface {
	// Names returns the declared output names.
	Names() []string

	// Route assigns names to the outputs. mismatch reports that the outputs
	// did not match the declared names and a fallback was used.
	Route(outputs []*tensor.Dense) (routed []Named, mismatch bool)
}

// SingleOutput stacks the only output under SingleName.
type SingleOutput struct{}

func (SingleOutput) Names() []string { return []string{SingleName} }

func (SingleOutput) Route(outputs []*tensor.Dense) ([]Named, bool) {
	if len(outputs) == 0 {
		return nil, true
	}
	return []Named{{Name: SingleName, Value: outputs[0]}}, len(outputs) != 1
}

// MultiOutput zips the outputs with the declared names. When the model
// yields a different number of outputs, only the first output is kept, under
// the first name. This fallback can hide a misconfigured model; Executor.Run
// logs a warning when it happens.
type MultiOutput struct {
	Outputs []string
}

func (m MultiOutput) Names() []string { return m.Outputs }

func (m MultiOutput) Route(outputs []*tensor.Dense) ([]Named, bool) {
	if len(m.Outputs) == 0 || len(outputs) == 0 {
		return nil, true
	}
	if len(outputs) != len(m.Outputs) {
		return []Named{{Name: m.Outputs[0], Value: outputs[0]}}, true
	}
	routed := make([]Named, len(outputs))
	for i, out := range outputs {
		routed[i] = Named{Name: m.Outputs[i], Value: out}
	}
	return routed, false
}

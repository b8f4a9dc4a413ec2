package model

import "fmt"

import "github.com/pkg/errors"

import "github.com/neurlang/segmentation/config"
import "github.com/neurlang/segmentation/inference"
import "github.com/neurlang/segmentation/learning"

// Kind tags the task arity of a model.
type Kind int

const (
	Single Kind = iota
	Multi
)

func (k Kind) String() string {
	switch k {
	case Single:
		return config.VariantSingle
	case Multi:
		return config.VariantMultitask
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Variant carries the behaviour that differs between single and multi head
// models: how losses are aggregated and how outputs are assembled.
type Variant struct {
	Kind      Kind
	Objective learning.Objective
	Assembler inference.Assembler
}

// NewVariant selects the variant named by the architecture config.
func NewVariant(a config.Architecture, t config.Training) (Variant, error) {
	terms, err := learning.Terms(t.Losses)
	if err != nil {
		return Variant{}, err
	}
	switch a.Variant {
	case config.VariantSingle, "":
		if len(terms) != 1 {
			return Variant{}, errors.Wrapf(learning.ErrUnsupportedConfiguration, "single variant with %d losses", len(terms))
		}
		return Variant{
			Kind:      Single,
			Objective: learning.Single{Term: terms[0]},
			Assembler: inference.SingleOutput{},
		}, nil
	case config.VariantMultitask:
		if len(terms) != len(a.Outputs) {
			return Variant{}, errors.Wrapf(learning.ErrUnsupportedConfiguration,
				"multitask variant with %d losses for %d outputs", len(terms), len(a.Outputs))
		}
		return Variant{
			Kind:      Multi,
			Objective: learning.Multi{Terms: terms},
			Assembler: inference.MultiOutput{Outputs: a.Outputs},
		}, nil
	}
	return Variant{}, errors.Wrapf(learning.ErrUnsupportedConfiguration, "variant %q", a.Variant)
}

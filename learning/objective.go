package learning

import "fmt"

import "github.com/pkg/errors"
import "gorgonia.org/gorgonia"

import "github.com/neurlang/segmentation/config"

// TotalKey is the loss table key of the aggregated objective.
const TotalKey = "batch_loss"

// Key returns the loss table key of a named partial loss.
func Key(name string) string {
	return "batch_" + name
}

// LossTable maps batch_<name> to partial losses and batch_loss to the total.
type LossTable map[string]float64

// Total returns the aggregated loss.
func (t LossTable) Total() float64 {
	return t[TotalKey]
}

// Term is one named loss bound to one head.
type Term struct {
	Name string
	Fn   LossFunc
}

// Terms resolves the configured losses, keeping their order.
func Terms(specs []config.LossSpec) ([]Term, error) {
	terms := make([]Term, 0, len(specs))
	for _, s := range specs {
		fn, err := Loss(s.Function)
		if err != nil {
			return nil, errors.Wrapf(err, "loss %s", s.Name)
		}
		terms = append(terms, Term{Name: s.Name, Fn: fn})
	}
	if err := checkNames(terms); err != nil {
		return nil, err
	}
	return terms, nil
}

// checkNames rejects terms whose loss table keys would collide with each
// other or with TotalKey.
func checkNames(terms []Term) error {
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		switch {
		case Key(t.Name) == TotalKey:
			return errors.Wrapf(ErrUnsupportedConfiguration, "loss name %q is reserved for the total", t.Name)
		case seen[t.Name]:
			return errors.Wrapf(ErrUnsupportedConfiguration, "duplicate loss name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Objective aggregates per head losses into the scalar being minimized.
type Objective interface {
	// Arity is the number of outputs and targets the objective consumes.
	Arity() int

	// Build adds the partial losses and their total to the graph. Outputs
	// and targets are matched by position.
	Build(outputs, targets []*gorgonia.Node) (*Losses, error)
}

// Losses are the loss nodes of one graph.
type Losses struct {
	Names    []string
	Partials []*gorgonia.Node
	Total    *gorgonia.Node
}

// Table reads the loss values after the graph ran.
func (l *Losses) Table() (LossTable, error) {
	t := make(LossTable, len(l.Names)+1)
	for i, n := range l.Partials {
		v, err := scalar(n)
		if err != nil {
			return nil, errors.Wrapf(err, "loss %s", l.Names[i])
		}
		t[Key(l.Names[i])] = v
	}
	v, err := scalar(l.Total)
	if err != nil {
		return nil, errors.Wrap(err, "total loss")
	}
	t[TotalKey] = v
	return t, nil
}

func scalar(n *gorgonia.Node) (float64, error) {
	if n.Value() == nil {
		return 0, fmt.Errorf("%s has no value", n.Name())
	}
	switch v := n.Value().Data().(type) {
	case float64:
		return v, nil
	case []float64:
		if len(v) == 1 {
			return v[0], nil
		}
	}
	return 0, fmt.Errorf("%s is not a float64 scalar", n.Name())
}

// Single evaluates one loss on the only output.
type Single struct {
	Term Term
}

func (s Single) Arity() int { return 1 }

func (s Single) Build(outputs, targets []*gorgonia.Node) (*Losses, error) {
	if len(outputs) < 1 || len(targets) < 1 {
		return nil, fmt.Errorf("single objective needs an output and a target (got %d, %d)", len(outputs), len(targets))
	}
	if err := checkNames([]Term{s.Term}); err != nil {
		return nil, err
	}
	loss, err := s.Term.Fn(outputs[0], targets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "loss %s", s.Term.Name)
	}
	return &Losses{
		Names:    []string{s.Term.Name},
		Partials: []*gorgonia.Node{loss},
		Total:    loss,
	}, nil
}

// Multi sums one loss per head. Terms, outputs and targets must share the
// same order; names are not reconciled.
type Multi struct {
	Terms []Term
}

func (m Multi) Arity() int { return len(m.Terms) }

func (m Multi) Build(outputs, targets []*gorgonia.Node) (*Losses, error) {
	if len(outputs) < len(m.Terms) || len(targets) < len(m.Terms) {
		return nil, fmt.Errorf("multi objective needs %d outputs and targets (got %d, %d)",
			len(m.Terms), len(outputs), len(targets))
	}
	if err := checkNames(m.Terms); err != nil {
		return nil, err
	}
	l := &Losses{}
	for i, term := range m.Terms {
		loss, err := term.Fn(outputs[i], targets[i])
		if err != nil {
			return nil, errors.Wrapf(err, "loss %s", term.Name)
		}
		l.Names = append(l.Names, term.Name)
		l.Partials = append(l.Partials, loss)
		if l.Total == nil {
			l.Total = loss
			continue
		}
		if l.Total, err = gorgonia.Add(l.Total, loss); err != nil {
			return nil, errors.Wrap(err, "total loss")
		}
	}
	if l.Total == nil {
		return nil, errors.New("multi objective has no terms")
	}
	return l, nil
}

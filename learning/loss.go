package learning

import "github.com/pkg/errors"
import "gorgonia.org/gorgonia"

// LossFunc adds a scalar loss comparing a prediction with its target.
type LossFunc func(pred, target *gorgonia.Node) (*gorgonia.Node, error)

// diceSmooth keeps the dice ratio defined on empty masks.
const diceSmooth = 1.0

var losses = map[string]LossFunc{
	"mse":      MSE,
	"bce":      BCE,
	"dice":     Dice,
	"bce_dice": BCEDice,
	"none":     None,
}

// Loss resolves a loss function by name.
func Loss(name string) (LossFunc, error) {
	fn, ok := losses[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedConfiguration, "loss function %q", name)
	}
	return fn, nil
}

// MSE is the mean squared error.
func MSE(pred, target *gorgonia.Node) (*gorgonia.Node, error) {
	diff, err := gorgonia.Sub(pred, target)
	if err != nil {
		return nil, err
	}
	sq, err := gorgonia.Square(diff)
	if err != nil {
		return nil, err
	}
	return gorgonia.Mean(sq)
}

// BCE is the mean binary cross entropy. pred must be in (0, 1).
func BCE(pred, target *gorgonia.Node) (*gorgonia.Node, error) {
	xent, err := gorgonia.BinaryXent(pred, target)
	if err != nil {
		return nil, err
	}
	return gorgonia.Mean(xent)
}

// Dice is the soft dice loss, 1 - (2|P∩T| + s) / (|P| + |T| + s).
func Dice(pred, target *gorgonia.Node) (*gorgonia.Node, error) {
	prod, err := gorgonia.HadamardProd(pred, target)
	if err != nil {
		return nil, err
	}
	inter, err := gorgonia.Sum(prod)
	if err != nil {
		return nil, err
	}
	sp, err := gorgonia.Sum(pred)
	if err != nil {
		return nil, err
	}
	st, err := gorgonia.Sum(target)
	if err != nil {
		return nil, err
	}
	num, err := gorgonia.Mul(gorgonia.NewConstant(2.0), inter)
	if err != nil {
		return nil, err
	}
	if num, err = gorgonia.Add(num, gorgonia.NewConstant(diceSmooth)); err != nil {
		return nil, err
	}
	den, err := gorgonia.Add(sp, st)
	if err != nil {
		return nil, err
	}
	if den, err = gorgonia.Add(den, gorgonia.NewConstant(diceSmooth)); err != nil {
		return nil, err
	}
	ratio, err := gorgonia.Div(num, den)
	if err != nil {
		return nil, err
	}
	return gorgonia.Sub(gorgonia.NewConstant(1.0), ratio)
}

// BCEDice is the sum of BCE and Dice.
func BCEDice(pred, target *gorgonia.Node) (*gorgonia.Node, error) {
	b, err := BCE(pred, target)
	if err != nil {
		return nil, err
	}
	d, err := Dice(pred, target)
	if err != nil {
		return nil, err
	}
	return gorgonia.Add(b, d)
}

// None is a loss that is always zero and has zero gradient.
func None(pred, target *gorgonia.Node) (*gorgonia.Node, error) {
	m, err := MSE(pred, target)
	if err != nil {
		return nil, err
	}
	return gorgonia.Mul(m, gorgonia.NewConstant(0.0))
}

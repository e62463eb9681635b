package qlearning

import (
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// Criterion costruisce nel grafo la loss scalare tra i valori Q stimati e
// quelli attesi.
type Criterion func(q, expected *gorgonia.Node) (*gorgonia.Node, error)

// MSE è l'errore quadratico medio.
func MSE(q, expected *gorgonia.Node) (*gorgonia.Node, error) {
	diff, err := gorgonia.Sub(q, expected)
	if err != nil {
		return nil, err
	}
	sq, err := gorgonia.Square(diff)
	if err != nil {
		return nil, err
	}
	return gorgonia.Mean(sq)
}

// Huber è la smooth L1 con soglia 1, scritta come
// 0.5*d^2 - 0.5*relu(|d|-1)^2 così da usare solo op differenziabili.
func Huber(q, expected *gorgonia.Node) (*gorgonia.Node, error) {
	half := gorgonia.NewConstant(0.5)
	one := gorgonia.NewConstant(1.0)

	diff, err := gorgonia.Sub(q, expected)
	if err != nil {
		return nil, err
	}
	sq, err := gorgonia.Square(diff)
	if err != nil {
		return nil, err
	}
	quad, err := gorgonia.Mul(sq, half)
	if err != nil {
		return nil, err
	}

	abs, err := gorgonia.Abs(diff)
	if err != nil {
		return nil, err
	}
	over, err := gorgonia.Sub(abs, one)
	if err != nil {
		return nil, err
	}
	if over, err = gorgonia.Rectify(over); err != nil {
		return nil, err
	}
	overSq, err := gorgonia.Square(over)
	if err != nil {
		return nil, err
	}
	overHalf, err := gorgonia.Mul(overSq, half)
	if err != nil {
		return nil, err
	}

	elems, err := gorgonia.Sub(quad, overHalf)
	if err != nil {
		return nil, err
	}
	return gorgonia.Mean(elems)
}

// ParseCriterion converte il nome passato da riga di comando.
func ParseCriterion(name string) (Criterion, error) {
	switch strings.ToLower(name) {
	case "huber", "smoothl1", "smooth_l1":
		return Huber, nil
	case "mse", "l2":
		return MSE, nil
	default:
		return nil, errors.Errorf("unknown loss %q", name)
	}
}

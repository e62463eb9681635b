package qlearning

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/gorgonia"
)

// Optimizer lega un solver gorgonia ai parametri di una rete.
type Optimizer struct {
	net    *Network
	solver gorgonia.Solver
}

// NewOptimizer crea un optimizer per i parametri di net.
func NewOptimizer(net *Network, solver gorgonia.Solver) *Optimizer {
	return &Optimizer{net: net, solver: solver}
}

// NewSolver crea un solver per nome: adam, rmsprop o sgd.
func NewSolver(name string, learnRate float64) (gorgonia.Solver, error) {
	if learnRate <= 0 {
		return nil, errors.Errorf("learning rate must be positive, got %v", learnRate)
	}
	switch strings.ToLower(name) {
	case "adam":
		return gorgonia.NewAdamSolver(gorgonia.WithLearnRate(learnRate)), nil
	case "rmsprop":
		return gorgonia.NewRMSPropSolver(gorgonia.WithLearnRate(learnRate)), nil
	case "sgd":
		return gorgonia.NewVanillaSolver(gorgonia.WithLearnRate(learnRate)), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", name)
	}
}

// ZeroGrad prepara la rete per un nuovo passo di backprop.
func (o *Optimizer) ZeroGrad() {
	o.net.ZeroGrad()
}

// ClipGradNorm scala i gradienti in modo che la norma globale non superi
// maxNorm. Restituisce la norma prima del clipping.
func (o *Optimizer) ClipGradNorm(maxNorm float64) (float64, error) {
	grads, err := o.net.gradients()
	if err != nil {
		return 0, err
	}
	total := globalNorm(grads)
	if coef := maxNorm / (total + 1e-6); coef < 1 {
		for _, g := range grads {
			floats.Scale(coef, g)
		}
	}
	return total, nil
}

// Step applica i gradienti correnti ai parametri.
func (o *Optimizer) Step() error {
	if err := o.solver.Step(gorgonia.NodesToValueGrads(o.net.learnables)); err != nil {
		return errors.Wrap(err, "solver step")
	}
	o.net.vm.Reset()
	return nil
}

func globalNorm(grads [][]float64) float64 {
	var sum float64
	for _, g := range grads {
		sum += floats.Dot(g, g)
	}
	return math.Sqrt(sum)
}

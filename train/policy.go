package train

import (
	"math"

	"github.com/pkg/errors"

	"noisydqn/qlearning"
)

// SelectAction sceglie un'azione per lo stato corrente.
// Senza rumore usa epsilon-greedy; con rumore appreso o adattivo
// l'esplorazione viene dalla rete e la scelta è greedy.
func SelectAction(state []float64, model Model, run *Run, numActions int) (int, error) {
	if numActions <= 0 {
		return 0, errors.Errorf("invalid number of actions %d", numActions)
	}
	if run.Noise == qlearning.NoiseOff && run.rng.Float64() < run.Epsilon() {
		return run.rng.Intn(numActions), nil
	}
	return Greedy(state, model)
}

// Greedy restituisce l'azione con il valore Q più alto.
func Greedy(state []float64, model Model) (int, error) {
	values, err := model.Forward([][]float64{state})
	if err != nil {
		return 0, errors.Wrap(err, "action values")
	}
	if len(values) != 1 || len(values[0]) == 0 {
		return 0, errors.New("model returned no action values")
	}
	return argmax(values[0]), nil
}

func argmax(values []float64) int {
	best := 0
	maxQ := math.Inf(-1)
	for action, q := range values {
		if q > maxQ {
			maxQ = q
			best = action
		}
	}
	return best
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

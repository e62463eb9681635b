package train

import (
	"github.com/pkg/errors"

	"noisydqn/qlearning"
)

// exploration è il comportamento associato a ogni NoiseMode.
type exploration interface {
	// beforeAct viene chiamato prima di scegliere l'azione.
	beforeAct()
	// beforeUpdate viene chiamato dopo il campionamento, prima del passo
	// con gradienti.
	beforeUpdate()
	// afterUpdate viene chiamato dopo lo step dell'optimizer.
	afterUpdate(frame int, states, head [][]float64) error
}

func newExploration(mode qlearning.NoiseMode, model, target Model, adaptEvery int) (exploration, error) {
	switch mode {
	case qlearning.NoiseOff:
		return noNoise{}, nil
	case qlearning.NoiseLearned:
		r, ok := model.(Resampler)
		if !ok {
			return nil, errors.New("learned noise requires a model with Resample")
		}
		return learnedNoise{model: r}, nil
	case qlearning.NoiseAdaptive:
		mp, ok := model.(Perturbable)
		if !ok {
			return nil, errors.New("adaptive noise requires a perturbable model")
		}
		tp, ok := target.(Perturbable)
		if !ok {
			return nil, errors.New("adaptive noise requires a perturbable target model")
		}
		if adaptEvery <= 0 {
			return nil, errors.Errorf("adapt interval must be positive, got %d", adaptEvery)
		}
		return &adaptiveNoise{model: model, perturb: mp, target: tp, every: adaptEvery}, nil
	default:
		return nil, errors.Errorf("unknown noise mode %v", mode)
	}
}

type noNoise struct{}

func (noNoise) beforeAct() {}

func (noNoise) beforeUpdate() {}

func (noNoise) afterUpdate(int, [][]float64, [][]float64) error {
	return nil
}

type learnedNoise struct {
	model Resampler
}

func (n learnedNoise) beforeAct() {
	n.model.Resample()
}

func (learnedNoise) beforeUpdate() {}

func (learnedNoise) afterUpdate(int, [][]float64, [][]float64) error {
	return nil
}

// adaptiveNoise perturba i parametri per agire e adatta la scala della
// perturbazione confrontando le uscite pulite con quelle perturbate.
type adaptiveNoise struct {
	model   Model
	perturb Perturbable
	target  Perturbable
	every   int
}

func (n *adaptiveNoise) beforeAct() {
	n.model.Eval()
	n.perturb.Renoise()
	n.perturb.Resample()
}

// La perturbazione non deve entrare nel passo con gradienti.
func (n *adaptiveNoise) beforeUpdate() {
	n.perturb.Denoise()
	n.target.Denoise()
	n.model.Train()
}

// afterUpdate confronta la testa Q del passo con gradienti con l'uscita
// della rete appena riperturbata sullo stesso batch.
func (n *adaptiveNoise) afterUpdate(frame int, states, head [][]float64) error {
	if !SyncDue(frame, n.every) {
		return nil
	}
	n.perturb.Renoise()
	perturbed, err := n.model.Forward(states)
	if err != nil {
		return errors.Wrap(err, "perturbed forward")
	}
	n.perturb.Adapt(n.perturb.AdaptiveMetric(head, perturbed))
	return nil
}

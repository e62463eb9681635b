package train

import (
	"github.com/pkg/errors"

	"noisydqn/qlearning"
)

// ErrPPOUnimplemented viene restituito da TrainPPO.
var ErrPPOUnimplemented = errors.New("ppo training is not implemented")

// TrainPPO prepara ambiente e modello per un episodio PPO.
// Raccolta delle traiettorie, stima del vantaggio e update della policy non
// esistono ancora, quindi restituisce sempre ErrPPOUnimplemented.
func TrainPPO(env Environment, model Model, opt Optimizer, valueLoss, policyLoss qlearning.Criterion, run *Run) error {
	model.Train()
	if _, err := env.Reset(); err != nil {
		return errors.Wrap(err, "env reset")
	}
	return ErrPPOUnimplemented
}

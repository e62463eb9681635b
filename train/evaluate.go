package train

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"noisydqn/qlearning"
)

// Warmup riempie la memoria con n transizioni ad azioni casuali, così che
// TrainDQN possa campionare dal primo frame.
func Warmup(env Environment, memory Memory, n int, rng *rand.Rand) error {
	state, err := env.Reset()
	if err != nil {
		return errors.Wrap(err, "env reset")
	}
	for i := 0; i < n; i++ {
		action := rng.Intn(env.NumActions())
		next, reward, done, err := env.Step(action)
		if err != nil {
			return errors.Wrapf(err, "warmup step %d", i)
		}
		if done {
			next = nil
		}
		memory.Add(qlearning.Transition{State: state, Action: action, Reward: reward, Next: next, Done: done})

		state = next
		if done {
			if state, err = env.Reset(); err != nil {
				return errors.Wrap(err, "env reset")
			}
		}
	}
	return nil
}

// Evaluate gioca episodi greedy senza apprendere e restituisce il return
// medio. maxSteps limita la durata di ogni episodio (0 = nessun limite).
func Evaluate(env Environment, model Model, episodes, maxSteps int) (float64, error) {
	if episodes <= 0 {
		return 0, errors.Errorf("episodes must be positive, got %d", episodes)
	}
	if p, ok := model.(Perturbable); ok {
		p.Denoise()
	}
	model.Eval()
	defer model.Train()

	var total float64
	for ep := 0; ep < episodes; ep++ {
		state, err := env.Reset()
		if err != nil {
			return 0, errors.Wrap(err, "env reset")
		}
		for step := 0; maxSteps <= 0 || step < maxSteps; step++ {
			action, err := Greedy(state, model)
			if err != nil {
				return 0, err
			}
			next, reward, done, err := env.Step(action)
			if err != nil {
				return 0, errors.Wrapf(err, "eval episode %d", ep)
			}
			total += reward
			if done {
				break
			}
			state = next
		}
	}
	return total / float64(episodes), nil
}

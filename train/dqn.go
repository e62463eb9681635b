package train

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"noisydqn/qlearning"
)

// TrainDQN esegue un solo episodio di training DQN, finché l'ambiente non
// segnala la fine. Modello, target, optimizer e run vengono modificati sul
// posto.
//
// La memoria deve contenere almeno run.BatchSize transizioni prima della
// chiamata; altrimenti il primo campionamento restituisce
// qlearning.ErrNotEnoughTransitions.
func TrainDQN(env Environment, model, target Model, opt Optimizer, run *Run) error {
	explore, err := newExploration(run.Noise, model, target, run.AdaptEvery)
	if err != nil {
		return err
	}

	model.Train()
	state, err := env.Reset()
	if err != nil {
		return errors.Wrap(err, "env reset")
	}
	initialFrame := run.CurrentFrame
	numActions := env.NumActions()
	var episodeReturn float64

	for done := false; !done; {
		explore.beforeAct()

		// Take a step
		action, err := SelectAction(state, model, run, numActions)
		if err != nil {
			return errors.Wrapf(err, "frame %d: select action", run.CurrentFrame)
		}
		successor, reward, stepDone, err := env.Step(action)
		if err != nil {
			return errors.Wrapf(err, "frame %d: env step", run.CurrentFrame)
		}
		done = stepDone
		if done {
			successor = nil
		}
		run.Memory.Add(qlearning.Transition{
			State:  state,
			Action: action,
			Reward: reward,
			Next:   successor,
			Done:   done,
		})

		// Sample from replay memory
		batch, err := run.Memory.Sample(run.BatchSize)
		if err != nil {
			return errors.Wrapf(err, "frame %d: sample", run.CurrentFrame)
		}
		mask := batch.TerminalMask()

		explore.beforeUpdate()

		expected, err := ExpectedQ(target, batch, mask, run.DiscountFactor)
		if err != nil {
			return errors.Wrapf(err, "frame %d", run.CurrentFrame)
		}

		// Loss, backprop e update con gradiente clippato
		opt.ZeroGrad()
		loss, head, err := model.Backward(batch.States, expected)
		if err != nil {
			return errors.Wrapf(err, "frame %d: backward", run.CurrentFrame)
		}
		if _, err := opt.ClipGradNorm(MaxGradNorm); err != nil {
			return errors.Wrapf(err, "frame %d: clip gradients", run.CurrentFrame)
		}
		if err := opt.Step(); err != nil {
			return errors.Wrapf(err, "frame %d: optimizer step", run.CurrentFrame)
		}

		if SyncDue(run.CurrentFrame, run.SyncEvery) {
			if err := target.LoadStateDict(model.StateDict()); err != nil {
				return errors.Wrapf(err, "frame %d: target sync", run.CurrentFrame)
			}
		}

		if err := explore.afterUpdate(run.CurrentFrame, batch.States, head); err != nil {
			return errors.Wrapf(err, "frame %d: adapt noise", run.CurrentFrame)
		}

		run.Losses.Update(loss)
		run.Rewards.Update(reward)
		episodeReturn += reward

		state = successor
		run.CurrentFrame++

		run.Bar.SetSuffix(fmt.Sprintf("(%d/%d) | Total: %s | ETA: %s | AvgLoss: %.4f | AvgReward: % .4f",
			run.CurrentFrame,
			run.NFrames,
			run.Bar.Elapsed().Round(time.Second),
			run.Bar.ETA().Round(time.Second),
			run.Losses.Avg,
			run.Rewards.Avg))
		run.Bar.Next()
	}

	run.Returns.Update(episodeReturn)
	run.EpisodeLengths.Update(float64(run.CurrentFrame - initialFrame))

	run.Bar.SetSuffix(run.Bar.Suffix() + fmt.Sprintf(" | Total Loss %v | Return %v | Episode Length %v",
		math.Round(run.Losses.Sum*1e4)/1e4,
		run.Returns.Val,
		run.EpisodeLengths.Val))
	run.Bar.Flush()

	if run.CurrentFrame-run.EvalStart > run.EvalEvery {
		run.TestTime = true
	}
	return nil
}

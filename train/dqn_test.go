package train

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noisydqn/qlearning"
)

func newTestRun(t *testing.T, cfg Config, prefill int) (*Run, *recordingProgress) {
	t.Helper()
	mem, err := qlearning.NewReplayMemory(1000, 3)
	require.NoError(t, err)
	for i := 0; i < prefill; i++ {
		mem.Add(qlearning.Transition{State: []float64{10}, Action: 0, Reward: 0.5, Next: []float64{11}})
	}
	bar := &recordingProgress{}
	run, err := NewRun(cfg, mem, bar)
	require.NoError(t, err)
	return run, bar
}

func testRunConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.SyncEvery = 100
	cfg.EvalEvery = 100
	cfg.NFrames = 50
	return cfg
}

func TestSyncDue(t *testing.T) {
	for frame, want := range []bool{false, false, false, true, false, false, false, true} {
		assert.Equal(t, want, SyncDue(frame, 4), "frame %d", frame)
	}
	assert.False(t, SyncDue(3, 0))
	assert.True(t, SyncDue(0, 1))
}

func TestExpectedQMasksTerminals(t *testing.T) {
	target := &fakeModel{name: "target"}
	batch := qlearning.Batch{
		States:  [][]float64{{0}, {0}, {0}, {0}},
		Actions: []int{0, 1, 0, 1},
		Rewards: []float64{1, 0, 1, 0},
		Next:    [][]float64{nil, {2}, nil, {5}},
		Dones:   []bool{true, false, true, false},
	}
	mask := batch.TerminalMask()
	require.Equal(t, []bool{true, false, true, false}, mask)

	expected, err := ExpectedQ(target, batch, mask, 0.99)
	require.NoError(t, err)
	require.Len(t, expected, 4)

	// Terminale: esattamente il reward.
	assert.Equal(t, 1.0, expected[0])
	assert.Equal(t, 1.0, expected[2])
	assert.InDelta(t, 0.99*3+0, expected[1], 1e-12)
	assert.InDelta(t, 0.99*6+0, expected[3], 1e-12)

	require.Len(t, target.forwards, 1)
	assert.Equal(t, []float64{0}, target.forwards[0][0])
	assert.Equal(t, []float64{2}, target.forwards[0][1])

	_, err = ExpectedQ(target, batch, mask[:2], 0.99)
	require.Error(t, err)
}

func TestTrainDQNFrameCounterAndMeters(t *testing.T) {
	run, bar := newTestRun(t, testRunConfig(), 4)
	run.CurrentFrame = 5
	env := &scriptedEnv{rewards: []float64{1, 2, 3}}
	model := &fakeModel{name: "model", loss: 0.25}
	target := &fakeModel{name: "target"}
	opt := &fakeOptimizer{model: model}

	require.NoError(t, TrainDQN(env, model, target, opt, run))

	assert.Equal(t, 8, run.CurrentFrame)
	assert.Equal(t, 3.0, run.EpisodeLengths.Val)
	assert.Equal(t, 6.0, run.Returns.Val)
	assert.Equal(t, 3, run.Rewards.Count)
	assert.Equal(t, 2.0, run.Rewards.Avg)
	assert.Equal(t, 3, run.Losses.Count)
	assert.InDelta(t, 0.75, run.Losses.Sum, 1e-12)
	assert.Equal(t, 1, env.resets)
	assert.True(t, model.training)
	assert.Equal(t, 7, run.Memory.Len())

	assert.Equal(t, 3, bar.nexts)
	assert.Equal(t, 1, bar.flushes)
	assert.Contains(t, bar.suffix, "(8/50)")
	assert.Contains(t, bar.suffix, "Return 6")
	assert.Contains(t, bar.suffix, "Episode Length 3")

	// Un gradiente per frame, sempre clippato a 10.
	assert.Equal(t, 3, opt.steps)
	assert.Equal(t, []float64{MaxGradNorm, MaxGradNorm, MaxGradNorm}, opt.maxNorms)
	for _, e := range model.expected {
		assert.Len(t, e, run.BatchSize)
	}
}

func TestTrainDQNStoresTerminalMarker(t *testing.T) {
	cfg := testRunConfig()
	cfg.BatchSize = 1
	run, _ := newTestRun(t, cfg, 0)
	env := &scriptedEnv{rewards: []float64{7}}
	model := &fakeModel{name: "model"}

	require.NoError(t, TrainDQN(env, model, &fakeModel{name: "target"}, &fakeOptimizer{}, run))

	// L'unica transizione è terminale: il target è esattamente il reward.
	batch, err := run.Memory.Sample(1)
	require.NoError(t, err)
	assert.Nil(t, batch.Next[0])
	assert.True(t, batch.Dones[0])
	require.Len(t, model.expected, 1)
	assert.Equal(t, []float64{7}, model.expected[0])
}

func TestTrainDQNTargetSync(t *testing.T) {
	cfg := testRunConfig()
	cfg.SyncEvery = 4
	run, _ := newTestRun(t, cfg, 4)
	env := &scriptedEnv{rewards: make([]float64, 8)}
	model := &fakeModel{name: "model"}
	target := &fakeModel{name: "target", run: run}
	opt := &fakeOptimizer{model: model}

	require.NoError(t, TrainDQN(env, model, target, opt, run))

	// Frame 3 e 7 chiudono le finestre di sync.
	assert.Equal(t, []int{3, 7}, target.loads)
	assert.Equal(t, model.bias, target.bias)
	assert.Equal(t, 8.0, target.bias)
}

func TestTrainDQNTargetUntouchedWithoutSync(t *testing.T) {
	run, _ := newTestRun(t, testRunConfig(), 4)
	env := &scriptedEnv{rewards: make([]float64, 5)}
	model := &fakeModel{name: "model"}
	target := &fakeModel{name: "target", run: run, bias: -1}

	require.NoError(t, TrainDQN(env, model, target, &fakeOptimizer{model: model}, run))

	assert.Empty(t, target.loads)
	assert.Equal(t, -1.0, target.bias)
	assert.Equal(t, 5.0, model.bias)
}

func TestTrainDQNEvalTrigger(t *testing.T) {
	cfg := testRunConfig()
	cfg.EvalEvery = 2
	run, _ := newTestRun(t, cfg, 4)
	model := &fakeModel{name: "model"}
	require.NoError(t, TrainDQN(&scriptedEnv{rewards: make([]float64, 3)}, model, &fakeModel{}, &fakeOptimizer{}, run))
	assert.True(t, run.TestTime)

	cfg.EvalEvery = 3
	run, _ = newTestRun(t, cfg, 4)
	require.NoError(t, TrainDQN(&scriptedEnv{rewards: make([]float64, 3)}, model, &fakeModel{}, &fakeOptimizer{}, run))
	assert.False(t, run.TestTime)
}

func TestTrainDQNAdaptiveOrder(t *testing.T) {
	cfg := testRunConfig()
	cfg.Noise = qlearning.NoiseAdaptive
	cfg.AdaptEvery = 1
	run, _ := newTestRun(t, cfg, 4)

	log := &callLog{}
	model := &noisyModel{fakeModel: &fakeModel{name: "model", log: log}}
	target := &noisyModel{fakeModel: &fakeModel{name: "target", log: log}}
	opt := &fakeOptimizer{log: log}

	require.NoError(t, TrainDQN(&scriptedEnv{rewards: []float64{1}}, model, target, opt, run))

	assert.Equal(t, []string{
		"model.train",
		"model.eval", "model.renoise", "model.resample",
		"model.forward",
		"model.denoise", "target.denoise", "model.train",
		"target.forward",
		"opt.zero", "model.backward", "opt.clip", "opt.step",
		"model.renoise", "model.forward", "model.metric", "model.adapt",
	}, log.calls)

	// La distanza usa la testa Q del passo con gradienti.
	require.Len(t, model.metricA, 1)
	assert.Equal(t, model.heads[0], model.metricA[0])
	assert.Equal(t, []float64{0.5}, model.adapted)
}

func TestTrainDQNAdaptInterval(t *testing.T) {
	cfg := testRunConfig()
	cfg.Noise = qlearning.NoiseAdaptive
	cfg.AdaptEvery = 3
	run, _ := newTestRun(t, cfg, 4)

	model := &noisyModel{fakeModel: &fakeModel{name: "model"}}
	target := &noisyModel{fakeModel: &fakeModel{name: "target"}}
	require.NoError(t, TrainDQN(&scriptedEnv{rewards: make([]float64, 7)}, model, target, &fakeOptimizer{}, run))

	// Frame 2 e 5.
	assert.Len(t, model.adapted, 2)
	assert.Equal(t, 7, model.resamples)
	assert.Zero(t, target.resamples)
}

func TestTrainDQNLearnedNoise(t *testing.T) {
	cfg := testRunConfig()
	cfg.Noise = qlearning.NoiseLearned
	run, _ := newTestRun(t, cfg, 4)

	log := &callLog{}
	model := &noisyModel{fakeModel: &fakeModel{name: "model", log: log}}
	require.NoError(t, TrainDQN(&scriptedEnv{rewards: make([]float64, 3)}, model, &fakeModel{name: "target"}, &fakeOptimizer{}, run))

	assert.Equal(t, 3, model.resamples)
	assert.NotContains(t, log.calls, "model.renoise")
	assert.NotContains(t, log.calls, "model.eval")
}

func TestTrainDQNCapabilityErrors(t *testing.T) {
	cfg := testRunConfig()
	cfg.Noise = qlearning.NoiseLearned
	run, _ := newTestRun(t, cfg, 4)
	env := &scriptedEnv{rewards: []float64{1}}
	err := TrainDQN(env, &fakeModel{}, &fakeModel{}, &fakeOptimizer{}, run)
	require.Error(t, err)
	assert.Zero(t, env.resets)

	run.Noise = qlearning.NoiseAdaptive
	noisy := &noisyModel{fakeModel: &fakeModel{}}
	require.Error(t, TrainDQN(env, noisy, &fakeModel{}, &fakeOptimizer{}, run))
	assert.Equal(t, 0, run.CurrentFrame)
}

func TestTrainDQNNotEnoughTransitions(t *testing.T) {
	cfg := testRunConfig()
	cfg.BatchSize = 4
	run, _ := newTestRun(t, cfg, 0)

	err := TrainDQN(&scriptedEnv{rewards: []float64{0, 0}}, &fakeModel{}, &fakeModel{}, &fakeOptimizer{}, run)
	require.Error(t, err)
	assert.Equal(t, qlearning.ErrNotEnoughTransitions, errors.Cause(err))
}

func TestTrainPPO(t *testing.T) {
	run, _ := newTestRun(t, testRunConfig(), 0)
	env := &scriptedEnv{rewards: []float64{1}}
	model := &fakeModel{}

	err := TrainPPO(env, model, &fakeOptimizer{}, qlearning.MSE, qlearning.MSE, run)
	assert.Equal(t, ErrPPOUnimplemented, err)
	assert.Equal(t, 1, env.resets)
	assert.True(t, model.training)
	assert.Equal(t, 0, run.CurrentFrame)
}

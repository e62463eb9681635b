package train

import (
	"time"

	"gorgonia.org/tensor"

	"noisydqn/qlearning"
)

type callLog struct {
	calls []string
}

func (l *callLog) add(s string) {
	if l != nil {
		l.calls = append(l.calls, s)
	}
}

// fakeModel restituisce {s0+bias, s0+bias+1} per ogni stato.
type fakeModel struct {
	name     string
	log      *callLog
	bias     float64
	training bool
	run      *Run

	loads    []int
	forwards [][][]float64
	expected [][]float64
	heads    [][][]float64
	loss     float64
}

func (m *fakeModel) values(states [][]float64) [][]float64 {
	out := make([][]float64, len(states))
	for i, s := range states {
		var x float64
		if len(s) > 0 {
			x = s[0]
		}
		out[i] = []float64{x + m.bias, x + m.bias + 1}
	}
	return out
}

func (m *fakeModel) Forward(states [][]float64) ([][]float64, error) {
	m.log.add(m.name + ".forward")
	m.forwards = append(m.forwards, states)
	return m.values(states), nil
}

func (m *fakeModel) Backward(states [][]float64, expected []float64) (float64, [][]float64, error) {
	m.log.add(m.name + ".backward")
	m.expected = append(m.expected, expected)
	head := m.values(states)
	m.heads = append(m.heads, head)
	return m.loss, head, nil
}

func (m *fakeModel) Train() {
	m.log.add(m.name + ".train")
	m.training = true
}

func (m *fakeModel) Eval() {
	m.log.add(m.name + ".eval")
	m.training = false
}

func (m *fakeModel) StateDict() qlearning.StateDict {
	return qlearning.StateDict{
		"bias": tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{m.bias, 0})),
	}
}

func (m *fakeModel) LoadStateDict(sd qlearning.StateDict) error {
	m.log.add(m.name + ".load")
	m.bias = sd["bias"].Data().([]float64)[0]
	if m.run != nil {
		m.loads = append(m.loads, m.run.CurrentFrame)
	}
	return nil
}

type noisyModel struct {
	*fakeModel
	resamples int
	adapted   []float64
	metricA   [][][]float64
}

func (m *noisyModel) Resample() {
	m.log.add(m.name + ".resample")
	m.resamples++
}

func (m *noisyModel) Renoise() {
	m.log.add(m.name + ".renoise")
}

func (m *noisyModel) Denoise() {
	m.log.add(m.name + ".denoise")
}

func (m *noisyModel) Adapt(distance float64) {
	m.log.add(m.name + ".adapt")
	m.adapted = append(m.adapted, distance)
}

func (m *noisyModel) AdaptiveMetric(a, b [][]float64) float64 {
	m.log.add(m.name + ".metric")
	m.metricA = append(m.metricA, a)
	return 0.5
}

// fakeOptimizer incrementa il bias del modello a ogni Step.
type fakeOptimizer struct {
	log      *callLog
	model    *fakeModel
	maxNorms []float64
	steps    int
}

func (o *fakeOptimizer) ZeroGrad() {
	o.log.add("opt.zero")
}

func (o *fakeOptimizer) ClipGradNorm(maxNorm float64) (float64, error) {
	o.log.add("opt.clip")
	o.maxNorms = append(o.maxNorms, maxNorm)
	return maxNorm * 2, nil
}

func (o *fakeOptimizer) Step() error {
	o.log.add("opt.step")
	o.steps++
	if o.model != nil {
		o.model.bias++
	}
	return nil
}

// scriptedEnv termina dopo len(rewards) passi; lo stato è il numero del passo.
type scriptedEnv struct {
	rewards []float64
	step    int
	resets  int
	actions []int
}

func (e *scriptedEnv) Reset() ([]float64, error) {
	e.step = 0
	e.resets++
	return []float64{0}, nil
}

func (e *scriptedEnv) Step(action int) ([]float64, float64, bool, error) {
	e.actions = append(e.actions, action)
	e.step++
	return []float64{float64(e.step)}, e.rewards[e.step-1], e.step == len(e.rewards), nil
}

func (e *scriptedEnv) NumActions() int {
	return 2
}

type recordingProgress struct {
	suffix  string
	nexts   int
	flushes int
}

func (p *recordingProgress) SetSuffix(s string)     { p.suffix = s }
func (p *recordingProgress) Suffix() string         { return p.suffix }
func (p *recordingProgress) Next()                  { p.nexts++ }
func (p *recordingProgress) Flush()                 { p.flushes++ }
func (p *recordingProgress) Elapsed() time.Duration { return time.Second }
func (p *recordingProgress) ETA() time.Duration     { return time.Minute }

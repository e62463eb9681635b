package cartpole

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	length         = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * length
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0

	// MaxSteps è la durata massima di un episodio.
	MaxSteps = 500
	// NumFeatures è la dimensione dell'osservazione.
	NumFeatures = 4
)

// State è lo stato fisico del carrello.
type State struct {
	X        float64 `json:"x"`
	XDot     float64 `json:"x_dot"`
	Theta    float64 `json:"theta"`
	ThetaDot float64 `json:"theta_dot"`
}

// Vector restituisce lo stato come osservazione.
func (s State) Vector() []float64 {
	return []float64{s.X, s.XDot, s.Theta, s.ThetaDot}
}

// Env è il classico cart-pole a due azioni: 0 spinge a sinistra, 1 a destra.
type Env struct {
	State State
	Steps int
	done  bool
	rng   *rand.Rand
}

// NewEnv crea un nuovo ambiente.
func NewEnv(seed uint64) *Env {
	env := &Env{rng: rand.New(rand.NewSource(seed))}
	env.reset()
	return env
}

func (e *Env) NumActions() int {
	return 2
}

// Reset inizia un nuovo episodio.
func (e *Env) Reset() ([]float64, error) {
	e.reset()
	return e.State.Vector(), nil
}

func (e *Env) reset() {
	e.State = State{
		X:        e.rng.Float64()*0.1 - 0.05,
		XDot:     e.rng.Float64()*0.1 - 0.05,
		Theta:    e.rng.Float64()*0.1 - 0.05,
		ThetaDot: e.rng.Float64()*0.1 - 0.05,
	}
	e.Steps = 0
	e.done = false
}

// Step integra la dinamica per un passo di tau secondi.
func (e *Env) Step(action int) ([]float64, float64, bool, error) {
	if e.done {
		return nil, 0, true, errors.New("step on finished episode")
	}
	if action != 0 && action != 1 {
		return nil, 0, false, errors.Errorf("invalid action %d", action)
	}

	force := forceMax
	if action == 0 {
		force = -forceMax
	}

	x := e.State.X
	xDot := e.State.XDot
	theta := e.State.Theta
	thetaDot := e.State.ThetaDot

	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)

	temp := (force + poleMassLength*thetaDot*thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) / (length * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass
	x += tau * xDot
	xDot += tau * xAcc
	theta += tau * thetaDot
	thetaDot += tau * thetaAcc

	e.State = State{X: x, XDot: xDot, Theta: theta, ThetaDot: thetaDot}
	e.Steps++

	e.done = x < -xThreshold || x > xThreshold || theta < -thetaThreshold || theta > thetaThreshold || e.Steps >= MaxSteps
	reward := 1.0
	if e.done && e.Steps < MaxSteps {
		reward = 0.0
	}
	return e.State.Vector(), reward, e.done, nil
}

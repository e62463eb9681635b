package train

import (
	"time"

	"noisydqn/qlearning"
)

// Environment è il simulatore con cui l'agente interagisce.
type Environment interface {
	Reset() ([]float64, error)
	// Step applica l'azione e restituisce successore, reward e fine episodio.
	Step(action int) ([]float64, float64, bool, error)
	NumActions() int
}

// Memory è la memoria di replay.
type Memory interface {
	Add(t qlearning.Transition)
	Sample(batchSize int) (qlearning.Batch, error)
	Len() int
}

// Model è un approssimatore dei valori Q.
type Model interface {
	// Forward calcola i valori Q senza gradienti.
	Forward(states [][]float64) ([][]float64, error)
	// Backward esegue il forward con gradienti, la loss rispetto a expected
	// e la backpropagation. Restituisce la loss e la testa Q staccata.
	Backward(states [][]float64, expected []float64) (float64, [][]float64, error)
	Train()
	Eval()
	StateDict() qlearning.StateDict
	LoadStateDict(sd qlearning.StateDict) error
}

// Resampler è implementato dai modelli con rumore appreso.
type Resampler interface {
	Resample()
}

// Perturbable è implementato dai modelli con rumore adattivo sui parametri.
type Perturbable interface {
	Resampler
	Renoise()
	Denoise()
	Adapt(distance float64)
	AdaptiveMetric(a, b [][]float64) float64
}

// Optimizer aggiorna i parametri del modello a cui è legato.
type Optimizer interface {
	ZeroGrad()
	ClipGradNorm(maxNorm float64) (float64, error)
	Step() error
}

// Progress è la barra di avanzamento aggiornata a ogni frame.
type Progress interface {
	SetSuffix(s string)
	Suffix() string
	Next()
	Flush()
	Elapsed() time.Duration
	ETA() time.Duration
}

type nopProgress struct {
	suffix string
	start  time.Time
}

func (p *nopProgress) SetSuffix(s string)     { p.suffix = s }
func (p *nopProgress) Suffix() string         { return p.suffix }
func (p *nopProgress) Next()                  {}
func (p *nopProgress) Flush()                 {}
func (p *nopProgress) Elapsed() time.Duration { return time.Since(p.start) }
func (p *nopProgress) ETA() time.Duration     { return 0 }

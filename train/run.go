package train

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"noisydqn/qlearning"
)

// MaxGradNorm è il tetto della norma globale dei gradienti.
const MaxGradNorm = 10.0

// Config contiene gli iperparametri del training.
type Config struct {
	Noise          qlearning.NoiseMode
	BatchSize      int
	DiscountFactor float64
	SyncEvery      int
	AdaptEvery     int
	EvalEvery      int
	NFrames        int

	EpsilonStart  float64
	EpsilonEnd    float64
	EpsilonFrames int

	Seed uint64
}

// DefaultConfig restituisce i parametri di default.
func DefaultConfig() Config {
	return Config{
		Noise:          qlearning.NoiseOff,
		BatchSize:      32,
		DiscountFactor: 0.99,
		SyncEvery:      1000,
		AdaptEvery:     50,
		EvalEvery:      10000,
		NFrames:        100000,
		EpsilonStart:   1.0,
		EpsilonEnd:     0.05,
		EpsilonFrames:  10000,
		Seed:           1,
	}
}

// Validate controlla che la configurazione sia utilizzabile.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.DiscountFactor < 0 || c.DiscountFactor > 1:
		return errors.Errorf("discount factor must be in [0,1], got %v", c.DiscountFactor)
	case c.SyncEvery <= 0:
		return errors.Errorf("sync interval must be positive, got %d", c.SyncEvery)
	case c.Noise == qlearning.NoiseAdaptive && c.AdaptEvery <= 0:
		return errors.Errorf("adapt interval must be positive, got %d", c.AdaptEvery)
	case c.EpsilonStart < c.EpsilonEnd:
		return errors.Errorf("epsilon start %v below end %v", c.EpsilonStart, c.EpsilonEnd)
	}
	return nil
}

// Run è lo stato condiviso da tutti gli episodi di un training.
type Run struct {
	Config

	Memory Memory
	Bar    Progress

	CurrentFrame int
	EvalStart    int
	TestTime     bool // richiesta di valutazione, gestita dal chiamante

	Losses         *AverageMeter
	Rewards        *AverageMeter
	Returns        *AverageMeter
	EpisodeLengths *AverageMeter

	rng *rand.Rand
}

// NewRun crea lo stato di un training. bar può essere nil.
func NewRun(cfg Config, memory Memory, bar Progress) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if memory == nil {
		return nil, errors.New("replay memory is nil")
	}
	if bar == nil {
		bar = &nopProgress{start: time.Now()}
	}
	return &Run{
		Config:         cfg,
		Memory:         memory,
		Bar:            bar,
		Losses:         &AverageMeter{},
		Rewards:        &AverageMeter{},
		Returns:        &AverageMeter{},
		EpisodeLengths: &AverageMeter{},
		rng:            rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Rand restituisce il generatore usato per la selezione delle azioni.
func (r *Run) Rand() *rand.Rand {
	return r.rng
}

// Epsilon restituisce l'epsilon corrente, con decadimento lineare.
func (r *Run) Epsilon() float64 {
	if r.EpsilonFrames <= 0 || r.CurrentFrame >= r.EpsilonFrames {
		return r.EpsilonEnd
	}
	frac := float64(r.CurrentFrame) / float64(r.EpsilonFrames)
	return r.EpsilonStart + frac*(r.EpsilonEnd-r.EpsilonStart)
}

// Done indica se il numero di frame richiesto è stato raggiunto.
func (r *Run) Done() bool {
	return r.NFrames > 0 && r.CurrentFrame >= r.NFrames
}

// SyncDue indica se il frame chiude una finestra di sync.
func SyncDue(frame, every int) bool {
	return every > 0 && frame%every == every-1
}

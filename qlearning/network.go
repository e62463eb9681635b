package qlearning

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrBatchSize viene restituito quando Backward riceve un batch di dimensione
// diversa da quella con cui è stato compilato il grafo.
var ErrBatchSize = errors.New("batch size does not match network graph")

// NoiseMode seleziona il tipo di rumore di esplorazione della rete.
type NoiseMode int

const (
	NoiseOff NoiseMode = iota
	NoiseLearned
	NoiseAdaptive
)

func (m NoiseMode) String() string {
	switch m {
	case NoiseOff:
		return "off"
	case NoiseLearned:
		return "learned"
	case NoiseAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("NoiseMode(%d)", int(m))
	}
}

// ParseNoiseMode converte il nome passato da riga di comando.
func ParseNoiseMode(s string) (NoiseMode, error) {
	switch strings.ToLower(s) {
	case "", "off", "none":
		return NoiseOff, nil
	case "learned":
		return NoiseLearned, nil
	case "adaptive":
		return NoiseAdaptive, nil
	default:
		return NoiseOff, errors.Errorf("unknown noise mode %q", s)
	}
}

// Parametri di default
const (
	DefaultSigmaInit        = 0.5
	DefaultPerturbScale     = 0.05
	DefaultPerturbThreshold = 0.1
	DefaultPerturbAlpha     = 1.01
)

// Config descrive l'architettura della rete e il suo rumore.
type Config struct {
	Inputs    int
	Outputs   int
	Hidden    []int
	BatchSize int // dimensione fissa del grafo di training
	Noise     NoiseMode
	Loss      Criterion

	SigmaInit        float64 // sigma0 dei layer NoisyNet
	PerturbScale     float64 // scala iniziale della perturbazione adattiva
	PerturbThreshold float64 // distanza obiettivo per Adapt
	PerturbAlpha     float64

	Seed uint64
}

// DefaultConfig restituisce una configurazione con due layer nascosti.
func DefaultConfig(inputs, outputs, batchSize int) Config {
	return Config{
		Inputs:           inputs,
		Outputs:          outputs,
		Hidden:           []int{64, 64},
		BatchSize:        batchSize,
		Noise:            NoiseOff,
		Loss:             Huber,
		SigmaInit:        DefaultSigmaInit,
		PerturbScale:     DefaultPerturbScale,
		PerturbThreshold: DefaultPerturbThreshold,
		PerturbAlpha:     DefaultPerturbAlpha,
		Seed:             1,
	}
}

func (c Config) validate() error {
	if c.Inputs <= 0 || c.Outputs <= 0 {
		return errors.Errorf("invalid network shape %d -> %d", c.Inputs, c.Outputs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	for _, h := range c.Hidden {
		if h <= 0 {
			return errors.Errorf("hidden layer size must be positive, got %d", h)
		}
	}
	if c.Loss == nil {
		return errors.New("loss criterion is nil")
	}
	if c.Noise == NoiseAdaptive && c.PerturbAlpha <= 1 {
		return errors.Errorf("perturbation alpha must be > 1, got %v", c.PerturbAlpha)
	}
	return nil
}

// Network è una rete Q fully connected costruita con gorgonia.
//
// Il grafo ha dimensione di batch fissa e viene usato solo da Backward.
// Forward calcola le uscite direttamente sui tensori dei pesi, senza
// toccare il grafo, ed è quindi lo scope senza gradienti della rete.
type Network struct {
	cfg Config

	g          *gorgonia.ExprGraph
	x, y       *gorgonia.Node
	pred       *gorgonia.Node
	q          *gorgonia.Node
	loss       *gorgonia.Node
	layers     []*layer
	learnables gorgonia.Nodes
	vm         gorgonia.VM

	rng          *rand.Rand
	training     bool
	perturbScale float64
}

// NewNetwork crea una nuova rete e compila il suo grafo di training.
func NewNetwork(cfg Config) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	g := gorgonia.NewGraph()
	n := &Network{
		cfg:          cfg,
		g:            g,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		training:     true,
		perturbScale: cfg.PerturbScale,
	}

	n.x = gorgonia.NewMatrix(g,
		tensor.Float64,
		gorgonia.WithShape(cfg.BatchSize, cfg.Inputs),
		gorgonia.WithName("states"))
	n.y = gorgonia.NewVector(g,
		tensor.Float64,
		gorgonia.WithShape(cfg.BatchSize),
		gorgonia.WithName("expected"))

	sizes := append([]int{cfg.Inputs}, cfg.Hidden...)
	sizes = append(sizes, cfg.Outputs)

	h := n.x
	for i := 0; i < len(sizes)-1; i++ {
		l := newLayer(g, fmt.Sprintf("fc%d", i), sizes[i], sizes[i+1], i < len(sizes)-2, cfg.Noise == NoiseLearned, cfg.SigmaInit)
		out, err := l.graph(h)
		if err != nil {
			return nil, errors.Wrapf(err, "building layer %d", i)
		}
		n.layers = append(n.layers, l)
		n.learnables = append(n.learnables, l.params()...)
		h = out
	}
	n.pred = h

	var err error
	if n.q, err = gorgonia.Max(n.pred, 1); err != nil {
		return nil, errors.Wrap(err, "max over actions")
	}
	if n.loss, err = cfg.Loss(n.q, n.y); err != nil {
		return nil, errors.Wrap(err, "loss criterion")
	}
	if _, err = gorgonia.Grad(n.loss, n.learnables...); err != nil {
		return nil, errors.Wrap(err, "symbolic gradient")
	}

	n.vm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(n.learnables...))
	n.Resample()
	return n, nil
}

// Config restituisce la configurazione della rete.
func (n *Network) Config() Config {
	return n.cfg
}

// Train mette la rete in modalità training.
func (n *Network) Train() {
	n.training = true
}

// Eval mette la rete in modalità valutazione: il rumore appreso non viene
// applicato in Forward.
func (n *Network) Eval() {
	n.training = false
}

func (n *Network) Training() bool {
	return n.training
}

// Learnables restituisce i parametri addestrabili della rete.
func (n *Network) Learnables() gorgonia.Nodes {
	return n.learnables
}

// Forward calcola i valori Q di ogni azione per un batch di stati,
// senza registrare gradienti.
func (n *Network) Forward(states [][]float64) ([][]float64, error) {
	if len(states) == 0 {
		return nil, nil
	}
	backing, err := flatten(states, n.cfg.Inputs)
	if err != nil {
		return nil, err
	}

	h := tensor.New(tensor.WithShape(len(states), n.cfg.Inputs), tensor.WithBacking(backing))
	for i, l := range n.layers {
		w, b := l.effective(n.training)
		wT := tensor.New(tensor.WithShape(l.in, l.out), tensor.WithBacking(w))
		out, err := h.MatMul(wT)
		if err != nil {
			return nil, errors.Wrapf(err, "forward layer %d", i)
		}
		data := out.Data().([]float64)
		for j := range data {
			v := data[j] + b[j%l.out]
			if l.relu && v < 0 {
				v = 0
			}
			data[j] = v
		}
		h = out
	}

	return unflatten(h.Data().([]float64), n.cfg.Outputs), nil
}

// Backward esegue il passo con gradienti: forward del batch nel grafo,
// Q = max sulle azioni, loss rispetto a expected e backpropagation.
// Restituisce la loss e la testa Q (stati x azioni) già staccata dal grafo.
// I gradienti restano nei nodi fino al prossimo ZeroGrad.
func (n *Network) Backward(states [][]float64, expected []float64) (float64, [][]float64, error) {
	if len(states) != n.cfg.BatchSize || len(expected) != n.cfg.BatchSize {
		return 0, nil, errors.Wrapf(ErrBatchSize, "got %d states and %d targets, graph expects %d",
			len(states), len(expected), n.cfg.BatchSize)
	}
	backing, err := flatten(states, n.cfg.Inputs)
	if err != nil {
		return 0, nil, err
	}

	xT := tensor.New(tensor.WithShape(n.cfg.BatchSize, n.cfg.Inputs), tensor.WithBacking(backing))
	if err := gorgonia.Let(n.x, xT); err != nil {
		return 0, nil, errors.Wrap(err, "binding states")
	}
	yT := tensor.New(tensor.WithShape(n.cfg.BatchSize), tensor.WithBacking(append([]float64(nil), expected...)))
	if err := gorgonia.Let(n.y, yT); err != nil {
		return 0, nil, errors.Wrap(err, "binding targets")
	}
	if err := n.bindNoise(); err != nil {
		return 0, nil, err
	}

	if err := n.vm.RunAll(); err != nil {
		return 0, nil, errors.Wrap(err, "backprop")
	}

	loss, ok := n.loss.Value().Data().(float64)
	if !ok {
		return 0, nil, errors.New("invalid loss value")
	}
	pred, ok := n.pred.Value().Data().([]float64)
	if !ok {
		return 0, nil, errors.New("invalid prediction tensor type")
	}
	head := unflatten(append([]float64(nil), pred...), n.cfg.Outputs)
	return loss, head, nil
}

// ZeroGrad riporta la macchina all'inizio del nastro.
func (n *Network) ZeroGrad() {
	n.vm.Reset()
}

// GradNorm restituisce la norma L2 globale dei gradienti correnti.
func (n *Network) GradNorm() (float64, error) {
	grads, err := n.gradients()
	if err != nil {
		return 0, err
	}
	return globalNorm(grads), nil
}

func (n *Network) gradients() ([][]float64, error) {
	grads := make([][]float64, 0, len(n.learnables))
	for _, p := range n.learnables {
		g, err := p.Grad()
		if err != nil {
			return nil, errors.Wrapf(err, "gradient of %s", p.Name())
		}
		data, ok := g.Data().([]float64)
		if !ok {
			return nil, errors.Errorf("gradient of %s is not float64", p.Name())
		}
		grads = append(grads, data)
	}
	return grads, nil
}

func (n *Network) bindNoise() error {
	for _, l := range n.layers {
		if l.wEps == nil {
			continue
		}
		wT := tensor.New(tensor.WithShape(l.in, l.out), tensor.WithBacking(l.epsW))
		if err := gorgonia.Let(l.wEps, wT); err != nil {
			return errors.Wrap(err, "binding weight noise")
		}
		bT := tensor.New(tensor.WithShape(1, l.out), tensor.WithBacking(l.epsB))
		if err := gorgonia.Let(l.bEps, bT); err != nil {
			return errors.Wrap(err, "binding bias noise")
		}
	}
	return nil
}

// flatten trasforma righe di lunghezza width in un unico backing row-major.
func flatten(rows [][]float64, width int) ([]float64, error) {
	out := make([]float64, 0, len(rows)*width)
	for i, r := range rows {
		if len(r) != width {
			return nil, errors.Errorf("row %d has %d features, expected %d", i, len(r), width)
		}
		out = append(out, r...)
	}
	return out, nil
}

func unflatten(data []float64, width int) [][]float64 {
	rows := make([][]float64, len(data)/width)
	for i := range rows {
		rows[i] = data[i*width : (i+1)*width]
	}
	return rows
}

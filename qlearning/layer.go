package qlearning

import (
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// layer è un layer lineare, opzionalmente con rumore NoisyNet
// (w = mu + sigma * eps) e con una perturbazione additiva per il rumore
// adattivo, applicata solo in Forward.
type layer struct {
	in, out int
	relu    bool

	w, b           *gorgonia.Node
	wSigma, bSigma *gorgonia.Node
	wEps, bEps     *gorgonia.Node

	epsW, epsB   []float64
	pertW, pertB []float64
}

func newLayer(g *gorgonia.ExprGraph, name string, in, out int, relu, noisy bool, sigmaInit float64) *layer {
	l := &layer{in: in, out: out, relu: relu}

	l.w = gorgonia.NewMatrix(g,
		tensor.Float64,
		gorgonia.WithShape(in, out),
		gorgonia.WithName(name+"_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	l.b = gorgonia.NewMatrix(g,
		tensor.Float64,
		gorgonia.WithShape(1, out),
		gorgonia.WithName(name+"_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	if !noisy {
		return l
	}

	sigma := sigmaInit / math.Sqrt(float64(in))
	l.wSigma = gorgonia.NewMatrix(g,
		tensor.Float64,
		gorgonia.WithShape(in, out),
		gorgonia.WithName(name+"_w_sigma"),
		gorgonia.WithInit(gorgonia.ValuesOf(sigma)))
	l.bSigma = gorgonia.NewMatrix(g,
		tensor.Float64,
		gorgonia.WithShape(1, out),
		gorgonia.WithName(name+"_b_sigma"),
		gorgonia.WithInit(gorgonia.ValuesOf(sigma)))

	l.epsW = make([]float64, in*out)
	l.epsB = make([]float64, out)
	l.wEps = gorgonia.NewMatrix(g,
		tensor.Float64,
		gorgonia.WithShape(in, out),
		gorgonia.WithName(name+"_w_eps"))
	l.bEps = gorgonia.NewMatrix(g,
		tensor.Float64,
		gorgonia.WithShape(1, out),
		gorgonia.WithName(name+"_b_eps"))
	return l
}

// params restituisce i nodi addestrabili del layer.
func (l *layer) params() gorgonia.Nodes {
	if l.wSigma == nil {
		return gorgonia.Nodes{l.w, l.b}
	}
	return gorgonia.Nodes{l.w, l.b, l.wSigma, l.bSigma}
}

// graph aggiunge il layer al grafo di training.
func (l *layer) graph(x *gorgonia.Node) (*gorgonia.Node, error) {
	w, b := l.w, l.b
	if l.wSigma != nil {
		nw, err := gorgonia.HadamardProd(l.wSigma, l.wEps)
		if err != nil {
			return nil, err
		}
		if w, err = gorgonia.Add(l.w, nw); err != nil {
			return nil, err
		}
		nb, err := gorgonia.HadamardProd(l.bSigma, l.bEps)
		if err != nil {
			return nil, err
		}
		if b, err = gorgonia.Add(l.b, nb); err != nil {
			return nil, err
		}
	}

	out, err := gorgonia.Mul(x, w)
	if err != nil {
		return nil, err
	}
	if out, err = gorgonia.BroadcastAdd(out, b, nil, []byte{0}); err != nil {
		return nil, err
	}
	if l.relu {
		return gorgonia.Rectify(out)
	}
	return out, nil
}

// effective restituisce copie dei pesi effettivi usati da Forward.
func (l *layer) effective(learnedNoise bool) ([]float64, []float64) {
	w := append([]float64(nil), l.w.Value().Data().([]float64)...)
	b := append([]float64(nil), l.b.Value().Data().([]float64)...)

	if learnedNoise && l.wSigma != nil {
		ws := l.wSigma.Value().Data().([]float64)
		bs := l.bSigma.Value().Data().([]float64)
		for i := range w {
			w[i] += ws[i] * l.epsW[i]
		}
		for i := range b {
			b[i] += bs[i] * l.epsB[i]
		}
	}
	if l.pertW != nil {
		for i := range w {
			w[i] += l.pertW[i]
		}
		for i := range b {
			b[i] += l.pertB[i]
		}
	}
	return w, b
}

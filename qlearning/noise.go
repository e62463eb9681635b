package qlearning

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Resample estrae un nuovo campione di rumore fattorizzato per i layer
// NoisyNet. Non fa nulla se la rete non ha rumore appreso.
func (n *Network) Resample() {
	if n.cfg.Noise != NoiseLearned {
		return
	}
	for _, l := range n.layers {
		epsIn := factorised(n.rng, l.in)
		epsOut := factorised(n.rng, l.out)
		for i := 0; i < l.in; i++ {
			for j := 0; j < l.out; j++ {
				l.epsW[i*l.out+j] = epsIn[i] * epsOut[j]
			}
		}
		copy(l.epsB, epsOut)
	}
}

// Renoise estrae una nuova perturbazione gaussiana dei pesi con la scala
// corrente.
func (n *Network) Renoise() {
	for _, l := range n.layers {
		l.pertW = gaussian(n.rng, l.in*l.out, n.perturbScale)
		l.pertB = gaussian(n.rng, l.out, n.perturbScale)
	}
}

// Denoise rimuove la perturbazione dei pesi.
func (n *Network) Denoise() {
	for _, l := range n.layers {
		l.pertW, l.pertB = nil, nil
	}
}

// Perturbed indica se Forward sta usando pesi perturbati.
func (n *Network) Perturbed() bool {
	return len(n.layers) > 0 && n.layers[0].pertW != nil
}

// Adapt adatta la scala della perturbazione: la riduce se la distanza
// supera la soglia, altrimenti la aumenta.
func (n *Network) Adapt(distance float64) {
	if distance > n.cfg.PerturbThreshold {
		n.perturbScale /= n.cfg.PerturbAlpha
	} else {
		n.perturbScale *= n.cfg.PerturbAlpha
	}
}

// PerturbScale restituisce la scala corrente della perturbazione.
func (n *Network) PerturbScale() float64 {
	return n.perturbScale
}

// AdaptiveMetric è la distanza quadratica media tra due uscite della rete.
func (n *Network) AdaptiveMetric(a, b [][]float64) float64 {
	var fa, fb []float64
	for i := 0; i < len(a) && i < len(b); i++ {
		k := len(a[i])
		if len(b[i]) < k {
			k = len(b[i])
		}
		fa = append(fa, a[i][:k]...)
		fb = append(fb, b[i][:k]...)
	}
	if len(fa) == 0 {
		return 0
	}
	return floats.Distance(fa, fb, 2) / math.Sqrt(float64(len(fa)))
}

// factorised restituisce f(x) = sgn(x)*sqrt(|x|) per x ~ N(0,1).
func factorised(rng *rand.Rand, size int) []float64 {
	out := make([]float64, size)
	for i := range out {
		x := rng.NormFloat64()
		out[i] = math.Copysign(math.Sqrt(math.Abs(x)), x)
	}
	return out
}

func gaussian(rng *rand.Rand, size int, scale float64) []float64 {
	out := make([]float64, size)
	for i := range out {
		out[i] = rng.NormFloat64() * scale
	}
	return out
}

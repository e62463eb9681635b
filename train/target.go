package train

import (
	"github.com/pkg/errors"

	"noisydqn/qlearning"
)

// ExpectedQ calcola il target TD discount*targetQ + reward, dove targetQ è
// il massimo sulle azioni della rete target per il successore e vale zero
// per le transizioni segnate in mask.
//
// I successori terminali vengono passati alla rete come vettori nulli e
// poi mascherati.
func ExpectedQ(target Model, batch qlearning.Batch, mask []bool, discount float64) ([]float64, error) {
	n := batch.Len()
	if len(mask) != n || len(batch.Next) != n || len(batch.Rewards) != n {
		return nil, errors.Errorf("inconsistent batch: %d states, %d successors, %d rewards, %d mask",
			n, len(batch.Next), len(batch.Rewards), len(mask))
	}
	if n == 0 {
		return nil, nil
	}

	width := len(batch.States[0])
	next := make([][]float64, n)
	for i, s := range batch.Next {
		if mask[i] {
			next[i] = make([]float64, width)
			continue
		}
		next[i] = s
	}

	values, err := target.Forward(next)
	if err != nil {
		return nil, errors.Wrap(err, "target forward")
	}
	if len(values) != n {
		return nil, errors.Errorf("target returned %d rows for %d successors", len(values), n)
	}

	expected := make([]float64, n)
	for i := range expected {
		var targetQ float64
		if !mask[i] {
			targetQ = maxOf(values[i])
		}
		expected[i] = discount*targetQ + batch.Rewards[i]
	}
	return expected, nil
}

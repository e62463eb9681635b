package qlearning

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

func init() {
	gob.Register(&tensor.Dense{})
	gob.Register(map[string]*tensor.Dense{})
}

// StateDict è una copia completa dei parametri di una rete, indicizzata per
// nome del nodo.
type StateDict map[string]*tensor.Dense

// StateDict restituisce una copia profonda di tutti i parametri addestrabili.
func (n *Network) StateDict() StateDict {
	sd := make(StateDict, len(n.learnables))
	for _, p := range n.learnables {
		sd[p.Name()] = p.Value().(*tensor.Dense).Clone().(*tensor.Dense)
	}
	return sd
}

// LoadStateDict copia i valori di sd nei parametri della rete.
// I tensori vengono copiati, mai condivisi.
func (n *Network) LoadStateDict(sd StateDict) error {
	for _, p := range n.learnables {
		src, ok := sd[p.Name()]
		if !ok {
			return errors.Errorf("state dict is missing %q", p.Name())
		}
		dst := p.Value().(*tensor.Dense)
		if !src.Shape().Eq(dst.Shape()) {
			return errors.Errorf("shape mismatch for %q: %v vs %v", p.Name(), src.Shape(), dst.Shape())
		}
		if err := tensor.Copy(dst, src); err != nil {
			return errors.Wrapf(err, "copying %q", p.Name())
		}
	}
	return nil
}

// SaveWeights salva i pesi della rete su file.
func (n *Network) SaveWeights(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrap(err, "failed to create weights directory")
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create weights file")
	}
	defer f.Close()

	weights := map[string]*tensor.Dense(n.StateDict())
	if err := gob.NewEncoder(f).Encode(weights); err != nil {
		return errors.Wrap(err, "failed to encode weights")
	}
	return nil
}

// LoadWeights carica i pesi della rete da file.
func (n *Network) LoadWeights(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open weights file")
	}
	defer f.Close()

	var weights map[string]*tensor.Dense
	if err := gob.NewDecoder(f).Decode(&weights); err != nil {
		return errors.Wrap(err, "failed to decode weights")
	}
	return n.LoadStateDict(StateDict(weights))
}

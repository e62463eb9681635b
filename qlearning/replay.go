package qlearning

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// ErrNotEnoughTransitions viene restituito quando si chiede un batch più
// grande del numero di transizioni memorizzate.
var ErrNotEnoughTransitions = errors.New("not enough transitions in replay memory")

// Transition rappresenta un singolo step nell'ambiente.
// Next è nil quando l'episodio è terminato con questo step.
type Transition struct {
	State  []float64
	Action int
	Reward float64
	Next   []float64
	Done   bool
}

// Terminal indica se il successore è il marcatore terminale.
func (t Transition) Terminal() bool {
	return t.Next == nil
}

// Batch contiene le transizioni campionate come sequenze parallele.
type Batch struct {
	States  [][]float64
	Actions []int
	Rewards []float64
	Next    [][]float64
	Dones   []bool
}

// Len restituisce la dimensione del batch.
func (b Batch) Len() int {
	return len(b.States)
}

// TerminalMask segna le transizioni il cui successore è terminale.
func (b Batch) TerminalMask() []bool {
	mask := make([]bool, len(b.Next))
	for i, next := range b.Next {
		mask[i] = next == nil
	}
	return mask
}

// ReplayMemory memorizza le esperienze per il training.
// Quando è piena sovrascrive la transizione più vecchia.
type ReplayMemory struct {
	mu       sync.Mutex
	buffer   []Transition
	maxSize  int
	position int
	size     int
	rng      *rand.Rand
}

// NewReplayMemory crea una nuova memoria di replay con capacità maxSize.
func NewReplayMemory(maxSize int, seed uint64) (*ReplayMemory, error) {
	if maxSize <= 0 {
		return nil, errors.Errorf("replay memory capacity must be positive, got %d", maxSize)
	}
	return &ReplayMemory{
		buffer:  make([]Transition, maxSize),
		maxSize: maxSize,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Add aggiunge una transizione alla memoria.
func (m *ReplayMemory) Add(t Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buffer[m.position] = t
	m.position = (m.position + 1) % m.maxSize
	if m.size < m.maxSize {
		m.size++
	}
}

// Sample restituisce un batch casuale (con reinserimento) di transizioni.
func (m *ReplayMemory) Sample(batchSize int) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if batchSize <= 0 {
		return Batch{}, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if batchSize > m.size {
		return Batch{}, errors.Wrapf(ErrNotEnoughTransitions, "requested %d, have %d", batchSize, m.size)
	}

	batch := Batch{
		States:  make([][]float64, batchSize),
		Actions: make([]int, batchSize),
		Rewards: make([]float64, batchSize),
		Next:    make([][]float64, batchSize),
		Dones:   make([]bool, batchSize),
	}
	for i := 0; i < batchSize; i++ {
		t := m.buffer[m.rng.Intn(m.size)]
		batch.States[i] = t.State
		batch.Actions[i] = t.Action
		batch.Rewards[i] = t.Reward
		batch.Next[i] = t.Next
		batch.Dones[i] = t.Done
	}
	return batch, nil
}

// Len restituisce il numero di transizioni memorizzate.
func (m *ReplayMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *ReplayMemory) Capacity() int {
	return m.maxSize
}

package game

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// Reward del gioco
const (
	DeathReward    = -2.0
	FoodReward     = 5.0
	LengthBonus    = 0.2 // per ogni punto già segnato
	StepPenalty    = -0.005
	StarvationMult = 100 // passi senza cibo concessi per unità di lunghezza
)

// NumFeatures è la dimensione dello stato: 3 pericoli (sinistra, avanti,
// destra) + 4 direzioni del cibo (su, destra, giù, sinistra).
const NumFeatures = 7

// Game è un ambiente Snake a singolo serpente con muri.
type Game struct {
	Width, Height int

	Body      []Point // la testa è l'ultimo elemento
	Direction Direction
	Food      Point
	Score     int
	Dead      bool

	sinceFood int
	rng       *rand.Rand
}

// NewGame crea un nuovo gioco su una griglia width x height.
func NewGame(width, height int, seed uint64) (*Game, error) {
	if width < 4 || height < 4 {
		return nil, errors.Errorf("grid %dx%d is too small", width, height)
	}
	g := &Game{
		Width:  width,
		Height: height,
		rng:    rand.New(rand.NewSource(seed)),
	}
	g.reset()
	return g, nil
}

// NumActions restituisce il numero di azioni relative.
func (g *Game) NumActions() int {
	return NumActions
}

// Reset inizia un nuovo episodio e restituisce lo stato iniziale.
func (g *Game) Reset() ([]float64, error) {
	g.reset()
	return g.State(), nil
}

func (g *Game) reset() {
	start := Point{X: g.Width / 2, Y: g.Height / 2}
	g.Body = []Point{start}
	g.Direction = Right
	g.Score = 0
	g.Dead = false
	g.sinceFood = 0
	g.Food = g.spawnFood()
}

// Head restituisce la testa del serpente.
func (g *Game) Head() Point {
	return g.Body[len(g.Body)-1]
}

// Step applica un'azione relativa e restituisce stato, reward e fine partita.
func (g *Game) Step(action int) ([]float64, float64, bool, error) {
	if g.Dead {
		return nil, 0, true, errors.New("step on finished game")
	}
	if action < 0 || action >= NumActions {
		return nil, 0, false, errors.Errorf("invalid action %d", action)
	}

	g.Direction = g.Direction.apply(action)
	newHead := g.Head().add(g.Direction.ToPoint())
	g.sinceFood++

	eating := newHead == g.Food
	// Senza cibo la coda si libera in questo stesso passo.
	body := g.Body
	if !eating {
		body = g.Body[1:]
	}
	if g.outside(newHead) || occupied(newHead, body) {
		g.Dead = true
		return g.State(), DeathReward, true, nil
	}

	g.Body = append(g.Body, newHead)
	reward := StepPenalty
	if eating {
		reward = FoodReward + float64(g.Score)*LengthBonus
		g.Score++
		g.sinceFood = 0
		if len(g.Body) == g.Width*g.Height {
			// Griglia piena
			g.Dead = true
			return g.State(), reward, true, nil
		}
		g.Food = g.spawnFood()
	} else {
		g.Body = g.Body[1:]
	}

	if g.sinceFood > StarvationMult*len(g.Body) {
		g.Dead = true
		return g.State(), DeathReward, true, nil
	}
	return g.State(), reward, false, nil
}

// State restituisce il vettore di stato: pericoli relativi e direzione del
// cibo in coordinate assolute.
func (g *Game) State() []float64 {
	head := g.Head()
	state := make([]float64, NumFeatures)

	dirs := []Direction{g.Direction.TurnLeft(), g.Direction, g.Direction.TurnRight()}
	for i, d := range dirs {
		if g.isDanger(head.add(d.ToPoint())) {
			state[i] = 1
		}
	}

	if g.Food.Y < head.Y {
		state[3] = 1
	}
	if g.Food.X > head.X {
		state[4] = 1
	}
	if g.Food.Y > head.Y {
		state[5] = 1
	}
	if g.Food.X < head.X {
		state[6] = 1
	}
	return state
}

func (g *Game) isDanger(p Point) bool {
	return g.outside(p) || occupied(p, g.Body)
}

func (g *Game) outside(p Point) bool {
	return p.X < 0 || p.X >= g.Width || p.Y < 0 || p.Y >= g.Height
}

func occupied(p Point, body []Point) bool {
	for _, sp := range body {
		if p == sp {
			return true
		}
	}
	return false
}

func (g *Game) spawnFood() Point {
	for {
		food := Point{
			X: g.rng.Intn(g.Width),
			Y: g.rng.Intn(g.Height),
		}

		collision := false
		for _, p := range g.Body {
			if p == food {
				collision = true
				break
			}
		}
		if !collision {
			return food
		}
	}
}

package game

// Point è una cella della griglia.
type Point struct {
	X, Y int
}

// Direction rappresenta una direzione cardinale
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// ToPoint converte una Direction in un vettore di spostamento
func (d Direction) ToPoint() Point {
	switch d {
	case Up:
		return Point{X: 0, Y: -1}
	case Right:
		return Point{X: 1, Y: 0}
	case Down:
		return Point{X: 0, Y: 1}
	default:
		return Point{X: -1, Y: 0}
	}
}

// TurnLeft restituisce la direzione dopo una rotazione a sinistra.
func (d Direction) TurnLeft() Direction {
	return (d + 3) % 4
}

// TurnRight restituisce la direzione dopo una rotazione a destra.
func (d Direction) TurnRight() Direction {
	return (d + 1) % 4
}

// Azioni relative alla direzione corrente.
const (
	TurnLeft = iota
	Straight
	TurnRight

	NumActions
)

// apply converte un'azione relativa in una direzione assoluta.
func (d Direction) apply(action int) Direction {
	switch action {
	case TurnLeft:
		return d.TurnLeft()
	case TurnRight:
		return d.TurnRight()
	default:
		return d
	}
}

func (p Point) add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

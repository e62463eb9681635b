package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionTurns(t *testing.T) {
	assert.Equal(t, Left, Up.TurnLeft())
	assert.Equal(t, Right, Up.TurnRight())
	assert.Equal(t, Up, Left.TurnRight())
	assert.Equal(t, Down, Left.TurnLeft())
	assert.Equal(t, Point{X: 0, Y: 1}, Down.ToPoint())
}

func TestNewGame(t *testing.T) {
	_, err := NewGame(2, 10, 1)
	require.Error(t, err)

	g, err := NewGame(5, 5, 1)
	require.NoError(t, err)
	state, err := g.Reset()
	require.NoError(t, err)
	assert.Len(t, state, NumFeatures)
	assert.Equal(t, Point{X: 2, Y: 2}, g.Head())
	assert.Equal(t, Right, g.Direction)
	assert.NotEqual(t, g.Head(), g.Food)
	assert.Equal(t, 3, g.NumActions())
}

func TestWallCollision(t *testing.T) {
	g, err := NewGame(5, 5, 1)
	require.NoError(t, err)
	g.Food = Point{X: 0, Y: 0}

	_, reward, done, err := g.Step(Straight)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, StepPenalty, reward)

	state, _, done, err := g.Step(Straight)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1.0, state[1], "wall ahead")

	_, reward, done, err = g.Step(Straight)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, DeathReward, reward)

	_, _, _, err = g.Step(Straight)
	require.Error(t, err)
}

func TestEatFood(t *testing.T) {
	g, err := NewGame(6, 6, 1)
	require.NoError(t, err)
	g.Food = Point{X: 4, Y: 3}

	_, reward, done, err := g.Step(Straight)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, FoodReward, reward)
	assert.Equal(t, 1, g.Score)
	assert.Len(t, g.Body, 2)
	assert.NotContains(t, g.Body, g.Food)
}

func TestTurnAndFoodFeatures(t *testing.T) {
	g, err := NewGame(6, 6, 1)
	require.NoError(t, err)
	g.Food = Point{X: 0, Y: 0}

	state, _, _, err := g.Step(TurnLeft)
	require.NoError(t, err)
	assert.Equal(t, Up, g.Direction)
	assert.Equal(t, Point{X: 3, Y: 2}, g.Head())
	// Cibo in alto a sinistra.
	assert.Equal(t, []float64{1, 0, 0, 1}, state[3:])

	_, _, _, err = g.Step(7)
	require.Error(t, err)
}

func TestMoveIntoLeavingTail(t *testing.T) {
	g, err := NewGame(6, 6, 1)
	require.NoError(t, err)
	g.Body = []Point{{X: 2, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 2}}
	g.Direction = Up
	g.Food = Point{X: 0, Y: 0}

	_, reward, done, err := g.Step(TurnLeft)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, StepPenalty, reward)
	assert.Equal(t, Point{X: 2, Y: 2}, g.Head())
	assert.Equal(t, []Point{{X: 2, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 2}, {X: 2, Y: 2}}, g.Body)
}

func TestSelfCollision(t *testing.T) {
	g, err := NewGame(6, 6, 1)
	require.NoError(t, err)
	g.Body = []Point{{X: 1, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 2}}
	g.Direction = Up
	g.Food = Point{X: 0, Y: 0}

	_, reward, done, err := g.Step(TurnLeft)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, DeathReward, reward)
}

func TestEatingKeepsTail(t *testing.T) {
	g, err := NewGame(6, 6, 1)
	require.NoError(t, err)
	g.Body = []Point{{X: 2, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 2}}
	g.Direction = Up
	g.Food = Point{X: 2, Y: 2}

	// Mangiando la coda resta ferma: entrarci è fatale.
	_, reward, done, err := g.Step(TurnLeft)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, DeathReward, reward)
}

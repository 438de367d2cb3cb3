package random

import (
	"math/rand"

	"github.com/they4kman/sweepd/game"
)

// Director opens cells at random. Question marks are cleared before they can
// be opened; flags are left alone.
type Director struct {
	rng *rand.Rand
}

func New(rng *rand.Rand) *Director {
	return &Director{rng: rng}
}

func (director *Director) Next(board game.PublicBoard) (game.Move, bool) {
	unopened := cellsInState(board, game.Unopened)
	if len(unopened) > 0 {
		return director.pick(unopened, game.Open), true
	}

	marked := cellsInState(board, game.QuestionMark)
	if len(marked) > 0 {
		return director.pick(marked, game.Clear), true
	}
	return game.Move{}, false
}

// Pick chooses one of coords to open
func (director *Director) Pick(board game.PublicBoard, coords []game.Coord) (game.Move, bool) {
	if len(coords) == 0 {
		return game.Move{}, false
	}
	coord := coords[director.rng.Intn(len(coords))]
	return OpenMove(board, coord), true
}

func (director *Director) pick(coords []game.Coord, action game.Action) game.Move {
	coord := coords[director.rng.Intn(len(coords))]
	return game.Move{Action: action, Row: coord.Row, Column: coord.Column}
}

// OpenMove is the move that makes progress towards opening coord
func OpenMove(board game.PublicBoard, coord game.Coord) game.Move {
	action := game.Open
	if cell, _ := board.CellAt(coord); cell.State == game.QuestionMark {
		action = game.Clear
	}
	return game.Move{Action: action, Row: coord.Row, Column: coord.Column}
}

func cellsInState(board game.PublicBoard, state game.CellState) []game.Coord {
	var coords []game.Coord
	for row, cells := range board.Rows {
		for column, cell := range cells {
			if cell.State == state {
				coords = append(coords, game.Coord{Row: row, Column: column})
			}
		}
	}
	return coords
}

package constraint

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/they4kman/sweepd/director/random"
	"github.com/they4kman/sweepd/game"
	"github.com/they4kman/sweepd/util/collections"
)

// Director plays from what opened numbers prove about their hidden
// neighbours, guessing only when nothing is certain
type Director struct {
	random *random.Director
}

// Observation states that exactly numMines of cells are mines
type Observation struct {
	origin   *game.Coord
	numMines int
	cells    collections.Set[game.Coord]
}

func (observation Observation) String() string {
	coords := observation.sortedCells()
	cellsRepr := make([]string, len(coords))
	for i, coord := range coords {
		cellsRepr[i] = fmt.Sprintf("(%d, %d)", coord.Row, coord.Column)
	}

	originRepr := "?"
	if observation.origin != nil {
		originRepr = fmt.Sprintf("(%d, %d)", observation.origin.Row, observation.origin.Column)
	}
	return fmt.Sprintf("Obs[%8s, %d ε %s]", originRepr, observation.numMines, strings.Join(cellsRepr, ", "))
}

func (observation Observation) MineProbability() float64 {
	return float64(observation.numMines) / float64(observation.cells.Len())
}

func (observation Observation) sortedCells() []game.Coord {
	coords := make([]game.Coord, 0, observation.cells.Len())
	for coord := range observation.cells {
		coords = append(coords, coord)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Row != coords[j].Row {
			return coords[i].Row < coords[j].Row
		}
		return coords[i].Column < coords[j].Column
	})
	return coords
}

func New(rng *rand.Rand) *Director {
	return &Director{random: random.New(rng)}
}

func (director *Director) Next(board game.PublicBoard) (game.Move, bool) {
	observations := observe(board)

	actors := []func(game.PublicBoard, []Observation) (game.Move, bool){
		director.actDeliberate,
		director.actLowestProbability,
	}
	for _, actor := range actors {
		if move, ok := actor(board, observations); ok {
			return move, true
		}
	}
	return director.random.Next(board)
}

// actDeliberate acts on an observation that leaves no doubt: no mines means
// every cell is safe, as many mines as cells means every cell is mined
func (director *Director) actDeliberate(board game.PublicBoard, observations []Observation) (game.Move, bool) {
	for _, observation := range observations {
		switch {
		case observation.numMines == 0:
			return random.OpenMove(board, observation.sortedCells()[0]), true
		case observation.numMines == observation.cells.Len():
			coord := observation.sortedCells()[0]
			return game.Move{Action: game.Flag, Row: coord.Row, Column: coord.Column}, true
		}
	}
	return game.Move{}, false
}

// actLowestProbability guesses among the cells the observations rate least
// likely to be mined
func (director *Director) actLowestProbability(board game.PublicBoard, observations []Observation) (game.Move, bool) {
	cellProbabilities := make(map[game.Coord]float64)
	for _, observation := range observations {
		probability := observation.MineProbability()
		for coord := range observation.cells {
			if past, ok := cellProbabilities[coord]; !ok || probability > past {
				// a cell is only as safe as its most pessimistic observation
				cellProbabilities[coord] = probability
			}
		}
	}
	if len(cellProbabilities) == 0 {
		return game.Move{}, false
	}

	lowest := 1.0
	for _, probability := range cellProbabilities {
		if probability < lowest {
			lowest = probability
		}
	}
	if lowest >= unconstrainedProbability(board, cellProbabilities) {
		return game.Move{}, false
	}

	var candidates []game.Coord
	for coord, probability := range cellProbabilities {
		if probability == lowest {
			candidates = append(candidates, coord)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Row != candidates[j].Row {
			return candidates[i].Row < candidates[j].Row
		}
		return candidates[i].Column < candidates[j].Column
	})
	return director.random.Pick(board, candidates)
}

// unconstrainedProbability estimates the odds for a hidden cell no number
// touches, from the mines not yet flagged
func unconstrainedProbability(board game.PublicBoard, constrained map[game.Coord]float64) float64 {
	hidden, flagged := 0, 0
	for _, cells := range board.Rows {
		for _, cell := range cells {
			switch cell.State {
			case game.Unopened, game.QuestionMark:
				hidden++
			case game.Flagged:
				flagged++
			}
		}
	}
	if hidden <= len(constrained) {
		return 1
	}
	remaining := board.NumMines - flagged
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining) / float64(hidden)
}

func isHidden(cell game.PublicCell) bool {
	return cell.State == game.Unopened || cell.State == game.QuestionMark
}

// observe collects one observation per opened number with hidden neighbours,
// plus those implied where one observation contains another
func observe(board game.PublicBoard) []Observation {
	var observations []Observation
	for row, cells := range board.Rows {
		for column, cell := range cells {
			if cell.State != game.Opened || cell.SurroundingMines == nil || *cell.SurroundingMines == 0 {
				continue
			}

			origin := game.Coord{Row: row, Column: column}
			observation := Observation{
				origin:   &origin,
				numMines: *cell.SurroundingMines,
				cells:    collections.NewSet[game.Coord](),
			}
			for _, neighbor := range board.Neighbors(origin) {
				neighborCell, _ := board.CellAt(neighbor)
				switch {
				case neighborCell.State == game.Flagged:
					observation.numMines--
				case isHidden(neighborCell):
					observation.cells.Add(neighbor)
				}
			}

			// a negative count means a wrong flag; nothing it says can be trusted
			if observation.cells.Len() > 0 && observation.numMines >= 0 {
				observations = append(observations, observation)
			}
		}
	}

	return append(observations, simplify(observations)...)
}

// simplify splits B into B\A whenever A's cells are a subset of B's
func simplify(observations []Observation) []Observation {
	var derived []Observation
	for i, subset := range observations {
		for j, superset := range observations {
			if i == j || subset.cells.Len() >= superset.cells.Len() {
				continue
			}
			if !subset.cells.SubsetOf(superset.cells) {
				continue
			}
			split := Observation{
				numMines: superset.numMines - subset.numMines,
				cells:    superset.cells.Difference(subset.cells),
			}
			if split.numMines >= 0 && split.numMines <= split.cells.Len() {
				derived = append(derived, split)
			}
		}
	}
	return derived
}

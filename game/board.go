package game

import (
	"math/rand"

	"github.com/pkg/errors"
)

type Coord struct {
	Row    int `json:"row" yaml:"row"`
	Column int `json:"column" yaml:"column"`
}

type Board struct {
	rowSize, columnSize int
	numMines            int
	rows                [][]Cell
}

var neighborOffsets = [8]Coord{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// MineCount is the number of mines a board of the given size receives:
// floor(rows*columns*percentage/100), clamped to the number of cells
func MineCount(rowSize, columnSize, minePercentage int) int {
	numCells := rowSize * columnSize
	count := numCells * minePercentage / 100
	return min(max(count, 0), numCells)
}

func validateDimensions(rowSize, columnSize int) error {
	if rowSize <= 0 || columnSize <= 0 || rowSize > MaxDimension || columnSize > MaxDimension {
		return errors.Wrapf(ErrInvalidDimensions, "%dx%d", rowSize, columnSize)
	}
	return nil
}

// NewBoard allocates a board and scatters its mines using rng. Adjacency
// counts are computed only once every mine has been placed.
func NewBoard(rowSize, columnSize, minePercentage int, rng *rand.Rand) (*Board, error) {
	if err := validateDimensions(rowSize, columnSize); err != nil {
		return nil, err
	}
	if minePercentage < 0 || minePercentage > 100 {
		return nil, errors.Wrapf(ErrInvalidMinePercentage, "%d", minePercentage)
	}

	board := allocateBoard(rowSize, columnSize)
	board.numMines = MineCount(rowSize, columnSize, minePercentage)

	// Shuffle cell indexes and mine the first numMines of them
	cellIndexes := rng.Perm(rowSize * columnSize)
	for _, cellIdx := range cellIndexes[:board.numMines] {
		board.cellAt(board.coordOf(cellIdx)).mined = true
	}

	board.computeSurroundingMines()
	return board, nil
}

func allocateBoard(rowSize, columnSize int) *Board {
	board := &Board{
		rowSize:    rowSize,
		columnSize: columnSize,
		rows:       make([][]Cell, rowSize),
	}
	for row := range board.rows {
		board.rows[row] = make([]Cell, columnSize)
	}
	return board
}

func (board *Board) computeSurroundingMines() {
	for row := range board.rows {
		for column := range board.rows[row] {
			board.rows[row][column].surroundingMines = board.countMinedNeighbors(Coord{row, column})
		}
	}
}

func (board *Board) countMinedNeighbors(coord Coord) int {
	count := 0
	for _, neighbor := range board.Neighbors(coord) {
		if board.cellAt(neighbor).mined {
			count++
		}
	}
	return count
}

func (board *Board) coordOf(cellIdx int) Coord {
	return Coord{Row: cellIdx / board.columnSize, Column: cellIdx % board.columnSize}
}

func (board *Board) cellAt(coord Coord) *Cell {
	return &board.rows[coord.Row][coord.Column]
}

func (board *Board) RowSize() int {
	return board.rowSize
}

func (board *Board) ColumnSize() int {
	return board.columnSize
}

func (board *Board) NumCells() int {
	return board.rowSize * board.columnSize
}

func (board *Board) NumMines() int {
	return board.numMines
}

// Contains reports whether coord lies on the board
func (board *Board) Contains(coord Coord) bool {
	return coord.Row >= 0 && coord.Row < board.rowSize &&
		coord.Column >= 0 && coord.Column < board.columnSize
}

// CellAt returns a copy of the cell at coord. coord must be on the board.
func (board *Board) CellAt(coord Coord) Cell {
	return *board.cellAt(coord)
}

// Neighbors returns the in-bounds cells of the 8-neighborhood of coord
func (board *Board) Neighbors(coord Coord) []Coord {
	neighbors := make([]Coord, 0, len(neighborOffsets))
	for _, offset := range neighborOffsets {
		neighbor := Coord{Row: coord.Row + offset.Row, Column: coord.Column + offset.Column}
		if board.Contains(neighbor) {
			neighbors = append(neighbors, neighbor)
		}
	}
	return neighbors
}

// ApplyAction applies action to the cell at coord, reporting whether the
// cell changed. coord must be on the board.
func (board *Board) ApplyAction(coord Coord, action Action) bool {
	return board.cellAt(coord).ApplyAction(action)
}

// HasRemainingCellsUnopened reports whether some safe cell is still not
// opened. Marks on mined cells play no part.
func (board *Board) HasRemainingCellsUnopened() bool {
	for _, row := range board.rows {
		for _, cell := range row {
			if !cell.mined && cell.state != Opened {
				return true
			}
		}
	}
	return false
}

// HasOpenedMine reports whether a mined cell has been opened
func (board *Board) HasOpenedMine() bool {
	for _, row := range board.rows {
		for _, cell := range row {
			if cell.mined && cell.state == Opened {
				return true
			}
		}
	}
	return false
}

// CountState returns how many cells are in the given state
func (board *Board) CountState(state CellState) int {
	count := 0
	for _, row := range board.rows {
		for _, cell := range row {
			if cell.state == state {
				count++
			}
		}
	}
	return count
}

func (board *Board) String() string {
	out := make([]byte, 0, board.rowSize*(board.columnSize+1))
	for _, row := range board.rows {
		for _, cell := range row {
			out = append(out, cell.String()...)
		}
		out = append(out, '\n')
	}
	return string(out)
}

package game

import (
	"strconv"
	"strings"
	"time"
)

// PublicCell is a cell as a player may see it: mined and surroundingMines
// stay hidden until the cell is opened or the game is over
type PublicCell struct {
	State            CellState `json:"state" yaml:"state"`
	Mined            *bool     `json:"mined,omitempty" yaml:"mined,omitempty"`
	SurroundingMines *int      `json:"surroundingMines,omitempty" yaml:"surroundingMines,omitempty"`
}

type PublicBoard struct {
	RowSize    int            `json:"rowSize" yaml:"rowSize"`
	ColumnSize int            `json:"columnSize" yaml:"columnSize"`
	NumMines   int            `json:"numMines" yaml:"numMines"`
	Rows       [][]PublicCell `json:"rows" yaml:"rows"`
}

type PublicGame struct {
	ID                   string      `json:"id" yaml:"id"`
	UserName             string      `json:"userName" yaml:"userName"`
	StartTime            time.Time   `json:"startTime" yaml:"startTime"`
	TimeElapsedMillis    int64       `json:"timeElapsedMillis" yaml:"timeElapsedMillis"`
	TimeElapsedFormatted string      `json:"timeElapsedFormatted" yaml:"timeElapsedFormatted"`
	State                GameState   `json:"state" yaml:"state"`
	Outcome              string      `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Detonated            *Coord      `json:"detonated,omitempty" yaml:"detonated,omitempty"`
	Board                PublicBoard `json:"board" yaml:"board"`
}

const (
	OutcomeWon  = "WON"
	OutcomeLost = "LOST"
)

// Public projects the game onto what a client may be shown
func (game *Game) Public() PublicGame {
	elapsed := game.Elapsed()
	public := PublicGame{
		ID:                   game.id,
		UserName:             game.userName,
		StartTime:            game.startTime,
		TimeElapsedMillis:    elapsed.Milliseconds(),
		TimeElapsedFormatted: FormatElapsed(elapsed),
		State:                game.state,
		Board:                game.board.public(game.state == Finished),
	}
	if coord, ok := game.Detonated(); ok {
		public.Detonated = &coord
	}
	switch {
	case game.Lost():
		public.Outcome = OutcomeLost
	case game.Won():
		public.Outcome = OutcomeWon
	}
	return public
}

func (board *Board) public(revealMines bool) PublicBoard {
	rows := make([][]PublicCell, board.rowSize)
	for row, cells := range board.rows {
		rows[row] = make([]PublicCell, len(cells))
		for column, cell := range cells {
			public := PublicCell{State: cell.state}
			if cell.state == Opened || revealMines {
				mined := cell.mined
				public.Mined = &mined
			}
			if cell.state == Opened {
				surroundingMines := cell.surroundingMines
				public.SurroundingMines = &surroundingMines
			}
			rows[row][column] = public
		}
	}
	return PublicBoard{
		RowSize:    board.rowSize,
		ColumnSize: board.columnSize,
		NumMines:   board.numMines,
		Rows:       rows,
	}
}

func (cell PublicCell) IsMined() bool {
	return cell.Mined != nil && *cell.Mined
}

func (cell PublicCell) String() string {
	switch {
	case cell.State == Opened && cell.IsMined():
		return "*"
	case cell.State == Opened && cell.SurroundingMines != nil && *cell.SurroundingMines > 0:
		return strconv.Itoa(*cell.SurroundingMines)
	case cell.State == Opened:
		return "."
	case cell.State == Flagged:
		return "f"
	case cell.State == QuestionMark:
		return "?"
	case cell.IsMined():
		// revealed once the game is over
		return "x"
	default:
		return "#"
	}
}

// CellAt returns the cell at coord, or false when coord is off the board
func (board PublicBoard) CellAt(coord Coord) (PublicCell, bool) {
	if coord.Row < 0 || coord.Row >= len(board.Rows) || coord.Column < 0 || coord.Column >= len(board.Rows[coord.Row]) {
		return PublicCell{}, false
	}
	return board.Rows[coord.Row][coord.Column], true
}

func (board PublicBoard) Neighbors(coord Coord) []Coord {
	neighbors := make([]Coord, 0, len(neighborOffsets))
	for _, offset := range neighborOffsets {
		neighbor := Coord{Row: coord.Row + offset.Row, Column: coord.Column + offset.Column}
		if _, ok := board.CellAt(neighbor); ok {
			neighbors = append(neighbors, neighbor)
		}
	}
	return neighbors
}

func (board PublicBoard) String() string {
	var builder strings.Builder
	for _, row := range board.Rows {
		for _, cell := range row {
			builder.WriteString(cell.String())
		}
		builder.WriteByte('\n')
	}
	return builder.String()
}

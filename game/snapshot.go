package game

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type CellSnapshot struct {
	Mined            bool      `json:"mined" yaml:"mined"`
	State            CellState `json:"state" yaml:"state"`
	SurroundingMines int       `json:"surroundingMines" yaml:"surroundingMines"`
}

type BoardSnapshot struct {
	RowSize    int              `json:"rowSize" yaml:"rowSize"`
	ColumnSize int              `json:"columnSize" yaml:"columnSize"`
	Rows       [][]CellSnapshot `json:"rows" yaml:"rows"`
}

// Snapshot is the complete persisted state of a game
type Snapshot struct {
	ID                string        `json:"id" yaml:"id"`
	UserName          string        `json:"userName" yaml:"userName"`
	StartTime         time.Time     `json:"startTime" yaml:"startTime"`
	TimeElapsedMillis int64         `json:"timeElapsedMillis" yaml:"timeElapsedMillis"`
	State             GameState     `json:"state" yaml:"state"`
	Board             BoardSnapshot `json:"board" yaml:"board"`

	// Detonated is the mine that lost the game, set only on a loss
	Detonated *Coord `json:"detonated,omitempty" yaml:"detonated,omitempty"`
}

func (game *Game) Snapshot() *Snapshot {
	board := game.board
	rows := make([][]CellSnapshot, board.rowSize)
	for row, cells := range board.rows {
		rows[row] = make([]CellSnapshot, len(cells))
		for column, cell := range cells {
			rows[row][column] = CellSnapshot{
				Mined:            cell.mined,
				State:            cell.state,
				SurroundingMines: cell.surroundingMines,
			}
		}
	}

	var detonated *Coord
	if game.detonated != nil {
		coord := *game.detonated
		detonated = &coord
	}

	return &Snapshot{
		ID:                game.id,
		UserName:          game.userName,
		StartTime:         game.startTime,
		TimeElapsedMillis: game.timeElapsed.Milliseconds(),
		State:             game.state,
		Board: BoardSnapshot{
			RowSize:    board.rowSize,
			ColumnSize: board.columnSize,
			Rows:       rows,
		},
		Detonated: detonated,
	}
}

// FromSnapshot rebuilds a game, rejecting snapshots whose shape or adjacency
// counts do not describe a consistent board
func FromSnapshot(snapshot *Snapshot, options ...Option) (*Game, error) {
	if snapshot == nil {
		return nil, errors.Wrap(ErrInvalidSnapshot, "nil snapshot")
	}
	if !snapshot.State.Valid() {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "game state %d", int(snapshot.State))
	}
	if snapshot.TimeElapsedMillis < 0 {
		return nil, errors.Wrap(ErrInvalidSnapshot, "negative elapsed time")
	}

	board, err := snapshot.Board.restore()
	if err != nil {
		return nil, err
	}

	if detonated := snapshot.Detonated; detonated != nil {
		if snapshot.State != Finished {
			return nil, errors.Wrapf(ErrInvalidSnapshot, "detonated mine in a %s game", snapshot.State)
		}
		if !board.Contains(*detonated) || !board.cellAt(*detonated).mined {
			return nil, errors.Wrapf(ErrInvalidSnapshot, "detonated cell (%d, %d) is not a mine", detonated.Row, detonated.Column)
		}
	}

	game := newGame(options)
	game.id = snapshot.ID
	game.userName = snapshot.UserName
	game.startTime = snapshot.StartTime
	game.timeElapsed = time.Duration(snapshot.TimeElapsedMillis) * time.Millisecond
	game.state = snapshot.State
	game.board = board
	if snapshot.Detonated != nil {
		coord := *snapshot.Detonated
		game.detonated = &coord
	}
	return game, nil
}

func (snapshot BoardSnapshot) restore() (*Board, error) {
	if err := validateDimensions(snapshot.RowSize, snapshot.ColumnSize); err != nil {
		return nil, errors.Wrap(ErrInvalidSnapshot, err.Error())
	}
	if len(snapshot.Rows) != snapshot.RowSize {
		return nil, errors.Wrapf(ErrInvalidSnapshot, "%d rows, expected %d", len(snapshot.Rows), snapshot.RowSize)
	}

	board := allocateBoard(snapshot.RowSize, snapshot.ColumnSize)
	for row, cells := range snapshot.Rows {
		if len(cells) != snapshot.ColumnSize {
			return nil, errors.Wrapf(ErrInvalidSnapshot, "row %d has %d cells, expected %d", row, len(cells), snapshot.ColumnSize)
		}
		for column, cell := range cells {
			if !cell.State.Valid() {
				return nil, errors.Wrapf(ErrInvalidSnapshot, "cell (%d, %d) state %d", row, column, int(cell.State))
			}
			board.rows[row][column] = Cell{
				mined:            cell.Mined,
				state:            cell.State,
				surroundingMines: cell.SurroundingMines,
			}
			if cell.Mined {
				board.numMines++
			}
		}
	}

	for row, cells := range board.rows {
		for column, cell := range cells {
			if expected := board.countMinedNeighbors(Coord{row, column}); cell.surroundingMines != expected {
				return nil, errors.Wrapf(ErrInvalidSnapshot, "cell (%d, %d) counts %d surrounding mines, board has %d",
					row, column, cell.surroundingMines, expected)
			}
		}
	}

	return board, nil
}

// Clone returns a deep copy, sharing no slices with snapshot
func (snapshot *Snapshot) Clone() *Snapshot {
	clone := *snapshot
	clone.Board.Rows = make([][]CellSnapshot, len(snapshot.Board.Rows))
	for row, cells := range snapshot.Board.Rows {
		clone.Board.Rows[row] = append([]CellSnapshot(nil), cells...)
	}
	if snapshot.Detonated != nil {
		coord := *snapshot.Detonated
		clone.Detonated = &coord
	}
	return &clone
}

func (snapshot *Snapshot) Serialize() ([]byte, error) {
	out, err := yaml.Marshal(snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "serialize snapshot")
	}
	return out, nil
}

func LoadSnapshot(in []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := yaml.Unmarshal(in, &snapshot); err != nil {
		return nil, errors.Wrap(ErrInvalidSnapshot, err.Error())
	}
	return &snapshot, nil
}

package game

import "github.com/pkg/errors"

// ErrRejected classifies every error raised while guarding a move; test for
// it with errors.Is.
var ErrRejected = errors.New("request rejected")

var (
	ErrOutOfBounds   = rejection("index out of bounds")
	ErrNotInProgress = rejection("game is not in progress")
	ErrInvalidAction = rejection("invalid action")
)

var (
	ErrInvalidDimensions     = errors.New("invalid board dimensions")
	ErrInvalidMinePercentage = errors.New("mine percentage must be within [0, 100]")
	ErrInvalidSnapshot       = errors.New("invalid snapshot")
)

type rejectedError struct {
	msg string
}

func rejection(msg string) error {
	return &rejectedError{msg: msg}
}

func (err *rejectedError) Error() string {
	return err.msg
}

func (err *rejectedError) Is(target error) bool {
	return target == ErrRejected
}

type Move struct {
	Action Action `json:"action" yaml:"action"`
	Row    int    `json:"row" yaml:"row"`
	Column int    `json:"column" yaml:"column"`
}

func (move Move) Coord() Coord {
	return Coord{Row: move.Row, Column: move.Column}
}

// ValidateMove checks the preconditions of applying move to game. It is the
// only place a move is refused; nothing is mutated.
func ValidateMove(game *Game, move Move) error {
	if !move.Action.Valid() {
		return errors.Wrapf(ErrInvalidAction, "%d", int(move.Action))
	}
	if !game.board.Contains(move.Coord()) {
		return errors.Wrapf(ErrOutOfBounds, "row %d column %d outside %dx%d board",
			move.Row, move.Column, game.board.rowSize, game.board.columnSize)
	}
	if game.state != InProgress {
		return errors.Wrapf(ErrNotInProgress, "game %s is %s", game.id, game.state)
	}
	return nil
}

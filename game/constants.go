package game

import "github.com/pkg/errors"

type CellState int
type Action int
type GameState int

const (
	Unopened CellState = iota
	Opened
	Flagged
	QuestionMark
)

const (
	Open Action = iota
	Flag
	MarkQuestion
	Clear
)

const (
	InProgress GameState = iota
	Paused
	Finished
)

const (
	// MaxDimension bounds both the row and the column count of a board
	MaxDimension = 1000

	DefaultRowSize        = 16
	DefaultColumnSize     = 30
	DefaultMinePercentage = 20
)

var cellStateNames = map[CellState]string{
	Unopened:     "UNOPENED",
	Opened:       "OPENED",
	Flagged:      "FLAGGED",
	QuestionMark: "QUESTION_MARK",
}

var actionNames = map[Action]string{
	Open:         "OPEN",
	Flag:         "FLAG",
	MarkQuestion: "QUESTION_MARK",
	Clear:        "CLEAR",
}

var gameStateNames = map[GameState]string{
	InProgress: "INPROGRESS",
	Paused:     "PAUSED",
	Finished:   "FINISHED",
}

var CellStates = []CellState{Unopened, Opened, Flagged, QuestionMark}
var Actions = []Action{Open, Flag, MarkQuestion, Clear}

func parseName[T comparable](names map[T]string, kind string, text []byte) (T, error) {
	for value, name := range names {
		if name == string(text) {
			return value, nil
		}
	}
	var zero T
	return zero, errors.Errorf("unknown %s %q", kind, text)
}

func (state CellState) String() string {
	return cellStateNames[state]
}

func (state CellState) Valid() bool {
	_, ok := cellStateNames[state]
	return ok
}

func (state CellState) MarshalText() ([]byte, error) {
	if !state.Valid() {
		return nil, errors.Errorf("unknown cell state %d", int(state))
	}
	return []byte(state.String()), nil
}

func (state *CellState) UnmarshalText(text []byte) error {
	parsed, err := parseName(cellStateNames, "cell state", text)
	if err != nil {
		return err
	}
	*state = parsed
	return nil
}

func (action Action) String() string {
	return actionNames[action]
}

func (action Action) Valid() bool {
	_, ok := actionNames[action]
	return ok
}

func (action Action) MarshalText() ([]byte, error) {
	if !action.Valid() {
		return nil, errors.Errorf("unknown action %d", int(action))
	}
	return []byte(action.String()), nil
}

func (action *Action) UnmarshalText(text []byte) error {
	parsed, err := parseName(actionNames, "action", text)
	if err != nil {
		return errors.Wrap(ErrInvalidAction, err.Error())
	}
	*action = parsed
	return nil
}

// ParseAction accepts the wire name of an action, e.g. "OPEN"
func ParseAction(name string) (Action, error) {
	var action Action
	err := action.UnmarshalText([]byte(name))
	return action, err
}

func (state GameState) String() string {
	return gameStateNames[state]
}

func (state GameState) Valid() bool {
	_, ok := gameStateNames[state]
	return ok
}

func (state GameState) MarshalText() ([]byte, error) {
	if !state.Valid() {
		return nil, errors.Errorf("unknown game state %d", int(state))
	}
	return []byte(state.String()), nil
}

func (state *GameState) UnmarshalText(text []byte) error {
	parsed, err := parseName(gameStateNames, "game state", text)
	if err != nil {
		return err
	}
	*state = parsed
	return nil
}

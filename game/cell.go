package game

import "strconv"

type Cell struct {
	mined            bool
	state            CellState
	surroundingMines int
}

type transition struct {
	from   CellState
	action Action
}

// Every legal cell transition. Pairs missing from the table leave the cell
// unchanged; Opened never leaves Opened.
var cellTransitions = map[transition]CellState{
	{Unopened, Open}:         Opened,
	{Unopened, Flag}:         Flagged,
	{Unopened, MarkQuestion}: QuestionMark,
	{Flagged, MarkQuestion}:  QuestionMark,
	{QuestionMark, Flag}:     Flagged,
	{Flagged, Clear}:         Unopened,
	{QuestionMark, Clear}:    Unopened,
}

// NextState returns the state a cell in the given state moves to when the
// action is applied, and whether that is a change at all
func NextState(from CellState, action Action) (CellState, bool) {
	to, ok := cellTransitions[transition{from, action}]
	if !ok {
		return from, false
	}
	return to, true
}

func (cell Cell) Mined() bool {
	return cell.mined
}

func (cell Cell) State() CellState {
	return cell.state
}

func (cell Cell) SurroundingMines() int {
	return cell.surroundingMines
}

func (cell Cell) IsOpened() bool {
	return cell.state == Opened
}

// ApplyAction moves the cell through the transition table, reporting whether
// its state changed
func (cell *Cell) ApplyAction(action Action) bool {
	next, changed := NextState(cell.state, action)
	cell.state = next
	return changed
}

func (cell Cell) String() string {
	switch cell.state {
	case Flagged:
		return "f"
	case QuestionMark:
		return "?"
	case Opened:
		switch {
		case cell.mined:
			return "*"
		case cell.surroundingMines == 0:
			return "."
		default:
			return strconv.Itoa(cell.surroundingMines)
		}
	default:
		return "#"
	}
}

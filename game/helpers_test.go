package game

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.now = clock.now.Add(d)
}

func quietLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// layoutBoard builds a board from rows of '*' (mine) and '.' (safe)
func layoutBoard(t *testing.T, layout ...string) *Board {
	t.Helper()
	board := allocateBoard(len(layout), len(layout[0]))
	for row, line := range layout {
		if len(line) != board.columnSize {
			t.Fatalf("ragged layout row %d: %q", row, line)
		}
		for column, c := range line {
			if c == '*' {
				board.rows[row][column].mined = true
				board.numMines++
			}
		}
	}
	board.computeSurroundingMines()
	return board
}

func layoutGame(t *testing.T, clock *fakeClock, layout ...string) *Game {
	t.Helper()
	logger, _ := quietLogger()
	game := newGame([]Option{WithClock(clock.Now), WithLogger(logger)})
	game.id = "test-game"
	game.userName = "tester"
	game.board = layoutBoard(t, layout...)
	game.state = InProgress
	game.startTime = clock.Now()
	return game
}

func newTestGame(t *testing.T, clock *fakeClock, rows, columns, percentage int) *Game {
	t.Helper()
	logger, _ := quietLogger()
	game, err := New(GameConfig{
		ID:             "test-game",
		UserName:       "tester",
		RowSize:        rows,
		ColumnSize:     columns,
		MinePercentage: percentage,
		Seed:           7,
	}, WithClock(clock.Now), WithLogger(logger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return game
}

func cellStates(board *Board) [][]CellState {
	states := make([][]CellState, board.rowSize)
	for row, cells := range board.rows {
		for _, cell := range cells {
			states[row] = append(states[row], cell.state)
		}
	}
	return states
}

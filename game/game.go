package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

type GameConfig struct {
	ID             string
	UserName       string
	RowSize        int
	ColumnSize     int
	MinePercentage int

	// Seed for mine placement; zero picks one from the clock
	Seed int64
}

func NewGameConfig() GameConfig {
	return GameConfig{
		RowSize:        DefaultRowSize,
		ColumnSize:     DefaultColumnSize,
		MinePercentage: DefaultMinePercentage,
	}
}

// Game owns exactly one Board. It is not safe for concurrent use; callers
// serialize access per game id.
type Game struct {
	id       string
	userName string

	// startTime anchors the current InProgress window; timeElapsed holds
	// everything accrued before it
	startTime   time.Time
	timeElapsed time.Duration
	state       GameState

	board *Board
	// detonated is the mine an Open landed on, even one left marked
	detonated *Coord

	clock func() time.Time
	log   logrus.FieldLogger
}

type Option func(*Game)

func WithClock(clock func() time.Time) Option {
	return func(game *Game) {
		if clock != nil {
			game.clock = clock
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(game *Game) {
		if log != nil {
			game.log = log
		}
	}
}

func newGame(options []Option) *Game {
	game := &Game{
		clock: time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, option := range options {
		option(game)
	}
	return game
}

// New starts a game: a freshly generated board, InProgress, nothing elapsed
func New(config GameConfig, options ...Option) (*Game, error) {
	game := newGame(options)

	seed := config.Seed
	if seed == 0 {
		seed = game.clock().UnixNano()
	}
	board, err := NewBoard(config.RowSize, config.ColumnSize, config.MinePercentage, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}

	game.id = config.ID
	game.userName = config.UserName
	game.board = board
	game.state = InProgress
	game.startTime = game.clock()

	game.logger().WithFields(logrus.Fields{
		"rows":    board.rowSize,
		"columns": board.columnSize,
		"mines":   board.numMines,
	}).Debug("game created")

	return game, nil
}

func (game *Game) logger() logrus.FieldLogger {
	return game.log.WithField("gameId", game.id)
}

func (game *Game) ID() string {
	return game.id
}

func (game *Game) UserName() string {
	return game.userName
}

func (game *Game) State() GameState {
	return game.state
}

func (game *Game) StartTime() time.Time {
	return game.startTime
}

func (game *Game) Board() *Board {
	return game.board
}

// ApplyMove validates move and applies it. A rejected move leaves the game
// untouched.
func (game *Game) ApplyMove(move Move) error {
	if err := ValidateMove(game, move); err != nil {
		return err
	}

	coord := move.Coord()
	game.board.ApplyAction(coord, move.Action)
	cell := game.board.CellAt(coord)

	// marks do not protect a cell from Open: the cell keeps its mark, but
	// a mine still loses and a zero still cascades
	if move.Action == Open {
		switch {
		case cell.mined:
			game.logger().WithField("cell", coord).Info("game lost")
			game.detonated = &coord
			game.EndGame()
		case cell.surroundingMines == 0:
			game.logger().Debug("opening adjacent cells with 0 mines")
			game.board.OpenSurroundingCells(coord)
		}
	}

	if !game.board.HasRemainingCellsUnopened() {
		game.EndGame()
	}
	return nil
}

// Pause stops the clock. It only has an effect while InProgress.
func (game *Game) Pause() bool {
	switch game.state {
	case InProgress:
		game.logger().Info("pausing game")
		game.timeElapsed += game.clock().Sub(game.startTime)
		game.state = Paused
		return true
	case Paused, Finished:
		return false
	default:
		panic(fmt.Sprintf("unknown game state %d", game.state))
	}
}

// Resume opens a fresh timing window. It only has an effect while Paused.
func (game *Game) Resume() bool {
	switch game.state {
	case Paused:
		game.logger().Info("resuming game")
		game.startTime = game.clock()
		game.state = InProgress
		return true
	case InProgress, Finished:
		return false
	default:
		panic(fmt.Sprintf("unknown game state %d", game.state))
	}
}

// EndGame finishes the game, accruing the running window if there is one.
// Finished is terminal.
func (game *Game) EndGame() {
	switch game.state {
	case InProgress:
		game.logger().Info("finishing game")
		game.timeElapsed += game.clock().Sub(game.startTime)
	case Paused:
		game.logger().Info("finishing paused game")
	case Finished:
		return
	default:
		panic(fmt.Sprintf("unknown game state %d", game.state))
	}
	game.state = Finished
}

// TimeElapsed is the time accrued by closed InProgress windows
func (game *Game) TimeElapsed() time.Duration {
	return game.timeElapsed
}

// Elapsed includes the currently running window, if any
func (game *Game) Elapsed() time.Duration {
	if game.state == InProgress {
		return game.timeElapsed + game.clock().Sub(game.startTime)
	}
	return game.timeElapsed
}

func (game *Game) Won() bool {
	return game.state == Finished && !game.Lost() && !game.board.HasRemainingCellsUnopened()
}

func (game *Game) Lost() bool {
	return game.state == Finished && (game.detonated != nil || game.board.HasOpenedMine())
}

// Detonated returns the mine that lost the game, if any
func (game *Game) Detonated() (Coord, bool) {
	if game.detonated == nil {
		return Coord{}, false
	}
	return *game.detonated, true
}

// FormatElapsed renders d the way players see it, e.g. "2 minutes 5 seconds."
func FormatElapsed(d time.Duration) string {
	minutes := int64(d / time.Minute)
	seconds := int64((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d minutes %d seconds.", minutes, seconds)
}

package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweepd/director"
	"github.com/they4kman/sweepd/game"
	"github.com/they4kman/sweepd/store"
)

// ErrNoHint is returned when a director finds nothing worth doing
var ErrNoHint = errors.New("no move to suggest")

// NewGame is a request for a fresh game; zero sizes take the service defaults
type NewGame struct {
	UserName       string `json:"userName" yaml:"userName"`
	RowSize        int    `json:"rowSize" yaml:"rowSize"`
	ColumnSize     int    `json:"columnSize" yaml:"columnSize"`
	MinePercentage *int   `json:"minePercentage,omitempty" yaml:"minePercentage,omitempty"`
}

// Service runs every operation as lock, load, mutate, save on a single game
type Service struct {
	store    store.Store
	locker   store.Locker
	defaults game.GameConfig
	clock    func() time.Time
	seed     func() int64
	newID    func() string
	log      logrus.FieldLogger
}

type Option func(*Service)

func WithLocker(locker store.Locker) Option {
	return func(service *Service) {
		service.locker = locker
	}
}

func WithClock(clock func() time.Time) Option {
	return func(service *Service) {
		service.clock = clock
	}
}

// WithSeed fixes where mine placement seeds come from
func WithSeed(seed func() int64) Option {
	return func(service *Service) {
		service.seed = seed
	}
}

func WithIDs(newID func() string) Option {
	return func(service *Service) {
		service.newID = newID
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(service *Service) {
		service.log = log
	}
}

// WithDefaults sets the board used when a request leaves sizes out
func WithDefaults(defaults game.GameConfig) Option {
	return func(service *Service) {
		service.defaults = defaults
	}
}

func New(games store.Store, options ...Option) *Service {
	service := &Service{
		store:    games,
		defaults: game.NewGameConfig(),
		clock:    time.Now,
		newID:    uuid.NewString,
		log:      logrus.StandardLogger(),
	}
	for _, option := range options {
		option(service)
	}
	if service.locker == nil {
		service.locker = store.LockerFor(games)
	}
	if service.seed == nil {
		service.seed = func() int64 { return service.clock().UnixNano() }
	}
	return service
}

func (service *Service) gameOptions() []game.Option {
	return []game.Option{game.WithClock(service.clock), game.WithLogger(service.log)}
}

func (service *Service) CreateGame(ctx context.Context, request NewGame) (game.PublicGame, error) {
	config := service.defaults
	config.ID = service.newID()
	config.UserName = request.UserName
	config.Seed = service.seed()
	if request.RowSize != 0 {
		config.RowSize = request.RowSize
	}
	if request.ColumnSize != 0 {
		config.ColumnSize = request.ColumnSize
	}
	if request.MinePercentage != nil {
		config.MinePercentage = *request.MinePercentage
	}

	g, err := game.New(config, service.gameOptions()...)
	if err != nil {
		return game.PublicGame{}, err
	}
	if err := service.store.Save(ctx, g.Snapshot()); err != nil {
		return game.PublicGame{}, err
	}

	service.log.WithFields(logrus.Fields{
		"gameId":   g.ID(),
		"userName": g.UserName(),
		"rows":     config.RowSize,
		"columns":  config.ColumnSize,
	}).Info("created game")
	return g.Public(), nil
}

func (service *Service) load(ctx context.Context, id string) (*game.Game, error) {
	snapshot, err := service.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return game.FromSnapshot(snapshot, service.gameOptions()...)
}

// update runs mutate on game id under its lock and saves the result. Nothing
// is saved when mutate fails.
func (service *Service) update(ctx context.Context, id string, mutate func(*game.Game) error) (game.PublicGame, error) {
	unlock, err := service.locker.Lock(ctx, id)
	if err != nil {
		return game.PublicGame{}, err
	}
	defer unlock()

	g, err := service.load(ctx, id)
	if err != nil {
		return game.PublicGame{}, err
	}
	if err := mutate(g); err != nil {
		return game.PublicGame{}, err
	}
	if err := service.store.Save(ctx, g.Snapshot()); err != nil {
		return game.PublicGame{}, err
	}
	return g.Public(), nil
}

func (service *Service) Play(ctx context.Context, id string, move game.Move) (game.PublicGame, error) {
	return service.update(ctx, id, func(g *game.Game) error {
		if err := g.ApplyMove(move); err != nil {
			service.log.WithFields(logrus.Fields{
				"gameId": id,
				"action": move.Action,
				"row":    move.Row,
				"column": move.Column,
			}).WithError(err).Info("rejected move")
			return err
		}
		return nil
	})
}

// Pause has no effect unless the game is InProgress
func (service *Service) Pause(ctx context.Context, id string) (game.PublicGame, error) {
	return service.update(ctx, id, func(g *game.Game) error {
		g.Pause()
		return nil
	})
}

// Resume has no effect unless the game is Paused
func (service *Service) Resume(ctx context.Context, id string) (game.PublicGame, error) {
	return service.update(ctx, id, func(g *game.Game) error {
		g.Resume()
		return nil
	})
}

func (service *Service) Get(ctx context.Context, id string) (game.PublicGame, error) {
	g, err := service.load(ctx, id)
	if err != nil {
		return game.PublicGame{}, err
	}
	return g.Public(), nil
}

func (service *Service) List(ctx context.Context) ([]game.PublicGame, error) {
	snapshots, err := service.store.List(ctx)
	if err != nil {
		return nil, err
	}

	games := make([]game.PublicGame, 0, len(snapshots))
	for _, snapshot := range snapshots {
		g, err := game.FromSnapshot(snapshot, service.gameOptions()...)
		if err != nil {
			service.log.WithField("gameId", snapshot.ID).WithError(err).Warn("skipping unreadable game")
			continue
		}
		games = append(games, g.Public())
	}
	return games, nil
}

// Hint asks the named director for a move on game id without applying it
func (service *Service) Hint(ctx context.Context, id, directorName string) (game.Move, error) {
	g, err := service.load(ctx, id)
	if err != nil {
		return game.Move{}, err
	}
	if g.State() != game.InProgress {
		return game.Move{}, errors.Wrapf(game.ErrNotInProgress, "game %s is %s", id, g.State())
	}

	d, err := director.New(directorName, rand.New(rand.NewSource(service.seed())))
	if err != nil {
		return game.Move{}, err
	}
	move, ok := d.Next(g.Public().Board)
	if !ok {
		return game.Move{}, errors.Wrapf(ErrNoHint, "game %s", id)
	}
	return move, nil
}

// Autoplay lets the named director play game id until it is over, saving the
// result once. It returns the number of moves made.
func (service *Service) Autoplay(ctx context.Context, id, directorName string) (game.PublicGame, int, error) {
	d, err := director.New(directorName, rand.New(rand.NewSource(service.seed())))
	if err != nil {
		return game.PublicGame{}, 0, err
	}

	moves := 0
	played, err := service.update(ctx, id, func(g *game.Game) error {
		if g.State() != game.InProgress {
			return errors.Wrapf(game.ErrNotInProgress, "game %s is %s", id, g.State())
		}
		var playErr error
		moves, playErr = director.Play(g, d)
		return playErr
	})
	if err != nil {
		return game.PublicGame{}, moves, err
	}

	service.log.WithFields(logrus.Fields{
		"gameId":   id,
		"director": directorName,
		"moves":    moves,
		"outcome":  played.Outcome,
	}).Info("autoplayed game")
	return played, moves, nil
}

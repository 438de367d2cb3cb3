// Package director looks up the automated players by name
package director

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/they4kman/sweepd/director/constraint"
	"github.com/they4kman/sweepd/director/random"
	"github.com/they4kman/sweepd/game"
)

const Default = "constraint"

var ErrUnknownDirector = errors.New("unknown director")

var directors = map[string]func(rng *rand.Rand) game.Director{
	"random": func(rng *rand.Rand) game.Director {
		return random.New(rng)
	},
	"constraint": func(rng *rand.Rand) game.Director {
		return constraint.New(rng)
	},
}

// New builds the named director; an empty name picks Default
func New(name string, rng *rand.Rand) (game.Director, error) {
	if name == "" {
		name = Default
	}
	build, ok := directors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDirector, "%q (have %v)", name, Names())
	}
	return build(rng), nil
}

func Names() []string {
	names := make([]string, 0, len(directors))
	for name := range directors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Play lets d make moves on g until the game is over or d runs out of moves,
// returning how many moves were made
func Play(g *game.Game, d game.Director) (int, error) {
	// every useful move changes a cell; this bounds a director that does not
	limit := 3*g.Board().NumCells() + 1

	moves := 0
	for g.State() == game.InProgress && moves < limit {
		move, ok := d.Next(g.Public().Board)
		if !ok {
			break
		}
		if err := g.ApplyMove(move); err != nil {
			return moves, errors.Wrapf(err, "move %d: %s (%d, %d)", moves, move.Action, move.Row, move.Column)
		}
		moves++
	}
	return moves, nil
}

package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/they4kman/sweepd/game"
)

type Memory struct {
	mu     sync.RWMutex
	games  map[string]*game.Snapshot
	locker *KeyedMutex
}

func NewMemory() *Memory {
	return &Memory{
		games:  make(map[string]*game.Snapshot),
		locker: NewKeyedMutex(),
	}
}

func (memory *Memory) Load(_ context.Context, id string) (*game.Snapshot, error) {
	memory.mu.RLock()
	defer memory.mu.RUnlock()

	snapshot, ok := memory.games[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	return snapshot.Clone(), nil
}

func (memory *Memory) Save(_ context.Context, snapshot *game.Snapshot) error {
	if snapshot.ID == "" {
		return errors.New("snapshot has no id")
	}

	memory.mu.Lock()
	defer memory.mu.Unlock()
	memory.games[snapshot.ID] = snapshot.Clone()
	return nil
}

func (memory *Memory) List(_ context.Context) ([]*game.Snapshot, error) {
	memory.mu.RLock()
	snapshots := make([]*game.Snapshot, 0, len(memory.games))
	for _, snapshot := range memory.games {
		snapshots = append(snapshots, snapshot.Clone())
	}
	memory.mu.RUnlock()

	sortByStartTime(snapshots)
	return snapshots, nil
}

func (memory *Memory) Lock(ctx context.Context, id string) (func(), error) {
	return memory.locker.Lock(ctx, id)
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/they4kman/sweepd/game"
)

const (
	// DefaultLockTTL bounds how long a dead holder can keep a game locked
	DefaultLockTTL    = 10 * time.Second
	lockRetryInterval = 20 * time.Millisecond
)

var (
	ErrNotFound = errors.New("game not found")
	ErrLocked   = errors.New("game is locked")
)

// Store persists game snapshots by id. Implementations hand out copies: a
// snapshot returned by Load may be mutated freely.
type Store interface {
	Load(ctx context.Context, id string) (*game.Snapshot, error)
	Save(ctx context.Context, snapshot *game.Snapshot) error
	List(ctx context.Context) ([]*game.Snapshot, error)
}

// Locker serializes load-mutate-save cycles on a single game id. The returned
// func releases the lock.
type Locker interface {
	Lock(ctx context.Context, id string) (func(), error)
}

// LockerFor returns the locker a store brings with it, falling back to an
// in-process KeyedMutex
func LockerFor(store Store) Locker {
	if locker, ok := store.(Locker); ok {
		return locker
	}
	return NewKeyedMutex()
}

// KeyedMutex is an in-process Locker holding one lock per id
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (keyed *KeyedMutex) acquire(id string) *keyedLock {
	keyed.mu.Lock()
	defer keyed.mu.Unlock()

	lock, ok := keyed.locks[id]
	if !ok {
		lock = &keyedLock{ch: make(chan struct{}, 1)}
		keyed.locks[id] = lock
	}
	lock.refs++
	return lock
}

func (keyed *KeyedMutex) release(id string, lock *keyedLock) {
	keyed.mu.Lock()
	defer keyed.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(keyed.locks, id)
	}
}

func (keyed *KeyedMutex) Lock(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(ErrLocked, "game %s: %v", id, err)
	}
	lock := keyed.acquire(id)

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		keyed.release(id, lock)
		return nil, errors.Wrapf(ErrLocked, "game %s: %v", id, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.ch
			keyed.release(id, lock)
		})
	}, nil
}

func sortByStartTime(snapshots []*game.Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].StartTime.Equal(snapshots[j].StartTime) {
			return snapshots[i].ID < snapshots[j].ID
		}
		return snapshots[i].StartTime.Before(snapshots[j].StartTime)
	})
}

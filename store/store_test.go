package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/they4kman/sweepd/game"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

func newSnapshot(t *testing.T, id string, started time.Time) *game.Snapshot {
	t.Helper()
	config := game.GameConfig{
		ID:             id,
		UserName:       "tester",
		RowSize:        5,
		ColumnSize:     6,
		MinePercentage: 20,
		Seed:           11,
	}
	g, err := game.New(config, game.WithClock(func() time.Time { return started }), game.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	return g.Snapshot()
}

// lostSnapshot is a game lost by opening a flagged mine
func lostSnapshot(t *testing.T, id string) *game.Snapshot {
	t.Helper()
	snapshot := newSnapshot(t, id, baseTime)
	g, err := game.FromSnapshot(snapshot, game.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	for row, cells := range snapshot.Board.Rows {
		for column, cell := range cells {
			if !cell.Mined {
				continue
			}
			for _, action := range []game.Action{game.Flag, game.Open} {
				if err := g.ApplyMove(game.Move{Action: action, Row: row, Column: column}); err != nil {
					t.Fatalf("%s: %v", action, err)
				}
			}
			if !g.Lost() {
				t.Fatalf("expected the game to be lost")
			}
			return g.Snapshot()
		}
	}
	t.Fatalf("board has no mines")
	return nil
}

func openSQLite(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func assertSameSnapshot(t *testing.T, got, want *game.Snapshot) {
	t.Helper()
	if !got.StartTime.Equal(want.StartTime) {
		t.Fatalf("start time %v, expected %v", got.StartTime, want.StartTime)
	}
	gotCopy, wantCopy := got.Clone(), want.Clone()
	gotCopy.StartTime, wantCopy.StartTime = time.Time{}, time.Time{}
	if !reflect.DeepEqual(gotCopy, wantCopy) {
		t.Fatalf("snapshot differs:\n%+v\n%+v", gotCopy, wantCopy)
	}
}

type storeUnderTest interface {
	Store
	Locker
}

func backends(t *testing.T) map[string]func(t *testing.T) storeUnderTest {
	return map[string]func(t *testing.T) storeUnderTest{
		"memory": func(t *testing.T) storeUnderTest {
			return NewMemory()
		},
		"file": func(t *testing.T) storeUnderTest {
			store, err := NewFile(filepath.Join(t.TempDir(), "games"), FileOptions{Log: quietLogger()})
			if err != nil {
				t.Fatalf("NewFile: %v", err)
			}
			return store
		},
		"redis": func(t *testing.T) storeUnderTest {
			server := miniredis.RunT(t)
			store := NewRedis(RedisOptions{Addr: server.Addr(), LockTTL: time.Minute})
			t.Cleanup(func() { store.Close() })
			return store
		},
		"sql": func(t *testing.T) storeUnderTest {
			store, err := NewSQL(openSQLite(t, filepath.Join(t.TempDir(), "games.db")), time.Minute)
			if err != nil {
				t.Fatalf("NewSQL: %v", err)
			}
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func TestStores(t *testing.T) {
	for name, open := range backends(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Run("LoadMissing", func(t *testing.T) {
				store := open(t)
				if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("SaveLoad", func(t *testing.T) {
				ctx := context.Background()
				store := open(t)
				snapshot := newSnapshot(t, "game-1", baseTime)
				if err := store.Save(ctx, snapshot); err != nil {
					t.Fatalf("Save: %v", err)
				}
				loaded, err := store.Load(ctx, "game-1")
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				assertSameSnapshot(t, loaded, snapshot)
				if _, err := game.FromSnapshot(loaded); err != nil {
					t.Fatalf("stored snapshot does not restore: %v", err)
				}
			})

			t.Run("SaveLoadLostGame", func(t *testing.T) {
				ctx := context.Background()
				store := open(t)
				snapshot := lostSnapshot(t, "game-1")
				if err := store.Save(ctx, snapshot); err != nil {
					t.Fatalf("Save: %v", err)
				}
				loaded, err := store.Load(ctx, "game-1")
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				assertSameSnapshot(t, loaded, snapshot)
				restored, err := game.FromSnapshot(loaded, game.WithLogger(quietLogger()))
				if err != nil {
					t.Fatalf("FromSnapshot: %v", err)
				}
				if restored.Public().Outcome != game.OutcomeLost {
					t.Fatalf("expected a stored loss, got %q", restored.Public().Outcome)
				}
			})

			t.Run("LoadedCopiesAreIndependent", func(t *testing.T) {
				ctx := context.Background()
				store := open(t)
				snapshot := newSnapshot(t, "game-1", baseTime)
				if err := store.Save(ctx, snapshot); err != nil {
					t.Fatalf("Save: %v", err)
				}
				snapshot.Board.Rows[0][0].State = game.Flagged

				loaded, err := store.Load(ctx, "game-1")
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				if loaded.Board.Rows[0][0].State != game.Unopened {
					t.Fatalf("store shares memory with the saved snapshot")
				}
				loaded.State = game.Finished

				again, err := store.Load(ctx, "game-1")
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				if again.State != game.InProgress {
					t.Fatalf("store shares memory with a loaded snapshot")
				}
			})

			t.Run("SaveOverwrites", func(t *testing.T) {
				ctx := context.Background()
				store := open(t)
				snapshot := newSnapshot(t, "game-1", baseTime)
				if err := store.Save(ctx, snapshot); err != nil {
					t.Fatalf("Save: %v", err)
				}
				snapshot.State = game.Paused
				snapshot.TimeElapsedMillis = 4200
				snapshot.Board.Rows[1][1].State = game.QuestionMark
				if err := store.Save(ctx, snapshot); err != nil {
					t.Fatalf("Save: %v", err)
				}

				loaded, err := store.Load(ctx, "game-1")
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				assertSameSnapshot(t, loaded, snapshot)

				all, err := store.List(ctx)
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				if len(all) != 1 {
					t.Fatalf("expected a single game, got %d", len(all))
				}
			})

			t.Run("ListOrdersByStartTime", func(t *testing.T) {
				ctx := context.Background()
				store := open(t)
				for _, snapshot := range []*game.Snapshot{
					newSnapshot(t, "late", baseTime.Add(2*time.Hour)),
					newSnapshot(t, "early", baseTime),
					newSnapshot(t, "middle", baseTime.Add(time.Hour)),
				} {
					if err := store.Save(ctx, snapshot); err != nil {
						t.Fatalf("Save: %v", err)
					}
				}

				all, err := store.List(ctx)
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				var ids []string
				for _, snapshot := range all {
					ids = append(ids, snapshot.ID)
				}
				if want := []string{"early", "middle", "late"}; !reflect.DeepEqual(ids, want) {
					t.Fatalf("expected %v, got %v", want, ids)
				}
			})

			t.Run("ListEmpty", func(t *testing.T) {
				all, err := open(t).List(context.Background())
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				if len(all) != 0 {
					t.Fatalf("expected no games, got %d", len(all))
				}
			})

			t.Run("LockCancelled", func(t *testing.T) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				if _, err := open(t).Lock(ctx, "game-1"); !errors.Is(err, ErrLocked) {
					t.Fatalf("expected ErrLocked on a cancelled context, got %v", err)
				}
			})

			t.Run("LockExcludes", func(t *testing.T) {
				store := open(t)
				unlock, err := store.Lock(context.Background(), "game-1")
				if err != nil {
					t.Fatalf("Lock: %v", err)
				}

				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				defer cancel()
				if _, err := store.Lock(ctx, "game-1"); !errors.Is(err, ErrLocked) {
					t.Fatalf("expected ErrLocked while held, got %v", err)
				}

				other, err := store.Lock(context.Background(), "game-2")
				if err != nil {
					t.Fatalf("locking another game must not block: %v", err)
				}
				other()

				unlock()
				again, err := store.Lock(context.Background(), "game-1")
				if err != nil {
					t.Fatalf("Lock after unlock: %v", err)
				}
				again()
			})
		})
	}
}

// sharedBackends opens two stores on one backing database or directory, the
// way two processes would
func sharedBackends(t *testing.T) map[string]func(t *testing.T) (storeUnderTest, storeUnderTest) {
	return map[string]func(t *testing.T) (storeUnderTest, storeUnderTest){
		"file": func(t *testing.T) (storeUnderTest, storeUnderTest) {
			dir := t.TempDir()
			first, err := NewFile(dir, FileOptions{Log: quietLogger()})
			if err != nil {
				t.Fatalf("NewFile: %v", err)
			}
			second, err := NewFile(dir, FileOptions{Log: quietLogger()})
			if err != nil {
				t.Fatalf("NewFile: %v", err)
			}
			return first, second
		},
		"redis": func(t *testing.T) (storeUnderTest, storeUnderTest) {
			server := miniredis.RunT(t)
			first := NewRedis(RedisOptions{Addr: server.Addr(), LockTTL: time.Minute})
			second := NewRedis(RedisOptions{Addr: server.Addr(), LockTTL: time.Minute})
			t.Cleanup(func() {
				first.Close()
				second.Close()
			})
			return first, second
		},
		"sql": func(t *testing.T) (storeUnderTest, storeUnderTest) {
			path := filepath.Join(t.TempDir(), "games.db")
			first, err := NewSQL(openSQLite(t, path), time.Minute)
			if err != nil {
				t.Fatalf("NewSQL: %v", err)
			}
			second, err := NewSQL(openSQLite(t, path), time.Minute)
			if err != nil {
				t.Fatalf("NewSQL: %v", err)
			}
			t.Cleanup(func() {
				first.Close()
				second.Close()
			})
			return first, second
		},
	}
}

func TestLockExcludesOtherStoreInstances(t *testing.T) {
	for name, open := range sharedBackends(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, second := open(t)
			if err := first.Save(ctx, newSnapshot(t, "game-1", baseTime)); err != nil {
				t.Fatalf("Save: %v", err)
			}

			unlock, err := first.Lock(ctx, "game-1")
			if err != nil {
				t.Fatalf("Lock: %v", err)
			}
			waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			if _, err := second.Lock(waitCtx, "game-1"); !errors.Is(err, ErrLocked) {
				t.Fatalf("expected the other instance to see ErrLocked, got %v", err)
			}
			unlock()

			unlockSecond, err := second.Lock(ctx, "game-1")
			if err != nil {
				t.Fatalf("Lock after release: %v", err)
			}
			paused := newSnapshot(t, "game-1", baseTime)
			paused.State = game.Paused
			if err := second.Save(ctx, paused); err != nil {
				t.Fatalf("Save: %v", err)
			}
			unlockSecond()

			loaded, err := first.Load(ctx, "game-1")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.State != game.Paused {
				t.Fatalf("expected the other instance's write, got %s", loaded.State)
			}
		})
	}
}

func TestFileLockBreaksStaleLease(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFile(dir, FileOptions{LockTTL: time.Second, Log: quietLogger()})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	stale := filepath.Join(dir, "game-1"+lockExt)
	if err := os.WriteFile(stale, []byte("dead-holder"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("age lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := store.Lock(ctx, "game-1")
	if err != nil {
		t.Fatalf("a stale lease should be broken: %v", err)
	}
	unlock()
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected the lock file to be gone after unlock, got %v", err)
	}
}

func TestFileUnlockKeepsForeignLease(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFile(dir, FileOptions{Log: quietLogger()})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	unlock, err := store.Lock(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	// the lease was broken and taken by someone else meanwhile
	path := filepath.Join(dir, "game-1"+lockExt)
	if err := os.WriteFile(path, []byte("other-holder"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	unlock()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stale unlock removed the current lease: %v", err)
	}
}

func TestFileListSkipsUnreadableSnapshots(t *testing.T) {
	dir := t.TempDir()
	log, hook := logtest.NewNullLogger()
	store, err := NewFile(dir, FileOptions{Log: log})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := store.Save(context.Background(), newSnapshot(t, "good", baseTime)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken"+snapshotExt), []byte("state: SLEEPING"), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	all, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != "good" {
		t.Fatalf("expected only the readable game, got %d", len(all))
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel || entry.Data["gameId"] != "broken" {
		t.Fatalf("expected a warning about the broken snapshot, got %+v", entry)
	}
}

func TestSQLLockReclaimsExpiredLease(t *testing.T) {
	store, err := NewSQL(openSQLite(t, filepath.Join(t.TempDir(), "games.db")), time.Minute)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	defer store.Close()

	expired := lockRecord{GameID: "game-1", Token: "dead-holder", ExpiresAt: time.Now().Add(-time.Second).UnixMilli()}
	if err := store.db.Create(&expired).Error; err != nil {
		t.Fatalf("insert lease: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := store.Lock(ctx, "game-1")
	if err != nil {
		t.Fatalf("an expired lease should be reclaimed: %v", err)
	}
	unlock()

	var left int64
	if err := store.db.Model(&lockRecord{}).Count(&left).Error; err != nil {
		t.Fatalf("count leases: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected unlock to drop the lease, %d remain", left)
	}
}

func TestMySQLDSNParsesTime(t *testing.T) {
	dsn, err := mysqlDSN("sweepd:secret@tcp(db:3306)/sweepd")
	if err != nil {
		t.Fatalf("mysqlDSN: %v", err)
	}
	if !strings.Contains(dsn, "parseTime=true") || !strings.HasPrefix(dsn, "sweepd:secret@tcp(db:3306)/sweepd") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if _, err := mysqlDSN("not a dsn"); err == nil {
		t.Fatalf("expected a malformed dsn to fail")
	}
}

func TestFileStoreRejectsMalformedIDs(t *testing.T) {
	store, err := NewFile(t.TempDir(), FileOptions{Log: quietLogger()})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	for _, id := range []string{"", "../escape", "a/b", "dot.dot"} {
		if _, err := store.Load(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%q: expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestKeyedMutexSerializesHolders(t *testing.T) {
	locker := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		holders int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "shared")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
	if len(locker.locks) != 0 {
		t.Fatalf("expected idle locks to be dropped, %d remain", len(locker.locks))
	}
}

func TestKeyedMutexUnlockIsIdempotent(t *testing.T) {
	locker := NewKeyedMutex()
	unlock, err := locker.Lock(context.Background(), "game")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), "game")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	again()
}

func TestRedisLockExpires(t *testing.T) {
	server := miniredis.RunT(t)
	store := NewRedis(RedisOptions{Addr: server.Addr(), LockTTL: time.Second})
	defer store.Close()

	if _, err := store.Lock(context.Background(), "game-1"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	server.FastForward(2 * time.Second)

	unlock, err := store.Lock(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("expired lease should be reacquirable: %v", err)
	}
	unlock()
}

func TestRedisUnlockKeepsForeignLease(t *testing.T) {
	server := miniredis.RunT(t)
	store := NewRedis(RedisOptions{Addr: server.Addr(), LockTTL: time.Second})
	defer store.Close()

	staleUnlock, err := store.Lock(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	server.FastForward(2 * time.Second)
	if _, err := store.Lock(context.Background(), "game-1"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	// releasing the expired lease must not drop the current holder's
	staleUnlock()
	if !server.Exists(redisLockKeyPrefix + "game-1") {
		t.Fatalf("stale unlock removed the current lease")
	}
}

func TestLockerFor(t *testing.T) {
	memory := NewMemory()
	if LockerFor(memory) != Locker(memory) {
		t.Fatalf("expected the memory store to lock for itself")
	}
	if _, ok := LockerFor(plainStore{}).(*KeyedMutex); !ok {
		t.Fatalf("expected a KeyedMutex fallback")
	}
}

type plainStore struct{ Store }

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/they4kman/sweepd/game"
)

const (
	redisGameKeyPrefix = "game:"
	redisLockKeyPrefix = "game_lock:"
	redisIndexKey      = "games"
)

// unlockScript deletes the lock only while it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis stores snapshots as JSON strings and locks games across processes
// with SETNX leases
type Redis struct {
	client  *redis.Client
	lockTTL time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

func NewRedis(options RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
	return NewRedisWithClient(client, options.LockTTL)
}

func NewRedisWithClient(client *redis.Client, lockTTL time.Duration) *Redis {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Redis{client: client, lockTTL: lockTTL}
}

func (store *Redis) Close() error {
	return store.client.Close()
}

func (store *Redis) Ping(ctx context.Context) error {
	return errors.Wrap(store.client.Ping(ctx).Err(), "ping redis")
}

func (store *Redis) Load(ctx context.Context, id string) (*game.Snapshot, error) {
	raw, err := store.client.Get(ctx, redisGameKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrap(ErrNotFound, id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "get game %s", id)
	}
	return decodeSnapshot(raw)
}

func (store *Redis) Save(ctx context.Context, snapshot *game.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	_, err = store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisGameKeyPrefix+snapshot.ID, raw, 0)
		pipe.SAdd(ctx, redisIndexKey, snapshot.ID)
		return nil
	})
	return errors.Wrapf(err, "save game %s", snapshot.ID)
}

func (store *Redis) List(ctx context.Context) ([]*game.Snapshot, error) {
	ids, err := store.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list game ids")
	}
	if len(ids) == 0 {
		return []*game.Snapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisGameKeyPrefix + id
	}
	values, err := store.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load games")
	}

	snapshots := make([]*game.Snapshot, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// indexed but since removed
			continue
		}
		snapshot, err := decodeSnapshot([]byte(raw))
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	sortByStartTime(snapshots)
	return snapshots, nil
}

// Lock polls SETNX until the lease is ours or ctx is done. A holder that dies
// loses the lease after lockTTL.
func (store *Redis) Lock(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(ErrLocked, "game %s: %v", id, err)
	}
	key := redisLockKeyPrefix + id
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := store.client.SetNX(ctx, key, token, store.lockTTL).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "lock game %s", id)
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ErrLocked, "game %s: %v", id, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// the caller's ctx may already be cancelled
		unlockScript.Run(context.Background(), store.client, []string{key}, token)
	}, nil
}

func decodeSnapshot(raw []byte) (*game.Snapshot, error) {
	var snapshot game.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, errors.Wrap(game.ErrInvalidSnapshot, err.Error())
	}
	return &snapshot, nil
}

package store

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweepd/game"
)

const (
	snapshotExt = ".yaml"
	lockExt     = ".lock"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// File keeps one YAML snapshot per game under dir. Games are locked with an
// <id>.lock file next to the snapshot, so separate processes sharing dir
// exclude each other.
type File struct {
	dir     string
	lockTTL time.Duration
	log     logrus.FieldLogger
}

type FileOptions struct {
	LockTTL time.Duration
	Log     logrus.FieldLogger
}

func NewFile(dir string, options FileOptions) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store dir %s", dir)
	}
	file := &File{dir: dir, lockTTL: options.LockTTL, log: options.Log}
	if file.lockTTL <= 0 {
		file.lockTTL = DefaultLockTTL
	}
	if file.log == nil {
		file.log = logrus.StandardLogger()
	}
	return file, nil
}

func (file *File) path(id, ext string) (string, error) {
	if !validID.MatchString(id) {
		return "", errors.Wrapf(ErrNotFound, "malformed id %q", id)
	}
	return filepath.Join(file.dir, id+ext), nil
}

func (file *File) Load(_ context.Context, id string) (*game.Snapshot, error) {
	path, err := file.path(id, snapshotExt)
	if err != nil {
		return nil, err
	}

	in, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrNotFound, id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return game.LoadSnapshot(in)
}

// Save writes through a temp file and renames it into place, so readers never
// see a partial snapshot
func (file *File) Save(_ context.Context, snapshot *game.Snapshot) error {
	path, err := file.path(snapshot.ID, snapshotExt)
	if err != nil {
		return err
	}

	out, err := snapshot.Serialize()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(file.dir, snapshot.ID+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename into %s", path)
}

func (file *File) List(ctx context.Context) ([]*game.Snapshot, error) {
	entries, err := os.ReadDir(file.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read store dir %s", file.dir)
	}

	snapshots := make([]*game.Snapshot, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		id := strings.TrimSuffix(name, snapshotExt)
		snapshot, err := file.Load(ctx, id)
		if err != nil {
			file.log.WithField("gameId", id).WithError(err).Warn("skipping unreadable snapshot")
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	sortByStartTime(snapshots)
	return snapshots, nil
}

// Lock creates the game's lock file exclusively, retrying until ctx is done.
// A lock file older than lockTTL was left by a dead holder and is broken.
func (file *File) Lock(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(ErrLocked, "game %s: %v", id, err)
	}
	path, err := file.path(id, lockExt)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := file.tryLock(path, token)
		if err != nil {
			return nil, err
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

	var once sync.Once
	return func() {
		once.Do(func() {
			// a lease broken as stale now belongs to someone else
			if held, err := os.ReadFile(path); err == nil && string(held) == token {
				os.Remove(path)
			}
		})
	}, nil
}

func (file *File) tryLock(path, token string) (bool, error) {
	lock, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		_, err = lock.WriteString(token)
		if closeErr := lock.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
			return false, errors.Wrapf(err, "write %s", path)
		}
		return true, nil
	}
	if !os.IsExist(err) {
		return false, errors.Wrapf(err, "create %s", path)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		// released in between
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "stat %s", path)
	}
	if time.Since(info.ModTime()) > file.lockTTL {
		file.log.WithField("lock", path).Warn("breaking stale lock")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, errors.Wrapf(err, "remove stale %s", path)
		}
	}
	return false, nil
}

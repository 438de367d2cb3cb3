package store

import (
	"context"
	"encoding/json"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/they4kman/sweepd/game"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// gameRecord is one row per game; the board goes in as a JSON blob
type gameRecord struct {
	ID                string    `gorm:"primaryKey;size:64"`
	UserName          string    `gorm:"size:255"`
	State             string    `gorm:"size:16;index"`
	StartTime         time.Time `gorm:"index"`
	TimeElapsedMillis int64
	Board             []byte
	DetonatedRow      *int
	DetonatedColumn   *int
	UpdatedAt         time.Time
}

func (gameRecord) TableName() string {
	return "games"
}

// lockRecord is a lease on one game, shared by every process on the database
type lockRecord struct {
	GameID string `gorm:"primaryKey;size:64"`
	Token  string `gorm:"size:36"`
	// unix milliseconds
	ExpiresAt int64 `gorm:"index"`
}

func (lockRecord) TableName() string {
	return "game_locks"
}

type SQL struct {
	db      *gorm.DB
	lockTTL time.Duration
}

// NewSQL migrates the games and game_locks tables on db
func NewSQL(db *gorm.DB, lockTTL time.Duration) (*SQL, error) {
	if err := db.AutoMigrate(&gameRecord{}, &lockRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate games tables")
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &SQL{db: db, lockTTL: lockTTL}, nil
}

func OpenMySQL(dsn string, lockTTL time.Duration) (*SQL, error) {
	dsn, err := mysqlDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "mysql pool")
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return NewSQL(db, lockTTL)
}

// mysqlDSN turns on parseTime, which scanning DATETIME columns needs
func mysqlDSN(dsn string) (string, error) {
	config, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	config.ParseTime = true
	return config.FormatDSN(), nil
}

func (store *SQL) Close() error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (store *SQL) Load(ctx context.Context, id string) (*game.Snapshot, error) {
	var record gameRecord
	err := store.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(ErrNotFound, id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "load game %s", id)
	}
	return record.snapshot()
}

func (store *SQL) Save(ctx context.Context, snapshot *game.Snapshot) error {
	record, err := newGameRecord(snapshot)
	if err != nil {
		return err
	}
	return errors.Wrapf(store.db.WithContext(ctx).Save(record).Error, "save game %s", snapshot.ID)
}

func (store *SQL) List(ctx context.Context) ([]*game.Snapshot, error) {
	var records []gameRecord
	if err := store.db.WithContext(ctx).Order("start_time, id").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "list games")
	}

	snapshots := make([]*game.Snapshot, 0, len(records))
	for _, record := range records {
		snapshot, err := record.snapshot()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	// the driver may hand times back in another location
	sortByStartTime(snapshots)
	return snapshots, nil
}

// Lock takes the game's row in game_locks, retrying until ctx is done. An
// expired lease is reclaimed, so a holder that dies frees the game after
// lockTTL.
func (store *SQL) Lock(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(ErrLocked, "game %s: %v", id, err)
	}
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := store.tryLock(ctx, id, token)
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

	return func() {
		// the caller's ctx may already be cancelled
		store.db.Where("game_id = ? AND token = ?", id, token).Delete(&lockRecord{})
	}, nil
}

func (store *SQL) tryLock(ctx context.Context, id, token string) (bool, error) {
	acquired := false
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		expired := tx.Where("game_id = ? AND expires_at < ?", id, now.UnixMilli()).Delete(&lockRecord{})
		if expired.Error != nil {
			return expired.Error
		}

		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lockRecord{
			GameID:    id,
			Token:     token,
			ExpiresAt: now.Add(store.lockTTL).UnixMilli(),
		})
		if created.Error != nil {
			return created.Error
		}
		acquired = created.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "lock game %s", id)
	}
	return acquired, nil
}

func newGameRecord(snapshot *game.Snapshot) (*gameRecord, error) {
	board, err := json.Marshal(snapshot.Board)
	if err != nil {
		return nil, errors.Wrap(err, "encode board")
	}
	record := &gameRecord{
		ID:                snapshot.ID,
		UserName:          snapshot.UserName,
		State:             snapshot.State.String(),
		StartTime:         snapshot.StartTime,
		TimeElapsedMillis: snapshot.TimeElapsedMillis,
		Board:             board,
	}
	if detonated := snapshot.Detonated; detonated != nil {
		row, column := detonated.Row, detonated.Column
		record.DetonatedRow, record.DetonatedColumn = &row, &column
	}
	return record, nil
}

func (record gameRecord) snapshot() (*game.Snapshot, error) {
	snapshot := &game.Snapshot{
		ID:                record.ID,
		UserName:          record.UserName,
		StartTime:         record.StartTime,
		TimeElapsedMillis: record.TimeElapsedMillis,
	}
	if err := snapshot.State.UnmarshalText([]byte(record.State)); err != nil {
		return nil, errors.Wrap(game.ErrInvalidSnapshot, err.Error())
	}
	if err := json.Unmarshal(record.Board, &snapshot.Board); err != nil {
		return nil, errors.Wrap(game.ErrInvalidSnapshot, err.Error())
	}
	if record.DetonatedRow != nil && record.DetonatedColumn != nil {
		snapshot.Detonated = &game.Coord{Row: *record.DetonatedRow, Column: *record.DetonatedColumn}
	}
	return snapshot, nil
}

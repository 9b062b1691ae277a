package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

type SyncCursorRepo interface {
	// Get returns the singleton cursor, creating it at zero on first use.
	Get(ctx context.Context, tx *gorm.DB) (*types.SyncCursor, error)
	// Advance moves the cursor forward to txID. Backward moves are dropped so
	// the cursor stays monotonically non-decreasing under racing writers.
	Advance(ctx context.Context, tx *gorm.DB, txID int64) (*types.SyncCursor, error)
}

type syncCursorRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewSyncCursorRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) SyncCursorRepo {
	return &syncCursorRepo{db: db, log: baseLog.With("repo", "SyncCursorRepo"), policy: policy}
}

func (r *syncCursorRepo) Get(ctx context.Context, tx *gorm.DB) (*types.SyncCursor, error) {
	var out *types.SyncCursor
	err := transact(ctx, r.db, tx, r.log, "sync_cursor.get", r.policy, func(tx *gorm.DB) error {
		cursor, err := getOrCreateCursor(tx)
		if err != nil {
			return err
		}
		out = cursor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *syncCursorRepo) Advance(ctx context.Context, tx *gorm.DB, txID int64) (*types.SyncCursor, error) {
	var out *types.SyncCursor
	err := transact(ctx, r.db, tx, r.log, "sync_cursor.advance", r.policy, func(tx *gorm.DB) error {
		cursor, err := getOrCreateCursor(tx)
		if err != nil {
			return err
		}
		if txID > cursor.LastTxID {
			cursor.LastTxID = txID
			cursor.UpdatedAt = time.Now().UTC()
			if err := tx.Save(cursor).Error; err != nil {
				return err
			}
		}
		out = cursor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getOrCreateCursor(tx *gorm.DB) (*types.SyncCursor, error) {
	var cursor types.SyncCursor
	err := tx.Where("key = ?", types.SyncCursorKey).First(&cursor).Error
	if err == nil {
		return &cursor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cursor = types.SyncCursor{
		Key:       types.SyncCursorKey,
		LastTxID:  0,
		UpdatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&cursor).Error; err != nil {
		return nil, err
	}
	return &cursor, nil
}

package repos

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

type EntityVersionRepo interface {
	// Append writes a version snapshot. The entity owner calls this on every
	// create/update/delete; the pipeline itself only reads.
	Append(ctx context.Context, tx *gorm.DB, rec *types.EntityVersionRecord) (*types.EntityVersionRecord, error)
	// GetVersionsInRange returns the latest version per distinct entity whose
	// tx id falls in (fromTxID, toTxID]; a nil toTxID leaves the range
	// unbounded above. Reads the append-only version table directly, so
	// entities hard-deleted since still show up.
	GetVersionsInRange(ctx context.Context, tx *gorm.DB, fromTxID int64, toTxID *int64) ([]*types.EntityVersionRecord, error)
}

type entityVersionRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewEntityVersionRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) EntityVersionRepo {
	return &entityVersionRepo{db: db, log: baseLog.With("repo", "EntityVersionRepo"), policy: policy}
}

func (r *entityVersionRepo) Append(ctx context.Context, tx *gorm.DB, rec *types.EntityVersionRecord) (*types.EntityVersionRecord, error) {
	err := transact(ctx, r.db, tx, r.log, "entity_version.append", r.policy, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *entityVersionRepo) GetVersionsInRange(ctx context.Context, tx *gorm.DB, fromTxID int64, toTxID *int64) ([]*types.EntityVersionRecord, error) {
	var rows []*types.EntityVersionRecord
	err := transact(ctx, r.db, tx, r.log, "entity_version.range", r.policy, func(tx *gorm.DB) error {
		q := tx.Where("tx_id > ?", fromTxID)
		if toTxID != nil {
			q = q.Where("tx_id <= ?", *toTxID)
		}
		return q.Order("tx_id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	// Coalesce to the latest version per entity. Rows arrive tx-ordered, so
	// the last write wins.
	latest := make(map[int64]*types.EntityVersionRecord, len(rows))
	for _, rec := range rows {
		latest[rec.EntityID] = rec
	}
	out := make([]*types.EntityVersionRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out, nil
}

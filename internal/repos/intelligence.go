package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

// IntelligenceRepo persists the per-entity processing record. Upsert merges
// the supplied fields into the existing row keyed by entity id, so re-played
// callbacks and duplicate submissions land on the same row.
//
// The Try* variants absorb the entity-deleted race: they return (nil, nil)
// where the strict forms return *errs.StaleReferenceError. Callback handlers
// use Try*; everything else uses the strict forms.
type IntelligenceRepo interface {
	GetByEntityID(ctx context.Context, tx *gorm.DB, entityID int64) (*types.IntelligenceRecord, error)
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.IntelligenceRecord) (*types.IntelligenceRecord, error)
	TryUpsert(ctx context.Context, tx *gorm.DB, rec *types.IntelligenceRecord) (*types.IntelligenceRecord, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, entityID int64, status string) error
	TryUpdateStatus(ctx context.Context, tx *gorm.DB, entityID int64, status string) error
}

type intelligenceRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewIntelligenceRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) IntelligenceRepo {
	return &intelligenceRepo{db: db, log: baseLog.With("repo", "IntelligenceRepo"), policy: policy}
}

func (r *intelligenceRepo) GetByEntityID(ctx context.Context, tx *gorm.DB, entityID int64) (*types.IntelligenceRecord, error) {
	var out *types.IntelligenceRecord
	err := transact(ctx, r.db, tx, r.log, "intelligence.get", r.policy, func(tx *gorm.DB) error {
		var rec types.IntelligenceRecord
		if err := tx.Where("entity_id = ?", entityID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotFound
			}
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *intelligenceRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.IntelligenceRecord) (*types.IntelligenceRecord, error) {
	var out *types.IntelligenceRecord
	err := transact(ctx, r.db, tx, r.log, "intelligence.upsert", r.policy, func(tx *gorm.DB) error {
		merged, err := r.upsertLocked(tx, rec)
		if err != nil {
			return err
		}
		out = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *intelligenceRepo) TryUpsert(ctx context.Context, tx *gorm.DB, rec *types.IntelligenceRecord) (*types.IntelligenceRecord, error) {
	out, err := r.Upsert(ctx, tx, rec)
	return out, swallowStale(r.log, err)
}

func (r *intelligenceRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, entityID int64, status string) error {
	return transact(ctx, r.db, tx, r.log, "intelligence.update_status", r.policy, func(tx *gorm.DB) error {
		ok, err := entityExists(tx, entityID)
		if err != nil {
			return err
		}
		if !ok {
			return &errs.StaleReferenceError{Table: types.IntelligenceRecord{}.TableName(), EntityID: entityID}
		}
		return tx.Model(&types.IntelligenceRecord{}).
			Where("entity_id = ?", entityID).
			Updates(map[string]any{
				"processing_status": status,
				"updated_at":        time.Now().UTC(),
			}).Error
	})
}

func (r *intelligenceRepo) TryUpdateStatus(ctx context.Context, tx *gorm.DB, entityID int64, status string) error {
	return swallowStale(r.log, r.UpdateStatus(ctx, tx, entityID, status))
}

func (r *intelligenceRepo) upsertLocked(tx *gorm.DB, rec *types.IntelligenceRecord) (*types.IntelligenceRecord, error) {
	ok, err := entityExists(tx, rec.EntityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errs.StaleReferenceError{Table: types.IntelligenceRecord{}.TableName(), EntityID: rec.EntityID}
	}

	now := time.Now().UTC()
	var existing types.IntelligenceRecord
	err = tx.Where("entity_id = ?", rec.EntityID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if rec.ProcessingStatus == "" {
			rec.ProcessingStatus = types.ProcessingStatusPending
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if err := tx.Create(rec).Error; err != nil {
			return nil, err
		}
		return rec, nil
	case err != nil:
		return nil, err
	}

	if rec.DetectionJobID != nil {
		existing.DetectionJobID = rec.DetectionJobID
	}
	if rec.ClipJobID != nil {
		existing.ClipJobID = rec.ClipJobID
	}
	if rec.SiglipJobID != nil {
		existing.SiglipJobID = rec.SiglipJobID
	}
	if rec.ProcessingStatus != "" {
		existing.ProcessingStatus = rec.ProcessingStatus
	}
	existing.UpdatedAt = now
	if err := tx.Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// swallowStale downgrades a stale-reference failure to a logged no-op. The
// entity vanished mid-flight; that is a race, not a fault.
func swallowStale(log *logger.Logger, err error) error {
	if err == nil {
		return nil
	}
	var stale *errs.StaleReferenceError
	if errors.As(err, &stale) {
		if log != nil {
			log.Debug("entity gone, write dropped", "table", stale.Table, "entity_id", stale.EntityID)
		}
		return nil
	}
	return err
}

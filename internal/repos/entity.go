package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

type EntityRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, entityID int64) (*types.Entity, error)
	Exists(ctx context.Context, tx *gorm.DB, entityID int64) (bool, error)
	// Delete hard-deletes the entity and cascades to its intelligence record,
	// faces (with their match edges), and job records. Cascade counts are
	// logged before the rows go away.
	Delete(ctx context.Context, tx *gorm.DB, entityID int64) error
}

type entityRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewEntityRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) EntityRepo {
	return &entityRepo{db: db, log: baseLog.With("repo", "EntityRepo"), policy: policy}
}

func (r *entityRepo) GetByID(ctx context.Context, tx *gorm.DB, entityID int64) (*types.Entity, error) {
	var out *types.Entity
	err := transact(ctx, r.db, tx, r.log, "entity.get", r.policy, func(tx *gorm.DB) error {
		var e types.Entity
		if err := tx.First(&e, entityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotFound
			}
			return err
		}
		out = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entityRepo) Exists(ctx context.Context, tx *gorm.DB, entityID int64) (bool, error) {
	var exists bool
	err := transact(ctx, r.db, tx, r.log, "entity.exists", r.policy, func(tx *gorm.DB) error {
		ok, err := entityExists(tx, entityID)
		if err != nil {
			return err
		}
		exists = ok
		return nil
	})
	return exists, err
}

func (r *entityRepo) Delete(ctx context.Context, tx *gorm.DB, entityID int64) error {
	return transact(ctx, r.db, tx, r.log, "entity.delete", r.policy, func(tx *gorm.DB) error {
		var faceIDs []int64
		if err := tx.Model(&types.Face{}).Where("entity_id = ?", entityID).Pluck("id", &faceIDs).Error; err != nil {
			return err
		}
		var jobCount int64
		if err := tx.Model(&types.JobRecord{}).Where("entity_id = ?", entityID).Count(&jobCount).Error; err != nil {
			return err
		}
		var intelCount int64
		if err := tx.Model(&types.IntelligenceRecord{}).Where("entity_id = ?", entityID).Count(&intelCount).Error; err != nil {
			return err
		}
		r.log.Info("deleting entity with cascade",
			"entity_id", entityID,
			"faces", len(faceIDs),
			"job_records", jobCount,
			"intelligence_records", intelCount,
		)

		if len(faceIDs) > 0 {
			if err := tx.Where("face_id IN ? OR matched_face_id IN ?", faceIDs, faceIDs).
				Delete(&types.FaceMatch{}).Error; err != nil {
				return err
			}
			if err := tx.Where("entity_id = ?", entityID).Delete(&types.Face{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("entity_id = ?", entityID).Delete(&types.JobRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entity_id = ?", entityID).Delete(&types.IntelligenceRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&types.Entity{}, entityID).Error
	})
}

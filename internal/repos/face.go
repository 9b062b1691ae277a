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

// FaceRepo persists detected faces. Face ids are deterministic
// (entity id * stride + index), so Upsert is the only write path detection
// results need: a re-delivered payload merges into the same rows.
type FaceRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, faceID int64) (*types.Face, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, faceIDs []int64) ([]*types.Face, error)
	ListByEntityID(ctx context.Context, tx *gorm.DB, entityID int64) ([]*types.Face, error)
	ListByPersonID(ctx context.Context, tx *gorm.DB, personID int64) ([]*types.Face, error)
	Upsert(ctx context.Context, tx *gorm.DB, face *types.Face) (*types.Face, error)
	TryUpsert(ctx context.Context, tx *gorm.DB, face *types.Face) (*types.Face, error)
	LinkPerson(ctx context.Context, tx *gorm.DB, faceID, personID int64) error
	TryLinkPerson(ctx context.Context, tx *gorm.DB, faceID, personID int64) error
	// Delete removes the face and every match edge touching it, logging the
	// edge count first.
	Delete(ctx context.Context, tx *gorm.DB, faceID int64) error
}

type faceRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewFaceRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) FaceRepo {
	return &faceRepo{db: db, log: baseLog.With("repo", "FaceRepo"), policy: policy}
}

func (r *faceRepo) GetByID(ctx context.Context, tx *gorm.DB, faceID int64) (*types.Face, error) {
	var out *types.Face
	err := transact(ctx, r.db, tx, r.log, "face.get", r.policy, func(tx *gorm.DB) error {
		var f types.Face
		if err := tx.First(&f, faceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotFound
			}
			return err
		}
		out = &f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *faceRepo) GetByIDs(ctx context.Context, tx *gorm.DB, faceIDs []int64) ([]*types.Face, error) {
	var out []*types.Face
	if len(faceIDs) == 0 {
		return out, nil
	}
	err := transact(ctx, r.db, tx, r.log, "face.get_by_ids", r.policy, func(tx *gorm.DB) error {
		return tx.Where("id IN ?", faceIDs).Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *faceRepo) ListByEntityID(ctx context.Context, tx *gorm.DB, entityID int64) ([]*types.Face, error) {
	var out []*types.Face
	err := transact(ctx, r.db, tx, r.log, "face.list_by_entity", r.policy, func(tx *gorm.DB) error {
		return tx.Where("entity_id = ?", entityID).Order("id ASC").Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *faceRepo) ListByPersonID(ctx context.Context, tx *gorm.DB, personID int64) ([]*types.Face, error) {
	var out []*types.Face
	err := transact(ctx, r.db, tx, r.log, "face.list_by_person", r.policy, func(tx *gorm.DB) error {
		return tx.Where("person_id = ?", personID).Order("id ASC").Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *faceRepo) Upsert(ctx context.Context, tx *gorm.DB, face *types.Face) (*types.Face, error) {
	var out *types.Face
	err := transact(ctx, r.db, tx, r.log, "face.upsert", r.policy, func(tx *gorm.DB) error {
		ok, err := entityExists(tx, face.EntityID)
		if err != nil {
			return err
		}
		if !ok {
			return &errs.StaleReferenceError{Table: types.Face{}.TableName(), EntityID: face.EntityID}
		}

		now := time.Now().UTC()
		var existing types.Face
		err = tx.First(&existing, face.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			face.CreatedAt = now
			face.UpdatedAt = now
			if err := tx.Create(face).Error; err != nil {
				return err
			}
			out = face
			return nil
		case err != nil:
			return err
		}

		existing.EntityID = face.EntityID
		existing.X1 = face.X1
		existing.Y1 = face.Y1
		existing.X2 = face.X2
		existing.Y2 = face.Y2
		existing.Confidence = face.Confidence
		if len(face.Landmarks) > 0 {
			existing.Landmarks = face.Landmarks
		}
		if face.CropPath != "" {
			existing.CropPath = face.CropPath
		}
		// PersonID is owned by the matcher; detection re-delivery must not
		// unlink an already matched face.
		if face.PersonID != nil {
			existing.PersonID = face.PersonID
		}
		existing.UpdatedAt = now
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		out = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *faceRepo) TryUpsert(ctx context.Context, tx *gorm.DB, face *types.Face) (*types.Face, error) {
	out, err := r.Upsert(ctx, tx, face)
	return out, swallowStale(r.log, err)
}

func (r *faceRepo) LinkPerson(ctx context.Context, tx *gorm.DB, faceID, personID int64) error {
	return transact(ctx, r.db, tx, r.log, "face.link_person", r.policy, func(tx *gorm.DB) error {
		var face types.Face
		if err := tx.First(&face, faceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &errs.StaleReferenceError{Table: types.Face{}.TableName()}
			}
			return err
		}
		ok, err := entityExists(tx, face.EntityID)
		if err != nil {
			return err
		}
		if !ok {
			return &errs.StaleReferenceError{Table: types.Face{}.TableName(), EntityID: face.EntityID}
		}
		return tx.Model(&types.Face{}).
			Where("id = ?", faceID).
			Updates(map[string]any{
				"person_id":  personID,
				"updated_at": time.Now().UTC(),
			}).Error
	})
}

func (r *faceRepo) TryLinkPerson(ctx context.Context, tx *gorm.DB, faceID, personID int64) error {
	return swallowStale(r.log, r.LinkPerson(ctx, tx, faceID, personID))
}

func (r *faceRepo) Delete(ctx context.Context, tx *gorm.DB, faceID int64) error {
	return transact(ctx, r.db, tx, r.log, "face.delete", r.policy, func(tx *gorm.DB) error {
		var matchCount int64
		if err := tx.Model(&types.FaceMatch{}).
			Where("face_id = ? OR matched_face_id = ?", faceID, faceID).
			Count(&matchCount).Error; err != nil {
			return err
		}
		r.log.Info("deleting face with cascade", "face_id", faceID, "face_matches", matchCount)

		if err := tx.Where("face_id = ? OR matched_face_id = ?", faceID, faceID).
			Delete(&types.FaceMatch{}).Error; err != nil {
			return err
		}
		return tx.Delete(&types.Face{}, faceID).Error
	})
}

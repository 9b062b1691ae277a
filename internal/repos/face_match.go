package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

type FaceMatchRepo interface {
	// CreateBatch records every candidate edge from one matching decision in
	// a single write.
	CreateBatch(ctx context.Context, tx *gorm.DB, matches []*types.FaceMatch) ([]*types.FaceMatch, error)
	ListByFaceID(ctx context.Context, tx *gorm.DB, faceID int64) ([]*types.FaceMatch, error)
}

type faceMatchRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewFaceMatchRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) FaceMatchRepo {
	return &faceMatchRepo{db: db, log: baseLog.With("repo", "FaceMatchRepo"), policy: policy}
}

func (r *faceMatchRepo) CreateBatch(ctx context.Context, tx *gorm.DB, matches []*types.FaceMatch) ([]*types.FaceMatch, error) {
	if len(matches) == 0 {
		return []*types.FaceMatch{}, nil
	}
	err := transact(ctx, r.db, tx, r.log, "face_match.create_batch", r.policy, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, m := range matches {
			m.CreatedAt = now
		}
		return tx.Create(&matches).Error
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *faceMatchRepo) ListByFaceID(ctx context.Context, tx *gorm.DB, faceID int64) ([]*types.FaceMatch, error) {
	var out []*types.FaceMatch
	err := transact(ctx, r.db, tx, r.log, "face_match.list", r.policy, func(tx *gorm.DB) error {
		return tx.Where("face_id = ?", faceID).Order("score DESC").Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	errs "github.com/mvasquez-dev/photoloom-backend/internal/pkg/errors"
	"github.com/mvasquez-dev/photoloom-backend/internal/platform/logger"
	"github.com/mvasquez-dev/photoloom-backend/internal/types"
)

type JobRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rec *types.JobRecord) (*types.JobRecord, error)
	TryCreate(ctx context.Context, tx *gorm.DB, rec *types.JobRecord) (*types.JobRecord, error)
	GetByExternalID(ctx context.Context, tx *gorm.DB, externalJobID string) (*types.JobRecord, error)
	ListByEntityID(ctx context.Context, tx *gorm.DB, entityID int64) ([]*types.JobRecord, error)
	// MarkTerminal records a completion. The job row may already be gone when
	// the owning entity was deleted mid-flight; the Try variant treats that
	// like any other stale reference.
	MarkTerminal(ctx context.Context, tx *gorm.DB, externalJobID, status, errorMessage string) (*types.JobRecord, error)
	TryMarkTerminal(ctx context.Context, tx *gorm.DB, externalJobID, status, errorMessage string) (*types.JobRecord, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type jobRecordRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewJobRecordRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) JobRecordRepo {
	return &jobRecordRepo{db: db, log: baseLog.With("repo", "JobRecordRepo"), policy: policy}
}

func (r *jobRecordRepo) Create(ctx context.Context, tx *gorm.DB, rec *types.JobRecord) (*types.JobRecord, error) {
	err := transact(ctx, r.db, tx, r.log, "job_record.create", r.policy, func(tx *gorm.DB) error {
		ok, err := entityExists(tx, rec.EntityID)
		if err != nil {
			return err
		}
		if !ok {
			return &errs.StaleReferenceError{Table: types.JobRecord{}.TableName(), EntityID: rec.EntityID}
		}
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.Status == "" {
			rec.Status = types.JobStatusPending
		}
		now := time.Now().UTC()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *jobRecordRepo) TryCreate(ctx context.Context, tx *gorm.DB, rec *types.JobRecord) (*types.JobRecord, error) {
	out, err := r.Create(ctx, tx, rec)
	return out, swallowStale(r.log, err)
}

func (r *jobRecordRepo) GetByExternalID(ctx context.Context, tx *gorm.DB, externalJobID string) (*types.JobRecord, error) {
	var out *types.JobRecord
	err := transact(ctx, r.db, tx, r.log, "job_record.get", r.policy, func(tx *gorm.DB) error {
		var rec types.JobRecord
		if err := tx.Where("external_job_id = ?", externalJobID).First(&rec).Error; err != nil {
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

func (r *jobRecordRepo) ListByEntityID(ctx context.Context, tx *gorm.DB, entityID int64) ([]*types.JobRecord, error) {
	var out []*types.JobRecord
	err := transact(ctx, r.db, tx, r.log, "job_record.list", r.policy, func(tx *gorm.DB) error {
		return tx.Where("entity_id = ?", entityID).Order("created_at ASC").Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRecordRepo) MarkTerminal(ctx context.Context, tx *gorm.DB, externalJobID, status, errorMessage string) (*types.JobRecord, error) {
	var out *types.JobRecord
	err := transact(ctx, r.db, tx, r.log, "job_record.mark_terminal", r.policy, func(tx *gorm.DB) error {
		var rec types.JobRecord
		if err := tx.Where("external_job_id = ?", externalJobID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// The row cascades with entity deletion, so a missing job is
				// a stale callback. Entity id is unknown at this point.
				return &errs.StaleReferenceError{Table: types.JobRecord{}.TableName()}
			}
			return err
		}
		ok, err := entityExists(tx, rec.EntityID)
		if err != nil {
			return err
		}
		if !ok {
			return &errs.StaleReferenceError{Table: types.JobRecord{}.TableName(), EntityID: rec.EntityID}
		}
		rec.Status = status
		rec.ErrorMessage = errorMessage
		rec.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&rec).Error; err != nil {
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

func (r *jobRecordRepo) TryMarkTerminal(ctx context.Context, tx *gorm.DB, externalJobID, status, errorMessage string) (*types.JobRecord, error) {
	out, err := r.MarkTerminal(ctx, tx, externalJobID, status, errorMessage)
	return out, swallowStale(r.log, err)
}

func (r *jobRecordRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return transact(ctx, r.db, tx, r.log, "job_record.delete", r.policy, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&types.JobRecord{}).Error
	})
}

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

type PersonRepo interface {
	Create(ctx context.Context, tx *gorm.DB, person *types.Person) (*types.Person, error)
	GetByID(ctx context.Context, tx *gorm.DB, personID int64) (*types.Person, error)
	// Delete refuses to remove a person that faces still reference; callers
	// unlink faces first. Orphaning faces silently is never an option.
	Delete(ctx context.Context, tx *gorm.DB, personID int64) error
}

type personRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	policy RetryPolicy
}

func NewPersonRepo(db *gorm.DB, baseLog *logger.Logger, policy RetryPolicy) PersonRepo {
	return &personRepo{db: db, log: baseLog.With("repo", "PersonRepo"), policy: policy}
}

func (r *personRepo) Create(ctx context.Context, tx *gorm.DB, person *types.Person) (*types.Person, error) {
	err := transact(ctx, r.db, tx, r.log, "person.create", r.policy, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		person.CreatedAt = now
		person.UpdatedAt = now
		return tx.Create(person).Error
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

func (r *personRepo) GetByID(ctx context.Context, tx *gorm.DB, personID int64) (*types.Person, error) {
	var out *types.Person
	err := transact(ctx, r.db, tx, r.log, "person.get", r.policy, func(tx *gorm.DB) error {
		var p types.Person
		if err := tx.First(&p, personID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotFound
			}
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *personRepo) Delete(ctx context.Context, tx *gorm.DB, personID int64) error {
	return transact(ctx, r.db, tx, r.log, "person.delete", r.policy, func(tx *gorm.DB) error {
		var refCount int64
		if err := tx.Model(&types.Face{}).Where("person_id = ?", personID).Count(&refCount).Error; err != nil {
			return err
		}
		if refCount > 0 {
			return &errs.ReferentialIntegrityError{
				Table:    types.Person{}.TableName(),
				ID:       personID,
				RefTable: types.Face{}.TableName(),
				RefCount: refCount,
			}
		}
		return tx.Delete(&types.Person{}, personID).Error
	})
}

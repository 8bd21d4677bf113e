package db

import (
	"context"
	"errors"
	"time"

	"signet/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SignerRepository struct {
	db *gorm.DB
}

func NewSignerRepository(db *gorm.DB) *SignerRepository {
	return &SignerRepository{db: db}
}

func (r *SignerRepository) Get(ctx context.Context, userID string) (*domain.Signer, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SignerModel
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.Signer{
		ID:                model.ID,
		Email:             model.Email,
		DisplayName:       model.DisplayName,
		TwoFactorVerified: model.TwoFactorVerified,
	}, nil
}

func (r *SignerRepository) Upsert(ctx context.Context, signer domain.Signer) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	model := SignerModel{
		ID:                signer.ID,
		Email:             signer.Email,
		DisplayName:       signer.DisplayName,
		TwoFactorVerified: signer.TwoFactorVerified,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "two_factor_verified", "updated_at"}),
		}).
		Create(&model).Error
}

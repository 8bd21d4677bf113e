package db

import (
	"context"
	"errors"

	"signet/internal/domain"
	"signet/internal/infra/keys/soft"

	"gorm.io/gorm"
)

type UserKeyRepository struct {
	db *gorm.DB
}

func NewUserKeyRepository(db *gorm.DB) *UserKeyRepository {
	return &UserKeyRepository{db: db}
}

func (r *UserKeyRepository) Get(ctx context.Context, userID string) (*soft.KeyRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model UserKeyModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &soft.KeyRecord{
		UserID:     model.UserID,
		PublicKey:  copyBytes(model.PublicKey),
		PrivateKey: copyBytes(model.PrivateKey),
		Alg:        model.Alg,
		CreatedAt:  model.CreatedAt,
	}, nil
}

func (r *UserKeyRepository) Create(ctx context.Context, record soft.KeyRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := UserKeyModel{
		UserID:     record.UserID,
		PublicKey:  copyBytes(record.PublicKey),
		PrivateKey: copyBytes(record.PrivateKey),
		Alg:        record.Alg,
		CreatedAt:  record.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

var _ soft.KeyRecordStore = (*UserKeyRepository)(nil)

package db

import (
	"context"
	"errors"
	"time"

	"signet/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Share struct {
	DocumentID string
	GranteeID  string
	Level      string
	GrantedBy  string
}

type ShareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Upsert records a grant; re-granting overwrites the previous level.
func (r *ShareRepository) Upsert(ctx context.Context, share Share) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	model := ShareModel{
		DocumentID: share.DocumentID,
		GranteeID:  share.GranteeID,
		Level:      share.Level,
		GrantedBy:  share.GrantedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "grantee_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"level", "granted_by", "updated_at"}),
		}).
		Create(&model).Error
}

func (r *ShareRepository) Get(ctx context.Context, documentID, granteeID string) (*Share, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ShareModel
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND grantee_id = ?", documentID, granteeID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &Share{
		DocumentID: model.DocumentID,
		GranteeID:  model.GranteeID,
		Level:      model.Level,
		GrantedBy:  model.GrantedBy,
	}, nil
}

func (r *ShareRepository) ListByDocument(ctx context.Context, documentID string) ([]Share, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ShareModel
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("grantee_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]Share, 0, len(models))
	for _, model := range models {
		out = append(out, Share{
			DocumentID: model.DocumentID,
			GranteeID:  model.GranteeID,
			Level:      model.Level,
			GrantedBy:  model.GrantedBy,
		})
	}
	return out, nil
}

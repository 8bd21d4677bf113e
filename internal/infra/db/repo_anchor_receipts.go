package db

import (
	"context"
	"errors"
	"time"

	"signet/internal/domain"

	"gorm.io/gorm"
)

type AnchorReceiptRepository struct {
	db *gorm.DB
}

func NewAnchorReceiptRepository(db *gorm.DB) *AnchorReceiptRepository {
	return &AnchorReceiptRepository{db: db}
}

func (r *AnchorReceiptRepository) Create(ctx context.Context, receipt domain.AnchorReceipt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	model := AnchorReceiptModel{
		DocumentID:  receipt.DocumentID,
		Provider:    receipt.Provider,
		Digest:      receipt.Digest,
		Status:      string(receipt.Status),
		ErrorCode:   receipt.ErrorCode,
		EventType:   receipt.EventType,
		Actor:       receipt.Actor,
		PayloadHash: receipt.PayloadHash,
		Ref:         receipt.Ref,
		CreatedAt:   receipt.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AnchorReceiptRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.AnchorReceipt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AnchorReceiptModel
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnchorReceipt, 0, len(models))
	for _, model := range models {
		out = append(out, anchorReceiptFromModel(model))
	}
	return out, nil
}

// LatestAnchored returns the most recent successful receipt for the
// document, or domain.ErrNotFound when nothing anchored yet.
func (r *AnchorReceiptRepository) LatestAnchored(ctx context.Context, documentID string) (*domain.AnchorReceipt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AnchorReceiptModel
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND status = ?", documentID, string(domain.AnchorStatusAnchored)).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	receipt := anchorReceiptFromModel(model)
	return &receipt, nil
}

func anchorReceiptFromModel(model AnchorReceiptModel) domain.AnchorReceipt {
	return domain.AnchorReceipt{
		DocumentID:  model.DocumentID,
		Provider:    model.Provider,
		Digest:      model.Digest,
		Status:      domain.AnchorStatus(model.Status),
		ErrorCode:   model.ErrorCode,
		EventType:   model.EventType,
		Actor:       model.Actor,
		PayloadHash: model.PayloadHash,
		Ref:         model.Ref,
		CreatedAt:   model.CreatedAt,
	}
}

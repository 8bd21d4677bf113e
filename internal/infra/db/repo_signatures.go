package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"signet/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SignatureRepository struct {
	db *gorm.DB
}

func NewSignatureRepository(db *gorm.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

func (r *SignatureRepository) GetByID(ctx context.Context, signatureID string) (*domain.SignatureRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SignatureModel
	err := r.db.WithContext(ctx).
		Where("id = ?", signatureID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	history, err := r.loadHistory(ctx, r.db, signatureID)
	if err != nil {
		return nil, err
	}
	return signatureFromModel(model, history)
}

func (r *SignatureRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.SignatureRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []SignatureModel
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("signed_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SignatureRecord, 0, len(models))
	for _, model := range models {
		history, err := r.loadHistory(ctx, r.db, model.ID)
		if err != nil {
			return nil, err
		}
		record, err := signatureFromModel(model, history)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, nil
}

// CreateAndMarkSigned inserts the signature row and bumps the owning
// document's signature metadata in one transaction. The count increment
// runs SQL-side so concurrent signings never lose an update.
func (r *SignatureRepository) CreateAndMarkSigned(ctx context.Context, record domain.SignatureRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	var position []byte
	if record.Position != nil {
		raw, err := json.Marshal(record.Position)
		if err != nil {
			return err
		}
		position = raw
	}
	model := SignatureModel{
		ID:                     record.ID,
		DocumentID:             record.DocumentID,
		SignerID:               record.SignerID,
		DocumentHashAtSigning:  record.DocumentHashAtSigning,
		SignedAt:               record.SignedAt,
		Reason:                 record.Reason,
		Position:               position,
		Strength:               string(record.Strength),
		CryptographicSignature: copyBytes(record.CryptographicSignature),
		CanonicalPayload:       copyBytes(record.CanonicalPayload),
		Valid:                  record.Valid,
		CreatedAt:              time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		res := tx.Model(&DocumentModel{}).
			Where("id = ?", record.DocumentID).
			Updates(map[string]any{
				"is_signed":       true,
				"last_signed_at":  record.SignedAt,
				"signature_count": gorm.Expr("signature_count + 1"),
				"updated_at":      time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// SetValidity updates the flag and, when the verdict changed, appends the
// history entry in the same transaction.
func (r *SignatureRepository) SetValidity(ctx context.Context, signatureID string, valid bool, entry *domain.ValidationEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&SignatureModel{}).
			Where("id = ?", signatureID).
			Update("valid", valid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if entry == nil {
			return nil
		}
		row := ValidationEntryModel{
			SignatureID: signatureID,
			Timestamp:   entry.Timestamp,
			IsValid:     entry.IsValid,
			Reason:      entry.Reason,
		}
		return tx.Create(&row).Error
	})
}

func (r *SignatureRepository) loadHistory(ctx context.Context, db *gorm.DB, signatureID string) ([]domain.ValidationEntry, error) {
	var rows []ValidationEntryModel
	err := db.WithContext(ctx).
		Where("signature_id = ?", signatureID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ValidationEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ValidationEntry{
			Timestamp: row.Timestamp,
			IsValid:   row.IsValid,
			Reason:    row.Reason,
		})
	}
	return out, nil
}

func signatureFromModel(model SignatureModel, history []domain.ValidationEntry) (*domain.SignatureRecord, error) {
	var position *domain.Position
	if len(model.Position) > 0 {
		var p domain.Position
		if err := json.Unmarshal(model.Position, &p); err != nil {
			return nil, err
		}
		position = &p
	}
	return &domain.SignatureRecord{
		ID:                     model.ID,
		DocumentID:             model.DocumentID,
		SignerID:               model.SignerID,
		DocumentHashAtSigning:  model.DocumentHashAtSigning,
		SignedAt:               model.SignedAt,
		Reason:                 model.Reason,
		Position:               position,
		Strength:               domain.AuthStrength(model.Strength),
		CryptographicSignature: copyBytes(model.CryptographicSignature),
		CanonicalPayload:       copyBytes(model.CanonicalPayload),
		Valid:                  model.Valid,
		ValidationHistory:      history,
	}, nil
}

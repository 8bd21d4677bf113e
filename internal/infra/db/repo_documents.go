package db

import (
	"context"
	"errors"
	"time"

	"signet/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = domain.DocumentPending
	}
	now := time.Now().UTC()
	model := DocumentModel{
		ID:             doc.ID,
		OwnerID:        doc.OwnerID,
		ContentPath:    doc.ContentPath,
		Status:         string(doc.Status),
		IsSigned:       doc.SignatureMetadata.IsSigned,
		LastSignedAt:   doc.SignatureMetadata.LastSignedAt,
		SignatureCount: doc.SignatureMetadata.SignatureCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}
	return documentFromModel(model, nil), nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model DocumentModel
	err := r.db.WithContext(ctx).
		Where("id = ?", documentID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var procModel MultiSignProcessModel
	err = r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		First(&procModel).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return documentFromModel(model, nil), nil
	}
	process, err := processFromModel(procModel)
	if err != nil {
		return nil, err
	}
	return documentFromModel(model, process), nil
}

func (r *DocumentRepository) SaveProcess(ctx context.Context, documentID string, process *domain.MultiSignatureProcess) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if process == nil {
		return r.db.WithContext(ctx).
			Where("document_id = ?", documentID).
			Delete(&MultiSignProcessModel{}).Error
	}
	pending, err := marshalStringSet(process.PendingSigners)
	if err != nil {
		return err
	}
	completed, err := marshalStringSet(process.CompletedSigners)
	if err != nil {
		return err
	}
	model := MultiSignProcessModel{
		DocumentID:       documentID,
		PendingSigners:   pending,
		RequiredSigners:  process.RequiredSigners,
		CompletedSigners: completed,
		InitiatedAt:      process.InitiatedAt,
		InitiatedBy:      process.InitiatedBy,
		DueDate:          process.DueDate,
		CustomMessage:    process.CustomMessage,
		ProcessCompleted: process.ProcessCompleted,
		CompletedAt:      process.CompletedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

func (r *DocumentRepository) SetStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("id = ?", documentID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func documentFromModel(model DocumentModel, process *domain.MultiSignatureProcess) *domain.Document {
	return &domain.Document{
		ID:          model.ID,
		OwnerID:     model.OwnerID,
		ContentPath: model.ContentPath,
		Status:      domain.DocumentStatus(model.Status),
		SignatureMetadata: domain.SignatureMetadata{
			IsSigned:       model.IsSigned,
			LastSignedAt:   model.LastSignedAt,
			SignatureCount: model.SignatureCount,
		},
		MultiSign: process,
	}
}

func processFromModel(model MultiSignProcessModel) (*domain.MultiSignatureProcess, error) {
	pending, err := unmarshalStringSet(model.PendingSigners)
	if err != nil {
		return nil, err
	}
	completed, err := unmarshalStringSet(model.CompletedSigners)
	if err != nil {
		return nil, err
	}
	return &domain.MultiSignatureProcess{
		PendingSigners:   pending,
		RequiredSigners:  model.RequiredSigners,
		CompletedSigners: completed,
		InitiatedAt:      model.InitiatedAt,
		InitiatedBy:      model.InitiatedBy,
		DueDate:          model.DueDate,
		CustomMessage:    model.CustomMessage,
		ProcessCompleted: model.ProcessCompleted,
		CompletedAt:      model.CompletedAt,
	}, nil
}

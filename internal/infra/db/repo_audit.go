package db

import (
	"context"
	"errors"

	"signet/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Append persists an already-chained event. Seq and hashes are computed
// by the emitter; the unique (document_id, seq) index rejects a race
// where two emitters chained off the same predecessor.
func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := marshalJSON(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	model := AuditEventModel{
		ID:            event.ID,
		DocumentID:    event.DocumentID,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		Payload:       payload,
		ActorID:       event.ActorID,
		Result:        string(event.Result),
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AuditEvent{}, err
	}
	return event, nil
}

func (r *AuditEventRepository) Last(ctx context.Context, documentID string) (*domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AuditEventModel
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("seq DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return auditEventFromModel(model)
}

func (r *AuditEventRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("seq ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		event, err := auditEventFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, *event)
	}
	return out, nil
}

func auditEventFromModel(model AuditEventModel) (*domain.AuditEvent, error) {
	var payload map[string]any
	if len(model.Payload) > 0 {
		if err := unmarshalPayload(model.Payload, &payload); err != nil {
			return nil, err
		}
	}
	return &domain.AuditEvent{
		ID:            model.ID,
		DocumentID:    model.DocumentID,
		Seq:           model.Seq,
		EventType:     domain.AuditEventType(model.EventType),
		Payload:       payload,
		ActorID:       model.ActorID,
		Result:        domain.AuditResult(model.Result),
		PrevEventHash: model.PrevEventHash,
		EventHash:     model.EventHash,
		CreatedAt:     model.CreatedAt,
	}, nil
}

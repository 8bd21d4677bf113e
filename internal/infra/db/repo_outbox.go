package db

import (
	"context"
	"time"

	"signet/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, events ...domain.OutboxEvent) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(events) == 0 {
		return nil
	}
	models := make([]OutboxEventModel, 0, len(events))
	for _, event := range events {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Status == "" {
			event.Status = domain.OutboxPending
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}
		payload, err := marshalJSON(event.Payload)
		if err != nil {
			return err
		}
		models = append(models, OutboxEventModel{
			ID:         event.ID,
			DocumentID: event.DocumentID,
			Kind:       string(event.Kind),
			Payload:    payload,
			Status:     string(event.Status),
			Attempts:   event.Attempts,
			LastError:  event.LastError,
			CreatedAt:  event.CreatedAt,
		})
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	var models []OutboxEventModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.OutboxPending)).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.OutboxEvent, 0, len(models))
	for _, model := range models {
		event, err := outboxEventFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, *event)
	}
	return out, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, eventID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&OutboxEventModel{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"status":        string(domain.OutboxDispatched),
			"attempts":      gorm.Expr("attempts + 1"),
			"dispatched_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID string, reason string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&OutboxEventModel{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"status":     string(domain.OutboxFailed),
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func outboxEventFromModel(model OutboxEventModel) (*domain.OutboxEvent, error) {
	var payload map[string]any
	if len(model.Payload) > 0 {
		if err := unmarshalPayload(model.Payload, &payload); err != nil {
			return nil, err
		}
	}
	return &domain.OutboxEvent{
		ID:           model.ID,
		DocumentID:   model.DocumentID,
		Kind:         domain.OutboxKind(model.Kind),
		Payload:      payload,
		Status:       domain.OutboxStatus(model.Status),
		Attempts:     model.Attempts,
		LastError:    model.LastError,
		CreatedAt:    model.CreatedAt,
		DispatchedAt: model.DispatchedAt,
	}, nil
}

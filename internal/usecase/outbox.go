package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
)

// Outbox is the post-commit side-effect queue. Core operations emit events
// into it after their transaction commits; dispatch is best-effort and a
// failed dispatch is recorded and logged, never propagated to the caller.
type Outbox struct {
	Repo     OutboxRepository
	Notifier NotificationCollaborator
	Anchor   AnchorCollaborator
	Audit    *AuditEmitter
	Clock    Clock
}

// Emit enqueues the events and immediately attempts one dispatch round.
func (o *Outbox) Emit(ctx context.Context, events ...domain.OutboxEvent) error {
	if o == nil || o.Repo == nil {
		return nil
	}
	now := o.now().UTC()
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		events[i].Status = domain.OutboxPending
		events[i].CreatedAt = now
	}
	if err := o.Repo.Enqueue(ctx, events...); err != nil {
		return fmt.Errorf("enqueue outbox events: %w", err)
	}
	for _, event := range events {
		o.dispatchOne(ctx, event)
	}
	return nil
}

// DispatchPending drains up to limit pending events; the retry loop in
// cmd calls this periodically to pick up events whose first dispatch
// failed or never ran.
func (o *Outbox) DispatchPending(ctx context.Context, limit int) (int, error) {
	if o == nil || o.Repo == nil {
		return 0, nil
	}
	events, err := o.Repo.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, event := range events {
		if o.dispatchOne(ctx, event) {
			dispatched++
		}
	}
	return dispatched, nil
}

func (o *Outbox) dispatchOne(ctx context.Context, event domain.OutboxEvent) bool {
	err := o.deliver(ctx, event)
	if err != nil {
		log.Printf("dispatch outbox event %s (%s): %v", event.ID, event.Kind, err)
		if markErr := o.Repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			log.Printf("mark outbox event %s failed: %v", event.ID, markErr)
		}
		return false
	}
	if err := o.Repo.MarkDispatched(ctx, event.ID); err != nil {
		log.Printf("mark outbox event %s dispatched: %v", event.ID, err)
	}
	return true
}

func (o *Outbox) deliver(ctx context.Context, event domain.OutboxEvent) error {
	switch event.Kind {
	case domain.OutboxNotify:
		if o.Notifier == nil {
			return fmt.Errorf("no notifier configured")
		}
		templateID, _ := event.Payload["template_id"].(string)
		recipient, _ := event.Payload["recipient"].(string)
		if templateID == "" || recipient == "" {
			return fmt.Errorf("notify event missing template_id or recipient")
		}
		if !o.Notifier.Send(ctx, templateID, recipient, event.Payload) {
			return fmt.Errorf("notification not delivered")
		}
		return nil
	case domain.OutboxAnchor:
		if o.Anchor == nil {
			return fmt.Errorf("no anchor collaborator configured")
		}
		digest, _ := event.Payload["digest"].(string)
		eventType, _ := event.Payload["event_type"].(string)
		actor, _ := event.Payload["actor"].(string)
		if !o.Anchor.Record(ctx, event.DocumentID, digest, eventType, actor, event.Payload) {
			return fmt.Errorf("anchor provider declined")
		}
		return nil
	case domain.OutboxAudit:
		if o.Audit == nil {
			return fmt.Errorf("no audit emitter configured")
		}
		eventType, _ := event.Payload["event_type"].(string)
		actorID, _ := event.Payload["actor_id"].(string)
		_, err := o.Audit.Emit(ctx, event.DocumentID, domain.AuditEventType(eventType), actorID, event.Payload)
		return err
	default:
		return fmt.Errorf("unknown outbox kind %q", event.Kind)
	}
}

func (o *Outbox) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

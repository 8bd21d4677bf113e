package domain

import "time"

type OutboxKind string

const (
	OutboxNotify OutboxKind = "notify"
	OutboxAnchor OutboxKind = "anchor"
	OutboxAudit  OutboxKind = "audit"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxDispatched OutboxStatus = "dispatched"
	OutboxFailed     OutboxStatus = "failed"
)

// OutboxEvent decouples advisory side effects (notifications, anchoring,
// audit entries) from the transaction that produced them. Events are
// enqueued after commit and dispatched best-effort.
type OutboxEvent struct {
	ID           string
	DocumentID   string
	Kind         OutboxKind
	Payload      map[string]any
	Status       OutboxStatus
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

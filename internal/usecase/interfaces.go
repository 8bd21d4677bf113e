package usecase

import (
	"context"
	"time"

	"signet/internal/domain"
)

type Clock func() time.Time

type DocumentRepository interface {
	GetByID(ctx context.Context, documentID string) (*domain.Document, error)
	// SaveProcess persists the multi-signature sub-record; nil clears it.
	SaveProcess(ctx context.Context, documentID string, process *domain.MultiSignatureProcess) error
}

type SignatureRepository interface {
	GetByID(ctx context.Context, signatureID string) (*domain.SignatureRecord, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.SignatureRecord, error)
	// CreateAndMarkSigned persists the record and the document's signature
	// metadata update as one transaction.
	CreateAndMarkSigned(ctx context.Context, record domain.SignatureRecord) error
	// SetValidity persists the validity flag and, when entry is non-nil,
	// appends it to the validation history in the same transaction.
	SetValidity(ctx context.Context, signatureID string, valid bool, entry *domain.ValidationEntry) error
}

type SignerDirectory interface {
	Get(ctx context.Context, userID string) (*domain.Signer, error)
}

type HashService interface {
	Hash(ctx context.Context, contentPath string) (string, error)
}

type CryptoService interface {
	BuildSigningPayload(p SigningPayload) ([]byte, error)
}

// SigningPayload is the ordered structure serialized into the canonical
// payload. The timestamp string is captured once at signing and reused
// verbatim in the stored record.
type SigningPayload struct {
	DocumentID string
	Digest     string
	SignerID   string
	Timestamp  string
	Reason     string
	Position   *domain.Position
	Strength   domain.AuthStrength
	Context    map[string]any
}

type AccessLevel string

const (
	AccessRead    AccessLevel = "read"
	AccessComment AccessLevel = "comment"
	AccessSign    AccessLevel = "sign"
)

type SharingCollaborator interface {
	GrantAccess(ctx context.Context, ownerID, documentID, granteeID string, level AccessLevel) error
	CanAccess(ctx context.Context, userID, documentID string) (bool, error)
	CanSign(ctx context.Context, userID, documentID string) (bool, error)
}

// NotificationCollaborator delivery is best-effort: the boolean reports
// whether this recipient's notification went out, and callers only count it.
type NotificationCollaborator interface {
	Send(ctx context.Context, templateID string, recipient string, data map[string]any) bool
}

// AnchorCollaborator registers a digest with an external ledger,
// best-effort, never required for correctness.
type AnchorCollaborator interface {
	Record(ctx context.Context, documentID, digest, eventType, actor string, metadata map[string]any) bool
}

// AnchorChecker is the optional cross-check used by document integrity
// verification. A negative answer downgrades intact to false; a positive
// answer never upgrades it.
type AnchorChecker interface {
	Confirm(ctx context.Context, documentID, digest string) (bool, error)
}

// DocumentLocker serializes the per-document read-recompute-write span of
// signing and quorum progress. Lock blocks until acquired or ctx is done.
type DocumentLocker interface {
	Lock(ctx context.Context, documentID string) (func(), error)
}

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	Last(ctx context.Context, documentID string) (*domain.AuditEvent, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, events ...domain.OutboxEvent) error
	ListPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, reason string) error
}

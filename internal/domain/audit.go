package domain

import "time"

type AuditEventType string

const (
	AuditEventDocumentSigned     AuditEventType = "document_signed"
	AuditEventSignatureVerified  AuditEventType = "signature_verified"
	AuditEventIntegrityChecked   AuditEventType = "integrity_checked"
	AuditEventMultiSignInitiated AuditEventType = "multisign_initiated"
	AuditEventMultiSignProgress  AuditEventType = "multisign_progress"
	AuditEventMultiSignCompleted AuditEventType = "multisign_completed"
	AuditEventMultiSignCancelled AuditEventType = "multisign_cancelled"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditEvent entries form a per-document hash chain: EventHash covers the
// payload and PrevEventHash, so truncation or reordering is detectable.
type AuditEvent struct {
	ID            string
	DocumentID    string
	Seq           int64
	EventType     AuditEventType
	Payload       map[string]any
	ActorID       string
	Result        AuditResult
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}

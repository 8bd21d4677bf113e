package domain

import "time"

type AnchorStatus string

const (
	AnchorStatusAnchored AnchorStatus = "anchored"
	AnchorStatusFailed   AnchorStatus = "failed"
	AnchorStatusSkipped  AnchorStatus = "skipped"
)

const (
	AnchorErrorTimeout  = "timeout"
	AnchorErrorDisabled = "disabled"
	AnchorErrorUnknown  = "unknown_provider"
)

// AnchorReceipt records one best-effort attempt to register a document
// digest with an external ledger. Anchoring is advisory: a failed receipt
// never fails the operation that requested it.
type AnchorReceipt struct {
	DocumentID  string
	Provider    string
	Digest      string
	Status      AnchorStatus
	ErrorCode   string
	EventType   string
	Actor       string
	PayloadHash string
	Ref         string
	CreatedAt   time.Time
}

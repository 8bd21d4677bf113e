package domain

import "time"

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentError      DocumentStatus = "error"
)

type SignatureMetadata struct {
	IsSigned       bool
	LastSignedAt   *time.Time
	SignatureCount int
}

// MultiSignatureProcess is the per-document quorum workflow record.
// PendingSigners is fixed at initiation; CompletedSigners is a derived
// cache rebuilt from the signature store on every status read.
type MultiSignatureProcess struct {
	PendingSigners   []string
	RequiredSigners  int
	CompletedSigners []string
	InitiatedAt      time.Time
	InitiatedBy      string
	DueDate          *time.Time
	CustomMessage    string
	ProcessCompleted bool
	CompletedAt      *time.Time
}

func (p *MultiSignatureProcess) HasPendingSigner(userID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.PendingSigners {
		if id == userID {
			return true
		}
	}
	return false
}

func (p *MultiSignatureProcess) HasCompletedSigner(userID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.CompletedSigners {
		if id == userID {
			return true
		}
	}
	return false
}

// QuorumUnreachable reports the caller configuration error where the
// threshold exceeds the invited set. It is surfaced, never auto-corrected.
func (p *MultiSignatureProcess) QuorumUnreachable() bool {
	if p == nil {
		return false
	}
	return p.RequiredSigners > len(p.PendingSigners)
}

type Document struct {
	ID                string
	OwnerID           string
	ContentPath       string
	Status            DocumentStatus
	SignatureMetadata SignatureMetadata
	MultiSign         *MultiSignatureProcess
}

// Signable reports whether the document is in a state that accepts new
// signatures.
func (d *Document) Signable() bool {
	return d.Status == DocumentPending || d.Status == DocumentCompleted
}

type Signer struct {
	ID                string
	Email             string
	DisplayName       string
	TwoFactorVerified bool
}

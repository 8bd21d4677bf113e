package domain

import "time"

// Reasons reported on failed verification. A hash mismatch outranks a bad
// cryptographic signature in reporting: a modified document is the more
// actionable diagnosis when both checks fail.
const (
	ReasonSignatureInvalid = "signature verification failed"
	ReasonDocumentModified = "document modified since signing"
	ReasonAnchorMismatch   = "external anchor does not confirm current digest"
)

type VerificationResult struct {
	SignatureID string
	SignerID    string
	IsValid     bool
	Reason      string
	VerifiedAt  time.Time
}

// DocumentIntegrity is the conjunction over every signature of a document:
// one failing signature makes the whole document not intact.
type DocumentIntegrity struct {
	DocumentID    string
	Intact        bool
	CurrentDigest string
	Signatures    []VerificationResult
	VerifiedAt    time.Time
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type RiskAssessment struct {
	SignatureID string
	Level       RiskLevel
	Score       int
	Factors     []string
	AssessedAt  time.Time
}

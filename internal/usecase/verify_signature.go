package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"signet/internal/domain"
)

// VerifySignature re-derives trust for one signature. The stored valid flag
// is only an output target: both the cryptographic check and the document
// hash check are recomputed on every call.
type VerifySignature struct {
	Signatures SignatureRepository
	Documents  DocumentRepository
	Keys       domain.KeyStore
	Hash       HashService
	Clock      Clock
}

func (uc *VerifySignature) Execute(ctx context.Context, signatureID string) (*domain.VerificationResult, error) {
	record, err := uc.Signatures.GetByID(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.Documents.GetByID(ctx, record.DocumentID)
	if err != nil {
		return nil, err
	}

	isValid, reason, err := uc.check(ctx, record, doc, "")
	if err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{
		SignatureID: record.ID,
		SignerID:    record.SignerID,
		IsValid:     isValid,
		Reason:      reason,
		VerifiedAt:  uc.now().UTC(),
	}
	if err := uc.persistOutcome(ctx, record, result); err != nil {
		return nil, err
	}
	return result, nil
}

// check runs both live checks. currentDigest may be passed in when the
// caller already computed it (document-wide verification); the hash
// mismatch diagnosis takes reporting precedence over a bad signature.
func (uc *VerifySignature) check(ctx context.Context, record *domain.SignatureRecord, doc *domain.Document, currentDigest string) (bool, string, error) {
	cryptoOK, err := uc.Keys.Verify(ctx, record.SignerID, record.CanonicalPayload, record.CryptographicSignature)
	if err != nil {
		return false, "", fmt.Errorf("%w: verify signature %s: %v", domain.ErrCryptoFailure, record.ID, err)
	}

	if currentDigest == "" {
		currentDigest, err = uc.Hash.Hash(ctx, doc.ContentPath)
		if err != nil {
			return false, "", fmt.Errorf("hash document content: %w", err)
		}
	}
	if currentDigest != record.DocumentHashAtSigning {
		return false, domain.ReasonDocumentModified, nil
	}
	if !cryptoOK {
		return false, domain.ReasonSignatureInvalid, nil
	}
	return true, "", nil
}

// persistOutcome updates the cached flag, appending a history entry only on
// a state change so repeated no-op checks do not grow the log.
func (uc *VerifySignature) persistOutcome(ctx context.Context, record *domain.SignatureRecord, result *domain.VerificationResult) error {
	if result.IsValid == record.Valid {
		return nil
	}
	entry := &domain.ValidationEntry{
		Timestamp: result.VerifiedAt,
		IsValid:   result.IsValid,
		Reason:    result.Reason,
	}
	return uc.Signatures.SetValidity(ctx, record.ID, result.IsValid, entry)
}

func (uc *VerifySignature) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now()
}

// VerifyDocumentIntegrity extends per-signature verification across every
// signature of a document. Intact is a conjunction, not a quorum: one
// failing signature makes the document not intact.
type VerifyDocumentIntegrity struct {
	Documents  DocumentRepository
	Signatures SignatureRepository
	Verify     *VerifySignature
	CrossCheck AnchorChecker
	Outbox     *Outbox
	Clock      Clock
}

func (uc *VerifyDocumentIntegrity) Execute(ctx context.Context, documentID string) (*domain.DocumentIntegrity, error) {
	doc, err := uc.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	records, err := uc.Signatures.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	currentDigest, err := uc.Verify.Hash.Hash(ctx, doc.ContentPath)
	if err != nil {
		return nil, fmt.Errorf("hash document content: %w", err)
	}

	verifiedAt := uc.now().UTC()
	intact := true
	results := make([]domain.VerificationResult, 0, len(records))
	for i := range records {
		record := &records[i]
		isValid, reason, err := uc.Verify.check(ctx, record, doc, currentDigest)
		if err != nil {
			return nil, err
		}
		result := domain.VerificationResult{
			SignatureID: record.ID,
			SignerID:    record.SignerID,
			IsValid:     isValid,
			Reason:      reason,
			VerifiedAt:  verifiedAt,
		}
		if err := uc.Verify.persistOutcome(ctx, record, &result); err != nil {
			return nil, err
		}
		if !isValid {
			intact = false
		}
		results = append(results, result)
	}

	// The external ledger can only downgrade the verdict, never upgrade it.
	if intact && uc.CrossCheck != nil {
		confirmed, err := uc.CrossCheck.Confirm(ctx, documentID, currentDigest)
		if err != nil {
			log.Printf("anchor cross-check for document %s: %v", documentID, err)
		} else if !confirmed {
			intact = false
		}
	}

	integrity := &domain.DocumentIntegrity{
		DocumentID:    documentID,
		Intact:        intact,
		CurrentDigest: currentDigest,
		Signatures:    results,
		VerifiedAt:    verifiedAt,
	}
	uc.emitAudit(ctx, integrity)
	return integrity, nil
}

func (uc *VerifyDocumentIntegrity) emitAudit(ctx context.Context, integrity *domain.DocumentIntegrity) {
	if uc.Outbox == nil {
		return
	}
	err := uc.Outbox.Emit(ctx, domain.OutboxEvent{
		DocumentID: integrity.DocumentID,
		Kind:       domain.OutboxAudit,
		Payload: map[string]any{
			"event_type":      string(domain.AuditEventIntegrityChecked),
			"intact":          integrity.Intact,
			"signature_count": len(integrity.Signatures),
			"digest":          integrity.CurrentDigest,
		},
	})
	if err != nil {
		log.Printf("enqueue integrity audit for document %s: %v", integrity.DocumentID, err)
	}
}

func (uc *VerifyDocumentIntegrity) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now()
}

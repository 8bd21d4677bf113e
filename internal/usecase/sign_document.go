package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
)

type SignRequest struct {
	DocumentID string
	SignerID   string
	Strength   domain.AuthStrength
	Context    domain.AuthContext
	Position   *domain.Position
	Reason     string
}

// QuorumProgress is the hand-off point into the multi-signer workflow after
// a signature has been durably recorded.
type QuorumProgress interface {
	RecordProgress(ctx context.Context, documentID, signerID string) error
}

// SignDocument produces a SignatureRecord under one of the five
// authentication strengths. Preconditions are checked in order and the
// first failure wins; side effects after the record commit are advisory.
type SignDocument struct {
	Documents  DocumentRepository
	Signatures SignatureRepository
	Signers    SignerDirectory
	Sharing    SharingCollaborator
	Hash       HashService
	Keys       domain.KeyStore
	Crypto     CryptoService
	Quorum     QuorumProgress
	Outbox     *Outbox
	Clock      Clock
}

func (uc *SignDocument) Execute(ctx context.Context, req SignRequest) (*domain.SignatureRecord, error) {
	doc, err := uc.Documents.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if !doc.Signable() {
		return nil, fmt.Errorf("%w: document not ready for signing: current status is %s", domain.ErrInvalidState, doc.Status)
	}
	if err := uc.authorizeSigner(ctx, doc, req.SignerID); err != nil {
		return nil, err
	}
	if err := uc.validateContext(ctx, req); err != nil {
		return nil, err
	}

	digest, err := uc.Hash.Hash(ctx, doc.ContentPath)
	if err != nil {
		return nil, fmt.Errorf("hash document content: %w", err)
	}

	// The timestamp is captured once; the stored record and the canonical
	// payload carry the same instant.
	signedAt := uc.now().UTC().Truncate(time.Second)
	payload, err := uc.Crypto.BuildSigningPayload(SigningPayload{
		DocumentID: doc.ID,
		Digest:     digest,
		SignerID:   req.SignerID,
		Timestamp:  signedAt.Format(time.RFC3339),
		Reason:     req.Reason,
		Position:   req.Position,
		Strength:   req.Strength,
		Context:    strengthPayload(req.Context),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: build canonical payload: %v", domain.ErrCryptoFailure, err)
	}

	sig, err := uc.Keys.Sign(ctx, req.SignerID, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: sign payload: %v", domain.ErrCryptoFailure, err)
	}

	record := domain.SignatureRecord{
		ID:                     uuid.NewString(),
		DocumentID:             doc.ID,
		SignerID:               req.SignerID,
		DocumentHashAtSigning:  digest,
		SignedAt:               signedAt,
		Reason:                 req.Reason,
		Position:               req.Position,
		Strength:               req.Strength,
		CryptographicSignature: sig,
		CanonicalPayload:       payload,
		Valid:                  true,
	}
	if err := uc.Signatures.CreateAndMarkSigned(ctx, record); err != nil {
		return nil, fmt.Errorf("persist signature: %w", err)
	}

	if doc.MultiSign != nil && uc.Quorum != nil {
		// The record is durable; a progress failure here is repaired by the
		// next resync, so it never unwinds the signature.
		if err := uc.Quorum.RecordProgress(ctx, doc.ID, req.SignerID); err != nil {
			log.Printf("multisign progress for document %s: %v", doc.ID, err)
		}
	}

	uc.emitPostCommit(ctx, doc, record)
	return &record, nil
}

func (uc *SignDocument) authorizeSigner(ctx context.Context, doc *domain.Document, signerID string) error {
	if signerID == doc.OwnerID {
		return nil
	}
	if doc.MultiSign.HasPendingSigner(signerID) {
		return nil
	}
	if uc.Sharing != nil {
		ok, err := uc.Sharing.CanSign(ctx, signerID, doc.ID)
		if err != nil {
			return fmt.Errorf("resolve signing access: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: signer %s has no signing access to document %s", domain.ErrUnauthorized, signerID, doc.ID)
}

func (uc *SignDocument) validateContext(ctx context.Context, req SignRequest) error {
	if !req.Strength.Known() {
		return fmt.Errorf("%w: unknown authentication strength %q", domain.ErrBadRequest, req.Strength)
	}
	if req.Context.Strength != req.Strength {
		return fmt.Errorf("%w: authentication context built for %q, not %q", domain.ErrBadRequest, req.Context.Strength, req.Strength)
	}
	switch req.Strength {
	case domain.StrengthBasic:
		return nil
	case domain.StrengthTwoFactor:
		if req.Context.TwoFactor == nil {
			return fmt.Errorf("%w: two-factor context is required", domain.ErrBadRequest)
		}
		signer, err := uc.Signers.Get(ctx, req.SignerID)
		if err != nil {
			return err
		}
		if !signer.TwoFactorVerified {
			return fmt.Errorf("%w: signer has no verified two-factor session", domain.ErrBadRequest)
		}
	case domain.StrengthBiometric:
		if req.Context.Biometric == nil {
			return fmt.Errorf("%w: biometric verification is required", domain.ErrBadRequest)
		}
	case domain.StrengthHandwritten:
		if req.Context.Handwritten == nil {
			return fmt.Errorf("%w: handwritten signature image is required", domain.ErrBadRequest)
		}
	case domain.StrengthExternalCertificate:
		if req.Context.Certificate == nil {
			return fmt.Errorf("%w: certificate is required", domain.ErrBadRequest)
		}
		if req.Context.Certificate.Subject != req.SignerID {
			return fmt.Errorf("%w: certificate subject %q does not match signer", domain.ErrBadRequest, req.Context.Certificate.Subject)
		}
	}
	return nil
}

// strengthPayload is the strength-specific slice of the canonical payload.
// Raw image and certificate bytes enter as digests so the payload stays
// bounded.
func strengthPayload(authCtx domain.AuthContext) map[string]any {
	switch authCtx.Strength {
	case domain.StrengthTwoFactor:
		if authCtx.TwoFactor == nil {
			return nil
		}
		return map[string]any{
			"session_id":  authCtx.TwoFactor.SessionID,
			"verified_at": authCtx.TwoFactor.VerifiedAt.UTC().Format(time.RFC3339),
		}
	case domain.StrengthBiometric:
		if authCtx.Biometric == nil {
			return nil
		}
		return map[string]any{
			"method":    authCtx.Biometric.Method,
			"challenge": authCtx.Biometric.Challenge,
			"score":     authCtx.Biometric.Score,
			"timestamp": authCtx.Biometric.Timestamp.UTC().Format(time.RFC3339),
		}
	case domain.StrengthHandwritten:
		if authCtx.Handwritten == nil {
			return nil
		}
		return map[string]any{
			"format":       string(authCtx.Handwritten.Format),
			"image_sha256": sha256Hex(authCtx.Handwritten.Image),
		}
	case domain.StrengthExternalCertificate:
		if authCtx.Certificate == nil {
			return nil
		}
		return map[string]any{
			"subject":     authCtx.Certificate.Subject,
			"cert_sha256": sha256Hex(authCtx.Certificate.CertificatePEM),
		}
	default:
		return nil
	}
}

func (uc *SignDocument) emitPostCommit(ctx context.Context, doc *domain.Document, record domain.SignatureRecord) {
	if uc.Outbox == nil {
		return
	}
	events := []domain.OutboxEvent{
		{
			DocumentID: doc.ID,
			Kind:       domain.OutboxAudit,
			Payload: map[string]any{
				"event_type":   string(domain.AuditEventDocumentSigned),
				"actor_id":     record.SignerID,
				"signature_id": record.ID,
				"strength":     string(record.Strength),
				"digest":       record.DocumentHashAtSigning,
			},
		},
		{
			DocumentID: doc.ID,
			Kind:       domain.OutboxAnchor,
			Payload: map[string]any{
				"digest":       record.DocumentHashAtSigning,
				"event_type":   "document_signed",
				"actor":        record.SignerID,
				"signature_id": record.ID,
			},
		},
	}
	if err := uc.Outbox.Emit(ctx, events...); err != nil {
		log.Printf("enqueue post-commit events for document %s: %v", doc.ID, err)
	}
}

func (uc *SignDocument) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

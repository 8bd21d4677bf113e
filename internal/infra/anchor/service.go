package anchor

import (
	"context"
	"errors"
	"log"
	"time"

	"signet/internal/domain"
	"signet/internal/usecase"
)

const providerTimeout = 2 * time.Second

type Provider interface {
	ProviderName() string
	Anchor(ctx context.Context, payload Payload) domain.AnchorReceipt
}

type ReceiptStore interface {
	Create(ctx context.Context, receipt domain.AnchorReceipt) error
	LatestAnchored(ctx context.Context, documentID string) (*domain.AnchorReceipt, error)
}

// Service fans a digest out to the configured providers, best-effort.
// Every attempt leaves a receipt, including skips and failures, so the
// integrity cross-check has something to compare against later.
type Service struct {
	providers   map[string]Provider
	providerIDs []string
	receipts    ReceiptStore
	Clock       func() time.Time
}

func NewService(providers []Provider, providerIDs []string, receipts ReceiptStore) (*Service, error) {
	index := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			return nil, errors.New("provider is nil")
		}
		id := provider.ProviderName()
		if id == "" {
			return nil, errors.New("provider id is required")
		}
		if _, exists := index[id]; exists {
			return nil, errors.New("duplicate provider id: " + id)
		}
		index[id] = provider
	}
	return &Service{providers: index, providerIDs: providerIDs, receipts: receipts}, nil
}

// Record anchors the digest with every configured provider. It reports
// whether at least one provider anchored successfully; failures are
// persisted and logged, never propagated.
func (s *Service) Record(ctx context.Context, documentID, digest, eventType, actor string, metadata map[string]any) bool {
	payload, err := BuildPayload(documentID, digest, eventType, actor, metadata)
	if err != nil {
		log.Printf("anchor: build payload for document %s: %v", documentID, err)
		return false
	}
	if len(s.providerIDs) == 0 {
		s.persist(ctx, domain.AnchorReceipt{
			DocumentID:  documentID,
			Provider:    "anchor",
			Digest:      digest,
			Status:      domain.AnchorStatusSkipped,
			ErrorCode:   domain.AnchorErrorDisabled,
			EventType:   eventType,
			Actor:       actor,
			PayloadHash: payload.HashHex,
			CreatedAt:   s.now(),
		})
		return false
	}

	anchored := false
	for _, id := range s.providerIDs {
		provider, ok := s.providers[id]
		if !ok {
			s.persist(ctx, domain.AnchorReceipt{
				DocumentID:  documentID,
				Provider:    id,
				Digest:      digest,
				Status:      domain.AnchorStatusFailed,
				ErrorCode:   domain.AnchorErrorUnknown,
				EventType:   eventType,
				Actor:       actor,
				PayloadHash: payload.HashHex,
				CreatedAt:   s.now(),
			})
			continue
		}
		providerCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		receipt := provider.Anchor(providerCtx, payload)
		timedOut := providerCtx.Err() == context.DeadlineExceeded
		cancel()

		if receipt.Provider == "" {
			receipt.Provider = provider.ProviderName()
		}
		if receipt.Status == "" {
			receipt.Status = domain.AnchorStatusAnchored
		}
		if timedOut {
			receipt.Status = domain.AnchorStatusFailed
			if receipt.ErrorCode == "" {
				receipt.ErrorCode = domain.AnchorErrorTimeout
			}
		}
		receipt.DocumentID = documentID
		receipt.Digest = digest
		receipt.EventType = eventType
		receipt.Actor = actor
		receipt.PayloadHash = payload.HashHex
		if receipt.CreatedAt.IsZero() {
			receipt.CreatedAt = s.now()
		}
		s.persist(ctx, receipt)
		if receipt.Status == domain.AnchorStatusAnchored {
			anchored = true
		}
	}
	return anchored
}

// Confirm reports whether the anchored record agrees with the digest.
// With no successful anchor on file there is no evidence either way, so
// the answer is yes.
func (s *Service) Confirm(ctx context.Context, documentID, digest string) (bool, error) {
	if s.receipts == nil {
		return true, nil
	}
	receipt, err := s.receipts.LatestAnchored(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return receipt.Digest == digest, nil
}

func (s *Service) persist(ctx context.Context, receipt domain.AnchorReceipt) {
	if s.receipts == nil {
		return
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		log.Printf("anchor: persist receipt for document %s via %s: %v", receipt.DocumentID, receipt.Provider, err)
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

var (
	_ usecase.AnchorCollaborator = (*Service)(nil)
	_ usecase.AnchorChecker      = (*Service)(nil)
)

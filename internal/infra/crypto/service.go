package crypto

import (
	"errors"

	"signet/internal/usecase"
)

// Service builds the canonical signing payload: a fixed field order,
// deterministic serialization, no reconstruction ambiguity at verify time.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) BuildSigningPayload(p usecase.SigningPayload) ([]byte, error) {
	if p.DocumentID == "" || p.SignerID == "" {
		return nil, errors.New("document id and signer id are required")
	}
	if p.Digest == "" {
		return nil, errors.New("document digest is required")
	}
	if p.Timestamp == "" {
		return nil, errors.New("signing timestamp is required")
	}

	payload := map[string]any{
		"v":           "signet_signature_v1",
		"document_id": p.DocumentID,
		"digest":      p.Digest,
		"signer_id":   p.SignerID,
		"signed_at":   p.Timestamp,
		"strength":    string(p.Strength),
	}
	if p.Reason != "" {
		payload["reason"] = p.Reason
	}
	if p.Position != nil {
		payload["position"] = map[string]any{
			"page":   p.Position.Page,
			"x":      p.Position.X,
			"y":      p.Position.Y,
			"width":  p.Position.Width,
			"height": p.Position.Height,
		}
	}
	if len(p.Context) > 0 {
		payload["context"] = p.Context
	}
	return CanonicalizeValue(payload)
}

var _ usecase.CryptoService = (*Service)(nil)

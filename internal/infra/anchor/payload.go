package anchor

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	cryptoinfra "signet/internal/infra/crypto"
)

type Payload struct {
	DocumentID    string
	Digest        string
	EventType     string
	Actor         string
	CanonicalJSON []byte
	HashHex       string
}

func BuildPayload(documentID, digest, eventType, actor string, metadata map[string]any) (Payload, error) {
	if documentID == "" {
		return Payload{}, errors.New("document_id is required")
	}
	if digest == "" {
		return Payload{}, errors.New("digest is required")
	}
	payload := map[string]any{
		"v":           "signet_anchor_v1",
		"document_id": documentID,
		"digest":      digest,
		"event_type":  eventType,
		"actor":       actor,
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	canonical, err := cryptoinfra.CanonicalizeValue(payload)
	if err != nil {
		return Payload{}, err
	}
	sum := sha256.Sum256(canonical)
	return Payload{
		DocumentID:    documentID,
		Digest:        digest,
		EventType:     eventType,
		Actor:         actor,
		CanonicalJSON: canonical,
		HashHex:       hex.EncodeToString(sum[:]),
	}, nil
}

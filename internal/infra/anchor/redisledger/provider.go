package redisledger

import (
	"context"

	"signet/internal/domain"
	"signet/internal/infra/anchor"

	"github.com/redis/go-redis/v9"
)

const defaultStream = "signet:anchor:ledger"

// Provider appends anchor payloads to a Redis stream. The stream entry ID
// becomes the receipt reference, so a receipt can be located in the
// ledger later.
type Provider struct {
	client *redis.Client
	stream string
}

func NewProvider(client *redis.Client, stream string) *Provider {
	if stream == "" {
		stream = defaultStream
	}
	return &Provider{client: client, stream: stream}
}

func (p *Provider) ProviderName() string {
	return "redis-ledger"
}

func (p *Provider) Anchor(ctx context.Context, payload anchor.Payload) domain.AnchorReceipt {
	receipt := domain.AnchorReceipt{
		Provider:    p.ProviderName(),
		PayloadHash: payload.HashHex,
	}
	if p.client == nil {
		receipt.Status = domain.AnchorStatusSkipped
		receipt.ErrorCode = domain.AnchorErrorDisabled
		return receipt
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"document_id":  payload.DocumentID,
			"digest":       payload.Digest,
			"event_type":   payload.EventType,
			"actor":        payload.Actor,
			"payload":      string(payload.CanonicalJSON),
			"payload_hash": payload.HashHex,
		},
	}).Result()
	if err != nil {
		receipt.Status = domain.AnchorStatusFailed
		receipt.ErrorCode = anchorErrorCode(ctx, err)
		return receipt
	}
	receipt.Status = domain.AnchorStatusAnchored
	receipt.Ref = p.stream + "/" + id
	return receipt
}

func anchorErrorCode(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.AnchorErrorTimeout
	}
	return "redis: " + err.Error()
}

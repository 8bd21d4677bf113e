package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
)

const auditGenesisHash = "genesis"

// AuditEmitter appends hash-chained audit events per document. Each event
// hash covers the sequence number, the previous event hash, and a
// canonical rendering of the payload, so the chain detects truncation and
// reordering.
type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func (e *AuditEmitter) Emit(ctx context.Context, documentID string, eventType domain.AuditEventType, actorID string, payload map[string]any) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if documentID == "" || eventType == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	prev, err := e.Repo.Last(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.AuditEvent{}, err
	}
	seq := int64(1)
	prevHash := auditGenesisHash
	if prev != nil {
		seq = prev.Seq + 1
		prevHash = prev.EventHash
	}

	event := domain.AuditEvent{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		Seq:           seq,
		EventType:     eventType,
		Payload:       payload,
		ActorID:       actorID,
		Result:        domain.AuditResultSuccess,
		PrevEventHash: prevHash,
		CreatedAt:     e.now().UTC(),
	}
	event.EventHash, err = chainHash(event)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("hash audit event: %w", err)
	}
	return e.Repo.Append(ctx, event)
}

// VerifyChain walks a document's audit trail and reports the first break.
func (e *AuditEmitter) VerifyChain(ctx context.Context, documentID string) error {
	events, err := e.Repo.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	prevHash := auditGenesisHash
	for i, event := range events {
		if event.Seq != int64(i+1) {
			return fmt.Errorf("audit chain gap at seq %d", event.Seq)
		}
		if event.PrevEventHash != prevHash {
			return fmt.Errorf("audit chain broken before seq %d", event.Seq)
		}
		want, err := chainHash(event)
		if err != nil {
			return err
		}
		if event.EventHash != want {
			return fmt.Errorf("audit event %s hash mismatch", event.ID)
		}
		prevHash = event.EventHash
	}
	return nil
}

func (e *AuditEmitter) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func chainHash(event domain.AuditEvent) (string, error) {
	payload, err := canonicalPayloadJSON(event.Payload)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(event.DocumentID))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(event.Seq, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(event.EventType))
	h.Write([]byte{'|'})
	h.Write([]byte(event.PrevEventHash))
	h.Write([]byte{'|'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalPayloadJSON renders the payload with sorted keys so the chain
// hash is stable across marshalling runs.
func canonicalPayloadJSON(payload map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, payload[k])
	}
	return json.Marshal(ordered)
}

package usecase

import (
	"context"
	"testing"

	"signet/internal/domain"
)

func TestAuditEmitterChains(t *testing.T) {
	repo := &memAuditRepo{}
	emitter := &AuditEmitter{Repo: repo}

	first, err := emitter.Emit(context.Background(), "doc-1", domain.AuditEventDocumentSigned, "owner-1", map[string]any{"digest": "sha256:aaaa"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if first.Seq != 1 || first.PrevEventHash != auditGenesisHash {
		t.Fatalf("first event = %+v", first)
	}
	second, err := emitter.Emit(context.Background(), "doc-1", domain.AuditEventIntegrityChecked, "owner-1", map[string]any{"intact": true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if second.Seq != 2 || second.PrevEventHash != first.EventHash {
		t.Fatalf("second event = %+v", second)
	}

	// Chains are per document.
	other, err := emitter.Emit(context.Background(), "doc-2", domain.AuditEventDocumentSigned, "owner-2", nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if other.Seq != 1 || other.PrevEventHash != auditGenesisHash {
		t.Fatalf("other document event = %+v", other)
	}

	if err := emitter.VerifyChain(context.Background(), "doc-1"); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestAuditVerifyChainDetectsTampering(t *testing.T) {
	repo := &memAuditRepo{}
	emitter := &AuditEmitter{Repo: repo}

	for i := 0; i < 3; i++ {
		if _, err := emitter.Emit(context.Background(), "doc-1", domain.AuditEventMultiSignProgress, "owner-1", map[string]any{"step": i}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	repo.events[1].Payload["step"] = 99
	if err := emitter.VerifyChain(context.Background(), "doc-1"); err == nil {
		t.Fatal("tampered payload not detected")
	}

	// Restore and break the linkage instead.
	repo.events[1].Payload["step"] = 1
	repo.events[2].PrevEventHash = "bogus"
	if err := emitter.VerifyChain(context.Background(), "doc-1"); err == nil {
		t.Fatal("broken linkage not detected")
	}
}

func TestOutboxDispatchAndRetry(t *testing.T) {
	repo := &memOutboxRepo{}
	notifier := &fakeNotifier{failFor: map[string]bool{"down@example.com": true}}
	anchor := &fakeAnchor{}
	outbox := &Outbox{
		Repo:     repo,
		Notifier: notifier,
		Anchor:   anchor,
		Audit:    &AuditEmitter{Repo: &memAuditRepo{}},
	}

	err := outbox.Emit(context.Background(),
		domain.OutboxEvent{
			DocumentID: "doc-1",
			Kind:       domain.OutboxNotify,
			Payload:    map[string]any{"template_id": TemplateMultiSignInvite, "recipient": "up@example.com"},
		},
		domain.OutboxEvent{
			DocumentID: "doc-1",
			Kind:       domain.OutboxNotify,
			Payload:    map[string]any{"template_id": TemplateMultiSignInvite, "recipient": "down@example.com"},
		},
		domain.OutboxEvent{
			DocumentID: "doc-1",
			Kind:       domain.OutboxAnchor,
			Payload:    map[string]any{"digest": "sha256:aaaa", "event_type": "document_signed", "actor": "owner-1"},
		},
	)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var dispatched, failed int
	for _, event := range repo.events {
		switch event.Status {
		case domain.OutboxDispatched:
			dispatched++
		case domain.OutboxFailed:
			failed++
		}
	}
	if dispatched != 2 || failed != 1 {
		t.Fatalf("dispatched = %d, failed = %d", dispatched, failed)
	}
	if len(anchor.recorded) != 1 {
		t.Fatalf("anchor attempts = %d", len(anchor.recorded))
	}

	// The failed event is not retried by DispatchPending; only pending ones.
	n, err := outbox.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("dispatch pending: %v", err)
	}
	if n != 0 {
		t.Fatalf("dispatched %d events from an empty pending set", n)
	}
}

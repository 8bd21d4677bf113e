package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"signet/internal/domain"
)

// Notification template identifiers used by the quorum workflow.
const (
	TemplateMultiSignInvite    = "multisign_invite"
	TemplateMultiSignProgress  = "multisign_progress"
	TemplateMultiSignCompleted = "multisign_completed"
	TemplateMultiSignCancelled = "multisign_cancelled"
)

type InitiateOptions struct {
	RequiredSigners int
	DueDate         *time.Time
	CustomMessage   string
}

// InitiationReport tells the caller how many of the invited signers
// actually ended up with a shared-access grant and a sent notification;
// both are independently fallible.
type InitiationReport struct {
	Invited  int
	Granted  int
	Notified int
}

type StatusSnapshot struct {
	DocumentID        string
	PendingSigners    []string
	RequiredSigners   int
	CompletedSigners  []string
	RemainingSigners  []string
	ProcessCompleted  bool
	CompletedAt       *time.Time
	InitiatedAt       time.Time
	InitiatedBy       string
	DueDate           *time.Time
	CustomMessage     string
	QuorumUnreachable bool
}

// QuorumCoordinator owns the multi-signer workflow. The document's
// completedSigners/processCompleted fields are a read-through cache: every
// status read re-derives them from the signature store, so any stale cache
// left by a crash or race is corrected on the next read.
type QuorumCoordinator struct {
	Documents  DocumentRepository
	Signatures SignatureRepository
	Signers    SignerDirectory
	Sharing    SharingCollaborator
	Notifier   NotificationCollaborator
	Locks      DocumentLocker
	Outbox     *Outbox
	Clock      Clock
}

// Initiate starts a multi-signer process. Only the document owner may
// initiate, and only when no process exists; membership changes require
// cancel-and-reinitiate.
func (qc *QuorumCoordinator) Initiate(ctx context.Context, documentID, ownerID string, signerIDs []string, opts InitiateOptions) (*InitiationReport, error) {
	doc, err := qc.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: only the document owner may initiate multi-signing", domain.ErrUnauthorized)
	}
	if doc.MultiSign != nil {
		if doc.MultiSign.ProcessCompleted {
			return nil, fmt.Errorf("%w: multi-signature process already completed", domain.ErrInvalidState)
		}
		return nil, fmt.Errorf("%w: multi-signature process already active", domain.ErrInvalidState)
	}

	signers := dedupe(signerIDs)
	if len(signers) == 0 {
		return nil, fmt.Errorf("%w: at least one signer is required", domain.ErrBadRequest)
	}
	required := opts.RequiredSigners
	if required <= 0 {
		required = len(signers)
	}

	process := &domain.MultiSignatureProcess{
		PendingSigners:   signers,
		RequiredSigners:  required,
		CompletedSigners: []string{},
		InitiatedAt:      qc.now().UTC(),
		InitiatedBy:      ownerID,
		DueDate:          opts.DueDate,
		CustomMessage:    opts.CustomMessage,
	}
	if err := qc.Documents.SaveProcess(ctx, documentID, process); err != nil {
		return nil, fmt.Errorf("persist multi-signature process: %w", err)
	}

	report := &InitiationReport{Invited: len(signers)}
	for _, signerID := range signers {
		if err := qc.Sharing.GrantAccess(ctx, ownerID, documentID, signerID, AccessSign); err != nil {
			log.Printf("grant signing access to %s on %s: %v", signerID, documentID, err)
		} else {
			report.Granted++
		}
		if qc.notify(ctx, TemplateMultiSignInvite, signerID, map[string]any{
			"document_id": documentID,
			"invited_by":  ownerID,
			"due_date":    opts.DueDate,
			"message":     opts.CustomMessage,
		}) {
			report.Notified++
		}
	}

	qc.emitAudit(ctx, documentID, domain.AuditEventMultiSignInitiated, ownerID, map[string]any{
		"pending_signers":  signers,
		"required_signers": required,
	})
	return report, nil
}

// RecordProgress is called after every successful signature on a document
// with an active process. It is idempotent: a signer outside the invited
// set, or one already counted, changes nothing and re-fires no completion.
func (qc *QuorumCoordinator) RecordProgress(ctx context.Context, documentID, signerID string) error {
	unlock, err := qc.lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := qc.Documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	process := doc.MultiSign
	if process == nil || process.ProcessCompleted {
		return nil
	}
	if !process.HasPendingSigner(signerID) || process.HasCompletedSigner(signerID) {
		return nil
	}

	changed, completedNow, err := qc.recompute(ctx, documentID, process)
	if err != nil {
		return err
	}
	if changed {
		if err := qc.Documents.SaveProcess(ctx, documentID, process); err != nil {
			return fmt.Errorf("persist quorum progress: %w", err)
		}
	}

	if completedNow {
		qc.announceCompletion(ctx, doc, process)
		return nil
	}
	remaining := remainingSigners(process)
	for _, pending := range remaining {
		qc.notify(ctx, TemplateMultiSignProgress, pending, map[string]any{
			"document_id":       documentID,
			"signed_by":         signerID,
			"completed":         len(process.CompletedSigners),
			"required":          process.RequiredSigners,
			"remaining_signers": strings.Join(remaining, ", "),
		})
	}
	qc.emitAudit(ctx, documentID, domain.AuditEventMultiSignProgress, signerID, map[string]any{
		"completed_signers": process.CompletedSigners,
		"remaining_signers": remaining,
	})
	return nil
}

// Resync rebuilds the cached completedSigners/processCompleted purely from
// the signature store and overwrites the cache on disagreement. Safe to
// call arbitrarily often and concurrently with RecordProgress: both derive
// the same fixed point from the same store.
func (qc *QuorumCoordinator) Resync(ctx context.Context, documentID string) (*domain.MultiSignatureProcess, error) {
	doc, err := qc.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	process := doc.MultiSign
	if process == nil {
		return nil, nil
	}
	changed, completedNow, err := qc.recompute(ctx, documentID, process)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := qc.Documents.SaveProcess(ctx, documentID, process); err != nil {
			return nil, fmt.Errorf("persist resynced process: %w", err)
		}
	}
	if completedNow {
		qc.announceCompletion(ctx, doc, process)
	}
	return process, nil
}

// GetStatus always resyncs before answering so callers never observe a
// stale quorum count.
func (qc *QuorumCoordinator) GetStatus(ctx context.Context, documentID string) (*StatusSnapshot, error) {
	process, err := qc.Resync(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if process == nil {
		return nil, fmt.Errorf("%w: document %s has no multi-signature process", domain.ErrNotFound, documentID)
	}
	return &StatusSnapshot{
		DocumentID:        documentID,
		PendingSigners:    append([]string(nil), process.PendingSigners...),
		RequiredSigners:   process.RequiredSigners,
		CompletedSigners:  append([]string(nil), process.CompletedSigners...),
		RemainingSigners:  remainingSigners(process),
		ProcessCompleted:  process.ProcessCompleted,
		CompletedAt:       process.CompletedAt,
		InitiatedAt:       process.InitiatedAt,
		InitiatedBy:       process.InitiatedBy,
		DueDate:           process.DueDate,
		CustomMessage:     process.CustomMessage,
		QuorumUnreachable: process.QuorumUnreachable(),
	}, nil
}

// Cancel reverts an active process to the no-process state. Prior
// signature records are kept: cancellation removes the quorum requirement,
// it does not invalidate signatures.
func (qc *QuorumCoordinator) Cancel(ctx context.Context, documentID, requesterID string) error {
	unlock, err := qc.lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := qc.Documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.OwnerID != requesterID {
		return fmt.Errorf("%w: only the document owner may cancel multi-signing", domain.ErrUnauthorized)
	}
	process := doc.MultiSign
	if process == nil {
		return fmt.Errorf("%w: document %s has no multi-signature process", domain.ErrNotFound, documentID)
	}
	if process.ProcessCompleted {
		return fmt.Errorf("%w: process already completed", domain.ErrInvalidState)
	}

	if err := qc.Documents.SaveProcess(ctx, documentID, nil); err != nil {
		return fmt.Errorf("clear multi-signature process: %w", err)
	}
	for _, signerID := range process.PendingSigners {
		qc.notify(ctx, TemplateMultiSignCancelled, signerID, map[string]any{
			"document_id":  documentID,
			"cancelled_by": requesterID,
		})
	}
	qc.emitAudit(ctx, documentID, domain.AuditEventMultiSignCancelled, requesterID, map[string]any{
		"pending_signers": process.PendingSigners,
	})
	return nil
}

// recompute derives completedSigners from currently-valid signature records
// intersected with the invited set, and checks quorum. processCompleted is
// monotonic: recompute sets it, only Cancel clears the process.
func (qc *QuorumCoordinator) recompute(ctx context.Context, documentID string, process *domain.MultiSignatureProcess) (changed bool, completedNow bool, err error) {
	records, err := qc.Signatures.ListByDocument(ctx, documentID)
	if err != nil {
		return false, false, fmt.Errorf("list signatures: %w", err)
	}
	seen := make(map[string]struct{}, len(records))
	completed := make([]string, 0, len(process.PendingSigners))
	for _, record := range records {
		if !record.Valid {
			continue
		}
		if !process.HasPendingSigner(record.SignerID) {
			// Signatures from outside the invited set (the owner included)
			// never count toward quorum.
			continue
		}
		if _, dup := seen[record.SignerID]; dup {
			continue
		}
		seen[record.SignerID] = struct{}{}
		completed = append(completed, record.SignerID)
	}

	if !equalStringSets(process.CompletedSigners, completed) {
		process.CompletedSigners = completed
		changed = true
	}
	if !process.ProcessCompleted && len(completed) >= process.RequiredSigners {
		process.ProcessCompleted = true
		at := qc.now().UTC()
		process.CompletedAt = &at
		changed = true
		completedNow = true
	}
	return changed, completedNow, nil
}

func (qc *QuorumCoordinator) announceCompletion(ctx context.Context, doc *domain.Document, process *domain.MultiSignatureProcess) {
	participants := append([]string{doc.OwnerID}, process.PendingSigners...)
	for _, participant := range dedupe(participants) {
		qc.notify(ctx, TemplateMultiSignCompleted, participant, map[string]any{
			"document_id":  doc.ID,
			"completed_at": process.CompletedAt,
		})
	}
	qc.emitAudit(ctx, doc.ID, domain.AuditEventMultiSignCompleted, process.InitiatedBy, map[string]any{
		"completed_signers": process.CompletedSigners,
		"required_signers":  process.RequiredSigners,
	})
}

func (qc *QuorumCoordinator) notify(ctx context.Context, templateID, userID string, data map[string]any) bool {
	if qc.Notifier == nil {
		return false
	}
	recipient := userID
	if qc.Signers != nil {
		if signer, err := qc.Signers.Get(ctx, userID); err == nil && signer.Email != "" {
			recipient = signer.Email
		}
	}
	return qc.Notifier.Send(ctx, templateID, recipient, data)
}

func (qc *QuorumCoordinator) emitAudit(ctx context.Context, documentID string, eventType domain.AuditEventType, actorID string, payload map[string]any) {
	if qc.Outbox == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["event_type"] = string(eventType)
	payload["actor_id"] = actorID
	err := qc.Outbox.Emit(ctx, domain.OutboxEvent{
		DocumentID: documentID,
		Kind:       domain.OutboxAudit,
		Payload:    payload,
	})
	if err != nil {
		log.Printf("enqueue %s audit for document %s: %v", eventType, documentID, err)
	}
}

func (qc *QuorumCoordinator) lock(ctx context.Context, documentID string) (func(), error) {
	if qc.Locks == nil {
		return func() {}, nil
	}
	return qc.Locks.Lock(ctx, documentID)
}

func (qc *QuorumCoordinator) now() time.Time {
	if qc.Clock != nil {
		return qc.Clock()
	}
	return time.Now()
}

func remainingSigners(process *domain.MultiSignatureProcess) []string {
	remaining := make([]string, 0, len(process.PendingSigners))
	for _, id := range process.PendingSigners {
		if !process.HasCompletedSigner(id) {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

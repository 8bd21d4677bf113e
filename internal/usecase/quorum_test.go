package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"signet/internal/domain"
)

func TestInitiateMultiSign(t *testing.T) {
	fx := newSignFixture(pendingDoc())

	report, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1",
		[]string{"signer-1", "signer-2", "signer-1", ""}, InitiateOptions{CustomMessage: "please sign"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if report.Invited != 2 {
		t.Fatalf("invited = %d, duplicates and blanks should be dropped", report.Invited)
	}
	if report.Granted != 2 || report.Notified != 2 {
		t.Fatalf("report = %+v", report)
	}

	doc, _ := fx.docs.GetByID(context.Background(), "doc-1")
	process := doc.MultiSign
	if process == nil {
		t.Fatal("process not persisted")
	}
	if process.RequiredSigners != 2 {
		t.Fatalf("required defaults to invited count, got %d", process.RequiredSigners)
	}
	if len(process.CompletedSigners) != 0 || process.ProcessCompleted {
		t.Fatalf("fresh process should be empty: %+v", process)
	}
	if lvl := fx.sharing.grants["doc-1"]["signer-1"]; lvl != AccessSign {
		t.Fatalf("signer-1 grant = %q", lvl)
	}
	if got := fx.notifier.countTemplate(TemplateMultiSignInvite); got != 2 {
		t.Fatalf("invites sent = %d", got)
	}
}

func TestInitiateMultiSignRejections(t *testing.T) {
	fx := newSignFixture(pendingDoc())

	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "signer-1", []string{"signer-2"}, InitiateOptions{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-owner initiate: err = %v", err)
	}
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", nil, InitiateOptions{}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("empty signers: err = %v", err)
	}

	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1"}, InitiateOptions{}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-2"}, InitiateOptions{}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double initiate: err = %v", err)
	}
}

func TestInitiateCountsPartialNotificationFailures(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	fx.notifier.failFor = map[string]bool{"s2@example.com": true}

	report, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1", "signer-2"}, InitiateOptions{})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if report.Invited != 2 || report.Notified != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestQuorumTwoOfThree(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	signers := []string{"signer-1", "signer-2", "signer-3"}
	fx.signers.signers["signer-3"] = domain.Signer{ID: "signer-3", Email: "s3@example.com"}

	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", signers, InitiateOptions{RequiredSigners: 2}); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	signOnce(t, fx, "signer-1")
	status, err := fx.quorum.GetStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.ProcessCompleted || len(status.CompletedSigners) != 1 {
		t.Fatalf("after first signature: %+v", status)
	}
	if len(status.RemainingSigners) != 2 {
		t.Fatalf("remaining = %v", status.RemainingSigners)
	}

	signOnce(t, fx, "signer-2")
	status, err = fx.quorum.GetStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.ProcessCompleted {
		t.Fatal("2 of 3 with threshold 2 should complete")
	}
	if status.CompletedAt == nil {
		t.Fatal("completion not stamped")
	}
	if fx.notifier.countTemplate(TemplateMultiSignCompleted) == 0 {
		t.Fatal("no completion notifications")
	}

	// The third signer can still sign; the process stays completed.
	signOnce(t, fx, "signer-3")
	status, _ = fx.quorum.GetStatus(context.Background(), "doc-1")
	if !status.ProcessCompleted || len(status.CompletedSigners) != 3 {
		t.Fatalf("after late signature: %+v", status)
	}
}

func TestProgressNotificationNamesRemainingSigners(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	signers := []string{"signer-1", "signer-2", "signer-3"}
	fx.signers.signers["signer-3"] = domain.Signer{ID: "signer-3", Email: "s3@example.com"}

	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", signers, InitiateOptions{RequiredSigners: 2}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	signOnce(t, fx, "signer-1")

	var progress []sentNotification
	for _, s := range fx.notifier.sent {
		if s.TemplateID == TemplateMultiSignProgress {
			progress = append(progress, s)
		}
	}
	if len(progress) != 2 {
		t.Fatalf("progress notifications = %d", len(progress))
	}
	data := progress[0].Data
	if data["signed_by"] != "signer-1" {
		t.Fatalf("signed_by = %v", data["signed_by"])
	}
	if data["completed"] != 1 || data["required"] != 2 {
		t.Fatalf("counts = %v of %v", data["completed"], data["required"])
	}
	if data["remaining_signers"] != "signer-2, signer-3" {
		t.Fatalf("remaining_signers = %v", data["remaining_signers"])
	}
}

func TestOwnerSignatureDoesNotCountTowardQuorum(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1"}, InitiateOptions{}); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	signOnce(t, fx, "owner-1")
	status, err := fx.quorum.GetStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(status.CompletedSigners) != 0 || status.ProcessCompleted {
		t.Fatalf("owner signature counted: %+v", status)
	}
}

func TestRecordProgressIdempotent(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1", "signer-2"}, InitiateOptions{}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	signOnce(t, fx, "signer-1")

	progressBefore := fx.notifier.countTemplate(TemplateMultiSignProgress)
	// Replaying progress for an already-counted signer changes nothing.
	if err := fx.quorum.RecordProgress(context.Background(), "doc-1", "signer-1"); err != nil {
		t.Fatalf("replay progress: %v", err)
	}
	if got := fx.notifier.countTemplate(TemplateMultiSignProgress); got != progressBefore {
		t.Fatalf("replay re-fired progress notifications: %d -> %d", progressBefore, got)
	}

	// A signer outside the invited set is a no-op.
	if err := fx.quorum.RecordProgress(context.Background(), "doc-1", "stranger"); err != nil {
		t.Fatalf("stranger progress: %v", err)
	}
	status, _ := fx.quorum.GetStatus(context.Background(), "doc-1")
	if len(status.CompletedSigners) != 1 {
		t.Fatalf("completed = %v", status.CompletedSigners)
	}
}

func TestResyncHealsStaleCache(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1", "signer-2"}, InitiateOptions{}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	signOnce(t, fx, "signer-1")
	signOnce(t, fx, "signer-2")

	// Corrupt the cached fields the way a crash between writes would.
	stale := fx.docs.docs["doc-1"].MultiSign
	stale.CompletedSigners = []string{"ghost"}
	stale.ProcessCompleted = true

	status, err := fx.quorum.GetStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !equalStringSets(status.CompletedSigners, []string{"signer-1", "signer-2"}) {
		t.Fatalf("cache not healed: %v", status.CompletedSigners)
	}
	// processCompleted is monotonic: resync never unsets it.
	if !status.ProcessCompleted {
		t.Fatal("resync unset processCompleted")
	}
}

func TestQuorumUnreachableSurfacedNotCorrected(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1", "signer-2"}, InitiateOptions{RequiredSigners: 5}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	status, err := fx.quorum.GetStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.QuorumUnreachable {
		t.Fatal("unreachable quorum not flagged")
	}
	if status.RequiredSigners != 5 {
		t.Fatalf("threshold auto-corrected to %d", status.RequiredSigners)
	}
}

func TestCancelMultiSign(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1", "signer-2"}, InitiateOptions{}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	signOnce(t, fx, "signer-1")

	if err := fx.quorum.Cancel(context.Background(), "doc-1", "signer-1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-owner cancel: err = %v", err)
	}
	if err := fx.quorum.Cancel(context.Background(), "doc-1", "owner-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	doc, _ := fx.docs.GetByID(context.Background(), "doc-1")
	if doc.MultiSign != nil {
		t.Fatal("process not cleared")
	}
	// Signature records survive cancellation.
	records, _ := fx.sigs.ListByDocument(context.Background(), "doc-1")
	if len(records) != 1 {
		t.Fatalf("records after cancel = %d", len(records))
	}
	if fx.notifier.countTemplate(TemplateMultiSignCancelled) != 2 {
		t.Fatalf("cancel notifications = %d", fx.notifier.countTemplate(TemplateMultiSignCancelled))
	}

	if _, err := fx.quorum.GetStatus(context.Background(), "doc-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("status after cancel: err = %v", err)
	}
	// Cancel-and-reinitiate is the membership change path.
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-2"}, InitiateOptions{}); err != nil {
		t.Fatalf("reinitiate: %v", err)
	}
}

func TestCancelCompletedProcessRejected(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1"}, InitiateOptions{}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	signOnce(t, fx, "signer-1")

	if err := fx.quorum.Cancel(context.Background(), "doc-1", "owner-1"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("cancel completed: err = %v", err)
	}
}

func TestInvalidatedSignatureDropsFromQuorum(t *testing.T) {
	fx := newSignFixture(pendingDoc())
	if _, err := fx.quorum.Initiate(context.Background(), "doc-1", "owner-1", []string{"signer-1", "signer-2"}, InitiateOptions{}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	record := signOnce(t, fx, "signer-1")

	// A later verification invalidates the record; resync must drop the
	// signer, though a completed process would have stayed completed.
	if err := fx.sigs.SetValidity(context.Background(), record.ID, false, &domain.ValidationEntry{Timestamp: time.Now(), Reason: domain.ReasonDocumentModified}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	status, err := fx.quorum.GetStatus(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(status.CompletedSigners) != 0 {
		t.Fatalf("invalid signature still counted: %v", status.CompletedSigners)
	}
}

package usecase

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"signet/internal/domain"
)

type memDocs struct {
	docs map[string]*domain.Document
}

func newMemDocs(docs ...*domain.Document) *memDocs {
	m := &memDocs{docs: make(map[string]*domain.Document)}
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return m
}

func copyProcess(p *domain.MultiSignatureProcess) *domain.MultiSignatureProcess {
	if p == nil {
		return nil
	}
	out := *p
	out.PendingSigners = append([]string(nil), p.PendingSigners...)
	out.CompletedSigners = append([]string(nil), p.CompletedSigners...)
	return &out
}

func (m *memDocs) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, ok := m.docs[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *doc
	out.MultiSign = copyProcess(doc.MultiSign)
	return &out, nil
}

func (m *memDocs) SaveProcess(ctx context.Context, documentID string, process *domain.MultiSignatureProcess) error {
	doc, ok := m.docs[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.MultiSign = copyProcess(process)
	return nil
}

type memSigs struct {
	docs    *memDocs
	records []domain.SignatureRecord
}

func (m *memSigs) GetByID(ctx context.Context, signatureID string) (*domain.SignatureRecord, error) {
	for i := range m.records {
		if m.records[i].ID == signatureID {
			out := m.records[i]
			out.ValidationHistory = append([]domain.ValidationEntry(nil), m.records[i].ValidationHistory...)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSigs) ListByDocument(ctx context.Context, documentID string) ([]domain.SignatureRecord, error) {
	var out []domain.SignatureRecord
	for i := range m.records {
		if m.records[i].DocumentID == documentID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memSigs) CreateAndMarkSigned(ctx context.Context, record domain.SignatureRecord) error {
	m.records = append(m.records, record)
	if m.docs != nil {
		if doc, ok := m.docs.docs[record.DocumentID]; ok {
			doc.SignatureMetadata.IsSigned = true
			signedAt := record.SignedAt
			doc.SignatureMetadata.LastSignedAt = &signedAt
			doc.SignatureMetadata.SignatureCount++
		}
	}
	return nil
}

func (m *memSigs) SetValidity(ctx context.Context, signatureID string, valid bool, entry *domain.ValidationEntry) error {
	for i := range m.records {
		if m.records[i].ID == signatureID {
			m.records[i].Valid = valid
			if entry != nil {
				m.records[i].ValidationHistory = append(m.records[i].ValidationHistory, *entry)
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

type memSigners struct {
	signers map[string]domain.Signer
}

func (m *memSigners) Get(ctx context.Context, userID string) (*domain.Signer, error) {
	signer, ok := m.signers[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &signer, nil
}

type fakeSharing struct {
	grants    map[string]map[string]AccessLevel
	grantErr  error
	grantLog  []string
}

func newFakeSharing() *fakeSharing {
	return &fakeSharing{grants: make(map[string]map[string]AccessLevel)}
}

func (f *fakeSharing) GrantAccess(ctx context.Context, ownerID, documentID, granteeID string, level AccessLevel) error {
	if f.grantErr != nil {
		return f.grantErr
	}
	if f.grants[documentID] == nil {
		f.grants[documentID] = make(map[string]AccessLevel)
	}
	f.grants[documentID][granteeID] = level
	f.grantLog = append(f.grantLog, granteeID)
	return nil
}

func (f *fakeSharing) CanAccess(ctx context.Context, userID, documentID string) (bool, error) {
	_, ok := f.grants[documentID][userID]
	return ok, nil
}

func (f *fakeSharing) CanSign(ctx context.Context, userID, documentID string) (bool, error) {
	return f.grants[documentID][userID] == AccessSign, nil
}

type sentNotification struct {
	TemplateID string
	Recipient  string
	Data       map[string]any
}

type fakeNotifier struct {
	sent    []sentNotification
	failFor map[string]bool
}

func (f *fakeNotifier) Send(ctx context.Context, templateID string, recipient string, data map[string]any) bool {
	if f.failFor[recipient] {
		return false
	}
	f.sent = append(f.sent, sentNotification{TemplateID: templateID, Recipient: recipient, Data: data})
	return true
}

func (f *fakeNotifier) countTemplate(templateID string) int {
	n := 0
	for _, s := range f.sent {
		if s.TemplateID == templateID {
			n++
		}
	}
	return n
}

// fakeKeys is a real in-memory ed25519 key store so signatures produced in
// tests verify (and forgeries fail) with the true algorithm.
type fakeKeys struct {
	keys map[string]ed25519.PrivateKey
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{keys: make(map[string]ed25519.PrivateKey)}
}

func (f *fakeKeys) ensure(userID string) ed25519.PrivateKey {
	if priv, ok := f.keys[userID]; ok {
		return priv
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	f.keys[userID] = priv
	return priv
}

func (f *fakeKeys) GetKeyPair(ctx context.Context, userID string) (*domain.KeyPair, error) {
	priv, ok := f.keys[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.KeyPair{
		UserID:    userID,
		PublicKey: append([]byte(nil), priv.Public().(ed25519.PublicKey)...),
		Alg:       "ed25519",
	}, nil
}

func (f *fakeKeys) GenerateKeyPair(ctx context.Context, userID string) (*domain.KeyPair, error) {
	f.ensure(userID)
	return f.GetKeyPair(ctx, userID)
}

func (f *fakeKeys) Sign(ctx context.Context, userID string, payload []byte) ([]byte, error) {
	return ed25519.Sign(f.ensure(userID), payload), nil
}

func (f *fakeKeys) Verify(ctx context.Context, userID string, payload []byte, sig []byte) (bool, error) {
	priv, ok := f.keys[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(priv.Public().(ed25519.PublicKey), payload, sig), nil
}

type fakeHash struct {
	digests map[string]string
}

func (f *fakeHash) Hash(ctx context.Context, contentPath string) (string, error) {
	digest, ok := f.digests[contentPath]
	if !ok {
		return "", fmt.Errorf("%w: content %s", domain.ErrNotFound, contentPath)
	}
	return digest, nil
}

type fakeLocker struct {
	mu    sync.Mutex
	locks int
}

func (f *fakeLocker) Lock(ctx context.Context, documentID string) (func(), error) {
	f.mu.Lock()
	f.locks++
	return f.mu.Unlock, nil
}

type memAuditRepo struct {
	events []domain.AuditEvent
}

func (m *memAuditRepo) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	m.events = append(m.events, event)
	return event, nil
}

func (m *memAuditRepo) Last(ctx context.Context, documentID string) (*domain.AuditEvent, error) {
	var last *domain.AuditEvent
	for i := range m.events {
		if m.events[i].DocumentID != documentID {
			continue
		}
		if last == nil || m.events[i].Seq > last.Seq {
			last = &m.events[i]
		}
	}
	if last == nil {
		return nil, domain.ErrNotFound
	}
	out := *last
	return &out, nil
}

func (m *memAuditRepo) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, event := range m.events {
		if event.DocumentID == documentID {
			out = append(out, event)
		}
	}
	return out, nil
}

type memOutboxRepo struct {
	events []domain.OutboxEvent
}

func (m *memOutboxRepo) Enqueue(ctx context.Context, events ...domain.OutboxEvent) error {
	m.events = append(m.events, events...)
	return nil
}

func (m *memOutboxRepo) ListPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	for _, event := range m.events {
		if event.Status == domain.OutboxPending {
			out = append(out, event)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memOutboxRepo) MarkDispatched(ctx context.Context, eventID string) error {
	return m.mark(eventID, domain.OutboxDispatched, "")
}

func (m *memOutboxRepo) MarkFailed(ctx context.Context, eventID string, reason string) error {
	return m.mark(eventID, domain.OutboxFailed, reason)
}

func (m *memOutboxRepo) mark(eventID string, status domain.OutboxStatus, reason string) error {
	for i := range m.events {
		if m.events[i].ID == eventID {
			m.events[i].Status = status
			m.events[i].Attempts++
			m.events[i].LastError = reason
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeAnchor struct {
	recorded []string
	declined bool
}

func (f *fakeAnchor) Record(ctx context.Context, documentID, digest, eventType, actor string, metadata map[string]any) bool {
	if f.declined {
		return false
	}
	f.recorded = append(f.recorded, documentID+":"+digest)
	return true
}

type fakeAnchorChecker struct {
	confirmed bool
	err       error
}

func (f *fakeAnchorChecker) Confirm(ctx context.Context, documentID, digest string) (bool, error) {
	return f.confirmed, f.err
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

var errBoom = errors.New("boom")

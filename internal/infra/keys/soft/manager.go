package soft

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

const keyAlg = "ed25519"

type KeyRecord struct {
	UserID     string
	PublicKey  []byte
	PrivateKey []byte
	Alg        string
	CreatedAt  time.Time
}

type KeyRecordStore interface {
	Get(ctx context.Context, userID string) (*KeyRecord, error)
	Create(ctx context.Context, record KeyRecord) error
}

// Manager is the software key store: one ed25519 key pair per user,
// generated lazily on first signing and persisted through the record
// store.
type Manager struct {
	Store KeyRecordStore
	Clock func() time.Time

	mu sync.Mutex
}

func NewManager(store KeyRecordStore) *Manager {
	return &Manager{Store: store}
}

func (m *Manager) GetKeyPair(ctx context.Context, userID string) (*domain.KeyPair, error) {
	record, err := m.Store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toKeyPair(record), nil
}

func (m *Manager) GenerateKeyPair(ctx context.Context, userID string) (*domain.KeyPair, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	// Serialize generation so two concurrent first signings cannot mint
	// two different key pairs for the same user.
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, err := m.Store.Get(ctx, userID); err == nil {
		return toKeyPair(record), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	record := KeyRecord{
		UserID:     userID,
		PublicKey:  append([]byte(nil), pub...),
		PrivateKey: append([]byte(nil), priv...),
		Alg:        keyAlg,
		CreatedAt:  m.now().UTC(),
	}
	if err := m.Store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist key pair: %w", err)
	}
	return toKeyPair(&record), nil
}

func (m *Manager) Sign(ctx context.Context, userID string, payload []byte) ([]byte, error) {
	record, err := m.Store.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		if _, err := m.GenerateKeyPair(ctx, userID); err != nil {
			return nil, err
		}
		record, err = m.Store.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if len(record.PrivateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key length")
	}
	return ed25519.Sign(ed25519.PrivateKey(record.PrivateKey), payload), nil
}

func (m *Manager) Verify(ctx context.Context, userID string, payload []byte, sig []byte) (bool, error) {
	record, err := m.Store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(record.PublicKey) != ed25519.PublicKeySize {
		return false, errors.New("invalid ed25519 public key length")
	}
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(ed25519.PublicKey(record.PublicKey), payload, sig), nil
}

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func toKeyPair(record *KeyRecord) *domain.KeyPair {
	return &domain.KeyPair{
		UserID:    record.UserID,
		PublicKey: append([]byte(nil), record.PublicKey...),
		Alg:       record.Alg,
		CreatedAt: record.CreatedAt,
	}
}

var _ domain.KeyStore = (*Manager)(nil)

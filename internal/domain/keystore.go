package domain

import (
	"context"
	"time"
)

type KeyPair struct {
	UserID    string
	PublicKey []byte
	Alg       string
	CreatedAt time.Time
}

// KeyStore owns per-user asymmetric key material. Sign lazily creates the
// key pair on first use; GetKeyPair returns ErrNotFound when none exists.
type KeyStore interface {
	GetKeyPair(ctx context.Context, userID string) (*KeyPair, error)
	GenerateKeyPair(ctx context.Context, userID string) (*KeyPair, error)
	Sign(ctx context.Context, userID string, payload []byte) ([]byte, error)
	Verify(ctx context.Context, userID string, payload []byte, sig []byte) (bool, error)
}

package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"signet/internal/infra/blob"
	"signet/internal/usecase"
)

const digestPrefix = "sha256:"

// Service computes the content digest used for tamper detection. Same
// bytes, same digest, every time.
type Service struct {
	Blobs blob.Store
}

func NewService(blobs blob.Store) *Service {
	return &Service{Blobs: blobs}
}

func (s *Service) Hash(ctx context.Context, contentPath string) (string, error) {
	data, err := s.Blobs.Get(ctx, contentPath)
	if err != nil {
		return "", err
	}
	return Digest(data), nil
}

// Digest formats the SHA-256 of data as "sha256:<hex>".
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s%s", digestPrefix, hex.EncodeToString(sum[:]))
}

var _ usecase.HashService = (*Service)(nil)

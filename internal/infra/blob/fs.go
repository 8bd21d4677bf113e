package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"signet/internal/domain"
)

// Store fetches a document's stored content bytes by its content path.
type Store interface {
	Get(ctx context.Context, contentPath string) ([]byte, error)
}

// FSStore serves content from a root directory. Paths are cleaned and
// confined to the root.
type FSStore struct {
	Root string
}

func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("blob root is required")
	}
	return &FSStore{Root: root}, nil
}

func (s *FSStore) Get(_ context.Context, contentPath string) ([]byte, error) {
	if contentPath == "" {
		return nil, fmt.Errorf("%w: empty content path", domain.ErrNotFound)
	}
	clean := filepath.Clean("/" + contentPath)
	if strings.Contains(clean, "..") {
		return nil, fmt.Errorf("invalid content path %q", contentPath)
	}
	full := filepath.Join(s.Root, clean)
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: content %s", domain.ErrNotFound, contentPath)
		}
		return nil, fmt.Errorf("read content %s: %w", contentPath, err)
	}
	return data, nil
}

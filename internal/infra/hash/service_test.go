package hash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"signet/internal/domain"
	"signet/internal/infra/blob"
)

func newStore(t *testing.T, files map[string][]byte) *blob.FSStore {
	t.Helper()
	root := t.TempDir()
	for path, data := range files {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	store, err := blob.NewFSStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestHashDeterministic(t *testing.T) {
	store := newStore(t, map[string][]byte{
		"contracts/a.pdf": []byte("same content"),
		"contracts/b.pdf": []byte("same content"),
		"contracts/c.pdf": []byte("other content"),
	})
	svc := NewService(store)

	a, err := svc.Hash(context.Background(), "contracts/a.pdf")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(a, "sha256:") {
		t.Fatalf("digest missing algorithm prefix: %q", a)
	}
	again, err := svc.Hash(context.Background(), "contracts/a.pdf")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a != again {
		t.Fatalf("same path hashed differently: %q vs %q", a, again)
	}
	b, _ := svc.Hash(context.Background(), "contracts/b.pdf")
	if a != b {
		t.Fatalf("same bytes hashed differently: %q vs %q", a, b)
	}
	c, _ := svc.Hash(context.Background(), "contracts/c.pdf")
	if a == c {
		t.Fatal("different bytes produced the same digest")
	}
}

func TestHashMissingContent(t *testing.T) {
	svc := NewService(newStore(t, nil))
	if _, err := svc.Hash(context.Background(), "missing.pdf"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestBlobStoreRejectsTraversal(t *testing.T) {
	store := newStore(t, map[string][]byte{"a.pdf": []byte("x")})
	if _, err := store.Get(context.Background(), "../../etc/passwd"); err == nil {
		t.Fatal("path traversal not rejected")
	}
}

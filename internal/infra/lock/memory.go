package lock

import (
	"context"
	"sync"

	"signet/internal/usecase"
)

type lockEntry struct {
	mu   chan struct{}
	refs int
}

// MemoryLocker is the single-process locker: one mutex per document ID,
// entries reclaimed when the last holder releases.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*lockEntry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, documentID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[documentID]
	if !ok {
		entry = &lockEntry{mu: make(chan struct{}, 1)}
		l.entries[documentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.mu <- struct{}{}:
	case <-ctx.Done():
		l.release(documentID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			<-entry.mu
			l.release(documentID, entry)
		})
	}
	return unlock, nil
}

func (l *MemoryLocker) release(documentID string, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, documentID)
	}
	l.mu.Unlock()
}

var _ usecase.DocumentLocker = (*MemoryLocker)(nil)

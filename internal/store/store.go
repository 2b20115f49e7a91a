package store

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store closed")

// DocumentStore persists an opaque serialized document under a key. The
// coverage service hands it JSON and reads it back verbatim.
type DocumentStore interface {
	// Load returns the stored bytes and false when nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// MemoryStore keeps documents in process memory. Used in tests and for
// throwaway local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	data, ok := m.docs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.docs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

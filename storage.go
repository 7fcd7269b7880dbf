package outfit

import (
	"context"
	"sync"
)

// Storage is the key-value persistence behind a SessionStore.
//
// SetMany and DeleteMany must apply all keys in a single write: after a
// failed call none of the keys may have changed.
type Storage interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// SetMany writes every entry of kv atomically.
	SetMany(ctx context.Context, kv map[string]string) error
	// DeleteMany removes every key atomically. Missing keys are ignored.
	DeleteMany(ctx context.Context, keys ...string) error
}

// MemoryStorage is a Storage that lives only as long as the process.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// SetMany implements Storage.
func (m *MemoryStorage) SetMany(_ context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kv {
		m.data[k] = v
	}
	return nil
}

// DeleteMany implements Storage.
func (m *MemoryStorage) DeleteMany(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

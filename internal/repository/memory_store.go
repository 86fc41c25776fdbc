package repository

import (
	"context"
	"sync"
)

// MemoryStore is a process-lifetime key/value store. It backs the
// tab-scoped session token and serves as the fake in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	vals map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vals: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	return nil
}

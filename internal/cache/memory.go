package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory cache store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// NewMemory creates a new in-memory cache store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key.String()]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key.String())
		m.mu.Unlock()
		return nil, false, nil
	}

	// Copy to prevent external mutations
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key.String()] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, keys ...Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		canonical := key.String()
		delete(m.entries, canonical)

		// Drop nested entries as well
		prefix := canonical + "/"
		for stored := range m.entries {
			if strings.HasPrefix(stored, prefix) {
				delete(m.entries, stored)
			}
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries. Used by diagnostics.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

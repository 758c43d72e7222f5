package staging

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryBackend keeps drafts in process memory. Drafts are lost on restart.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryBackend) set(key string, payload []byte, ttl time.Duration) {
	m.entries[key] = memoryEntry{payload: payload, expiresAt: m.now().Add(ttl)}
}

// WithClock overrides the time source, for tests
func (m *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	m.now = now
	return m
}

// live returns the entry at key, dropping it if expired. Caller holds mu.
func (m *MemoryBackend) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryBackend) StageDraft(_ context.Context, key, generationKey, draftID string, payload []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, replaced := m.live(key)
	m.set(key, payload, ttl)
	m.set(generationKey, []byte(draftID), ttl)
	return replaced, nil
}

func (m *MemoryBackend) TakeDraft(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	delete(m.entries, key)
	return e.payload, nil
}

func (m *MemoryBackend) RestoreDraft(_ context.Context, key, generationKey, draftID string, payload []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen, ok := m.live(generationKey)
	if !ok || string(gen.payload) != draftID {
		return false, nil
	}
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.set(key, payload, ttl)
	return true, nil
}

func (m *MemoryBackend) PeekDraft(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	return e.payload, nil
}

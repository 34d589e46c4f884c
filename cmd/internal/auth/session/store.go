package session

import (
	"context"
	"sync"
	"time"
)

// RevocationStore records revoked token ids until their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	// Prune drops entries whose expiry is at or before now and reports how many.
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// MemoryStore is a process-local RevocationStore.
// Revocations are lost on restart and are not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time)}
}

func (m *MemoryStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.revoked[jti]; ok && prev.After(expiresAt) {
		return nil
	}
	m.revoked[jti] = expiresAt
	return nil
}

func (m *MemoryStore) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(now) {
		delete(m.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, jti)
			n++
		}
	}
	return n, nil
}

// Len reports the number of tracked revocations.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.revoked)
}

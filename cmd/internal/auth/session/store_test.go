package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_RevokeExpireAndPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	st := NewMemoryStore()

	if err := st.Revoke(ctx, "a", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke a: %v", err)
	}
	if err := st.Revoke(ctx, "b", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke b: %v", err)
	}
	// A shorter expiry must not shorten an existing revocation.
	if err := st.Revoke(ctx, "b", now.Add(time.Second)); err != nil {
		t.Fatalf("Revoke b again: %v", err)
	}

	if ok, _ := st.IsRevoked(ctx, "a", now); !ok {
		t.Fatalf("a should be revoked")
	}
	if ok, _ := st.IsRevoked(ctx, "missing", now); ok {
		t.Fatalf("unknown jti reported revoked")
	}

	later := now.Add(2 * time.Minute)
	n, err := st.Prune(ctx, later)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned=%d want 1", n)
	}
	if ok, _ := st.IsRevoked(ctx, "b", later); !ok {
		t.Fatalf("b should still be revoked")
	}
	if st.Len() != 1 {
		t.Fatalf("len=%d want 1", st.Len())
	}
}

func TestMemoryStore_HonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := NewMemoryStore()
	if err := st.Revoke(ctx, "a", time.Now().Add(time.Hour)); err == nil {
		t.Fatalf("expected context error")
	}
}

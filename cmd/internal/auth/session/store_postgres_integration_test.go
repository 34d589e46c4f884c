package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests run when STUDYROOMS_TEST_DATABASE_URL is set.

func TestPostgresStore_RevokeLifecycle(t *testing.T) {
	dbURL := os.Getenv("STUDYROOMS_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("STUDYROOMS_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}

	st, err := NewPostgresStore(pool, WithSchema("studyrooms_test"))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	now := time.Now().UTC()
	jti, err := newTokenID(now)
	if err != nil {
		t.Fatalf("newTokenID: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM `+st.table()+` WHERE jti = $1`, jti)
	})

	if err := st.Revoke(ctx, jti, now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ok, err := st.IsRevoked(ctx, jti, now)
	if err != nil || !ok {
		t.Fatalf("IsRevoked: ok=%v err=%v", ok, err)
	}
	ok, err = st.IsRevoked(ctx, jti, now.Add(2*time.Minute))
	if err != nil || ok {
		t.Fatalf("IsRevoked after expiry: ok=%v err=%v", ok, err)
	}
	n, err := st.Prune(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n < 1 {
		t.Fatalf("pruned=%d want >=1", n)
	}
}

func TestWithSchema_RejectsInvalidIdentifier(t *testing.T) {
	t.Parallel()

	st := &PostgresStore{}
	if err := WithSchema("bad-schema;drop")(st); err == nil {
		t.Fatalf("expected invalid identifier error")
	}
	if err := WithSchema("  ")(st); err == nil {
		t.Fatalf("expected empty schema error")
	}
	if err := WithSchema("ok_schema")(st); err != nil || st.schema != "ok_schema" {
		t.Fatalf("valid schema rejected: %v", err)
	}
}

package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("test-cookie-key-0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, store RevocationStore) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.Key = testKey
	cfg.Leeway = 0
	svc, err := NewService(cfg, store, WithClock(clock.now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, clock
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewService(Config{TTL: time.Hour}, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("empty key: err=%v want ErrConfig", err)
	}
	if _, err := NewService(Config{Key: testKey}, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("zero ttl: err=%v want ErrConfig", err)
	}
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t, nil)
	tok, err := svc.Issue(Identity{Email: "ada@example.com", ID: 42})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := clock.t.Add(time.Hour); !tok.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt=%s want %s", tok.ExpiresAt, want)
	}
	if tok.Claims.TokenID() == "" {
		t.Fatalf("expected jti")
	}

	clock.advance(time.Minute)
	got, err := svc.Verify(context.Background(), tok.Value)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got == nil {
		t.Fatalf("Verify returned no session for a fresh token")
	}
	if got.Email != "ada@example.com" || got.UserID != 42 {
		t.Fatalf("payload mismatch: %+v", got)
	}
	if !got.CookieExpires.Equal(tok.ExpiresAt) {
		t.Fatalf("cookieExpires=%s want %s", got.CookieExpires, tok.ExpiresAt)
	}
	if got.TokenID() != tok.Claims.TokenID() {
		t.Fatalf("jti mismatch")
	}
}

func TestIssue_RequiresEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	if _, err := svc.Issue(Identity{Email: "  ", ID: 1}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("err=%v want ErrInvalidIdentity", err)
	}
}

func TestVerify_NoSessionCases(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t, nil)
	tok, err := svc.Issue(Identity{Email: "ada@example.com", ID: 42})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tok.Claims).SignedString([]byte("another-key"))
	if err != nil {
		t.Fatalf("sign other key: %v", err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, tok.Claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, tok.Claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	parts := strings.Split(tok.Value, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	foreignIss := *tok.Claims
	foreignIss.Issuer = "someone-else"
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &foreignIss).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign foreign iss: %v", err)
	}

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"wrong key":      otherKey,
		"wrong alg":      hs512,
		"alg none":       unsigned,
		"tampered":       tampered,
		"foreign issuer": foreign,
		"oversized":      strings.Repeat("a", maxTokenBytes+1),
	}
	for name, raw := range cases {
		got, err := svc.Verify(context.Background(), raw)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if got != nil {
			t.Fatalf("%s: expected no session, got %+v", name, got)
		}
	}

	clock.advance(time.Hour + time.Second)
	got, err := svc.Verify(context.Background(), tok.Value)
	if err != nil || got != nil {
		t.Fatalf("expired: got=%+v err=%v want nil,nil", got, err)
	}
}

func TestVerify_LegacyTokenWithoutExp(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t, nil)

	expires := clock.t.Add(10 * time.Minute)
	legacy := jwt.MapClaims{
		"email":         "legacy@example.com",
		"cookieExpires": expires.Format("2006-01-02T15:04:05.000Z07:00"),
		"id":            7,
		"iat":           clock.t.Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, legacy).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign legacy: %v", err)
	}

	got, err := svc.Verify(context.Background(), raw)
	if err != nil || got == nil {
		t.Fatalf("legacy token: got=%+v err=%v", got, err)
	}
	if got.UserID != 7 || got.TokenID() != "" {
		t.Fatalf("legacy claims: %+v", got)
	}
	if !svc.NeedsRefresh(got) {
		t.Fatalf("legacy token without jti should be refreshed")
	}
	upgraded, err := svc.Refresh(got)
	if err != nil || upgraded.Claims.TokenID() == "" {
		t.Fatalf("refresh legacy: tok=%+v err=%v", upgraded, err)
	}

	clock.advance(11 * time.Minute)
	if got, _ := svc.Verify(context.Background(), raw); got != nil {
		t.Fatalf("legacy token past cookieExpires must be rejected")
	}
}

func TestRefresh_ExtendsFromNowAndKeepsJTI(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t, nil)
	tok, err := svc.Issue(Identity{Email: "ada@example.com", ID: 42})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.advance(20 * time.Minute)
	if svc.NeedsRefresh(tok.Claims) {
		t.Fatalf("40m left of 1h should not need refresh")
	}
	clock.advance(20 * time.Minute)
	if !svc.NeedsRefresh(tok.Claims) {
		t.Fatalf("20m left of 1h should need refresh")
	}

	next, err := svc.Refresh(tok.Claims)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if want := clock.t.Add(time.Hour); !next.ExpiresAt.Equal(want) {
		t.Fatalf("refreshed exp=%s want %s", next.ExpiresAt, want)
	}
	if next.Claims.TokenID() != tok.Claims.TokenID() {
		t.Fatalf("refresh must keep jti")
	}

	clock.advance(30 * time.Minute)
	got, err := svc.Verify(context.Background(), next.Value)
	if err != nil || got == nil {
		t.Fatalf("refreshed token should verify: got=%+v err=%v", got, err)
	}
}

func TestRevoke_BlocksToken(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc, _ := newTestService(t, store)
	tok, err := svc.Issue(Identity{Email: "ada@example.com", ID: 42})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(context.Background(), tok.Claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("store len=%d want 1", store.Len())
	}
	got, err := svc.Verify(context.Background(), tok.Value)
	if err != nil || got != nil {
		t.Fatalf("revoked: got=%+v err=%v want nil,nil", got, err)
	}
}

func TestRevoke_CoversRefreshedCopies(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t, NewMemoryStore())
	older, err := svc.Issue(Identity{Email: "ada@example.com", ID: 42})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.advance(31 * time.Minute)
	newer, err := svc.Refresh(older.Claims)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if newer.Claims.TokenID() != older.Claims.TokenID() {
		t.Fatalf("refresh changed jti")
	}

	// Log out with the older cookie, then let it expire.
	clock.advance(9 * time.Minute)
	if err := svc.Revoke(context.Background(), older.Claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	clock.advance(21 * time.Minute)
	if !clock.t.After(older.ExpiresAt) || !clock.t.Before(newer.ExpiresAt) {
		t.Fatalf("clock=%v should sit between %v and %v", clock.t, older.ExpiresAt, newer.ExpiresAt)
	}

	got, err := svc.Verify(context.Background(), newer.Value)
	if err != nil || got != nil {
		t.Fatalf("refreshed copy of a revoked jti: got=%+v err=%v want nil,nil", got, err)
	}
}

type failingStore struct{ MemoryStore }

func (*failingStore) IsRevoked(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("db down")
}

func TestVerify_RevocationErrorIsReported(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &failingStore{})
	tok, err := svc.Issue(Identity{Email: "ada@example.com", ID: 42})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := svc.Verify(context.Background(), tok.Value)
	if got != nil {
		t.Fatalf("expected no claims on store failure")
	}
	if !errors.Is(err, ErrRevocationCheck) {
		t.Fatalf("err=%v want ErrRevocationCheck", err)
	}
}

package token

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseCookieKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		min     int
		wantErr error
	}{
		{name: "missing", raw: "", min: 0, wantErr: ErrKeyMissing},
		{name: "blank", raw: "   ", min: 0, wantErr: ErrKeyMissing},
		{name: "too short", raw: "short", min: StrongKeyBytes, wantErr: ErrKeyTooShort},
		{name: "ok no policy", raw: "short", min: 0},
		{name: "ok strong", raw: "0123456789abcdef0123456789abcdef", min: StrongKeyBytes},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCookieKey(tc.raw, tc.min)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err=%v want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if string(got) != tc.raw {
				t.Fatalf("key=%q want %q (must not be trimmed)", got, tc.raw)
			}
		})
	}
}

func TestCookieKeyFromEnv(t *testing.T) {
	t.Setenv(CookieKeyEnv, " padded-key ")
	got, err := CookieKeyFromEnv(0)
	if err != nil {
		t.Fatalf("CookieKeyFromEnv: %v", err)
	}
	if string(got) != " padded-key " {
		t.Fatalf("key=%q", got)
	}
}

func TestDeriveKey_DeterministicAndPurposeBound(t *testing.T) {
	t.Parallel()

	master := []byte("master-secret")
	a1, err := DeriveKey(master, "csrf", 32)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	a2, _ := DeriveKey(master, "csrf", 32)
	b, _ := DeriveKey(master, "other", 32)

	if len(a1) != 32 {
		t.Fatalf("len=%d want 32", len(a1))
	}
	if !bytes.Equal(a1, a2) {
		t.Fatalf("derivation not deterministic")
	}
	if bytes.Equal(a1, b) {
		t.Fatalf("different info labels produced the same key")
	}
	if bytes.Equal(a1, master) {
		t.Fatalf("derived key equals master")
	}
	if _, err := DeriveKey(nil, "csrf", 32); !errors.Is(err, ErrKeyMissing) {
		t.Fatalf("err=%v want ErrKeyMissing", err)
	}
}

func TestEqualHex(t *testing.T) {
	t.Parallel()

	mac := HashHMACSHA256Hex("jti", []byte("k"))
	if !EqualHex(mac, HashHMACSHA256Hex("jti", []byte("k"))) {
		t.Fatalf("expected equal")
	}
	if EqualHex(mac, HashHMACSHA256Hex("jti2", []byte("k"))) {
		t.Fatalf("expected mismatch")
	}
	if EqualHex("", "") {
		t.Fatalf("empty strings must not compare equal")
	}
	if len(HashSHA256Hex("x")) != 64 {
		t.Fatalf("sha256 hex must be 64 chars")
	}
}

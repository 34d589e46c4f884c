package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// CookieKeyEnv is the env var name for the session signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	CookieKeyEnv = "COOKIE_ENCRYPT_KEY"

	// StrongKeyBytes is the minimum key size enforced in hardened deployments.
	StrongKeyBytes = 32
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// EqualHex compares two MAC strings in constant time.
func EqualHex(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return hmac.Equal([]byte(a), []byte(b))
}

// CookieKeyFromEnv returns COOKIE_ENCRYPT_KEY as raw bytes.
// If the var is missing/blank -> ErrKeyMissing.
// If shorter than minBytes -> ErrKeyTooShort.
func CookieKeyFromEnv(minBytes int) ([]byte, error) {
	return ParseCookieKey(os.Getenv(CookieKeyEnv), minBytes)
}

// ParseCookieKey applies the same policy as CookieKeyFromEnv to an explicit value.
func ParseCookieKey(raw string, minBytes int) ([]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrKeyTooShort
	}
	return b, nil
}

// DeriveKey expands a purpose-bound subkey of size n from master using HKDF-SHA256.
// The info label separates purposes; never pass user input as info.
func DeriveKey(master []byte, info string, n int) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrKeyMissing
	}
	if n <= 0 {
		n = sha256.Size
	}
	out := make([]byte, n)
	r := hkdf.New(sha256.New, master, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("derive %q: %w", info, err)
	}
	return out, nil
}

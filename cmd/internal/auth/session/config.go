package session

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"studyrooms/cmd/security/token"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// Key signs and verifies the cookie (HS256). Raw bytes of COOKIE_ENCRYPT_KEY.
	Key []byte

	// TTL is the session lifetime applied on issue and on every refresh.
	TTL time.Duration

	// Leeway tolerates clock skew when checking exp/iat.
	Leeway time.Duration

	// Issuer is written to "iss". Tokens without iss are accepted for
	// compatibility with cookies minted before the claim existed.
	Issuer string
}

// DefaultConfig returns defaults suitable for development. Key is left empty.
func DefaultConfig() Config {
	return Config{
		TTL:    time.Hour,
		Leeway: 5 * time.Second,
		Issuer: "studyrooms",
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - COOKIE_ENCRYPT_KEY
//
// Optional:
//   - SESSION_TIME: integer milliseconds, or a Go duration string ("30m")
//   - STUDYROOMS_SESSION_LEEWAY
//   - STUDYROOMS_SESSION_ISSUER
//   - STUDYROOMS_REQUIRE_STRONG_KEY: enforce a key of at least 32 bytes
//
// Errors wrap ErrConfig.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	minKey := 0
	if v := strings.TrimSpace(os.Getenv("STUDYROOMS_REQUIRE_STRONG_KEY")); v != "" {
		strong, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: STUDYROOMS_REQUIRE_STRONG_KEY: %v", ErrConfig, err)
		}
		if strong {
			minKey = token.StrongKeyBytes
		}
	}

	key, err := token.CookieKeyFromEnv(minKey)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrConfig, token.CookieKeyEnv, err)
	}
	cfg.Key = key

	if v := strings.TrimSpace(os.Getenv("SESSION_TIME")); v != "" {
		d, err := ParseSessionTime(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: SESSION_TIME: %v", ErrConfig, err)
		}
		cfg.TTL = d
	}

	if v := strings.TrimSpace(os.Getenv("STUDYROOMS_SESSION_LEEWAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%w: STUDYROOMS_SESSION_LEEWAY", ErrConfig)
		}
		cfg.Leeway = d
	}

	if v := strings.TrimSpace(os.Getenv("STUDYROOMS_SESSION_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	return cfg, nil
}

// ParseSessionTime parses SESSION_TIME. A bare integer is milliseconds.
func ParseSessionTime(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("must be > 0, got %d", ms)
		}
		if ms > math.MaxInt64/int64(time.Millisecond) {
			return 0, fmt.Errorf("too large: %d ms", ms)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be > 0, got %s", d)
	}
	return d, nil
}

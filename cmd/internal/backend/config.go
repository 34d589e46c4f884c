package backend

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid backend config")

// Config controls the backend client.
type Config struct {
	// BaseURL is the origin the backend is mounted under, e.g. "https://app.example/".
	BaseURL string
	// Prefix is joined after BaseURL; endpoints hang off it.
	Prefix string

	Timeout          time.Duration
	MaxResponseBytes int64

	BreakerName        string
	BreakerTimeout     time.Duration
	BreakerInterval    time.Duration
	BreakerMinRequests uint32
	BreakerFailRatio   float64
}

// DefaultConfig returns defaults; BaseURL must still be provided.
func DefaultConfig() Config {
	return Config{
		Prefix:             "api/py/",
		Timeout:            5 * time.Second,
		MaxResponseBytes:   16 << 20,
		BreakerName:        "backend-api",
		BreakerTimeout:     30 * time.Second,
		BreakerInterval:    time.Minute,
		BreakerMinRequests: 10,
		BreakerFailRatio:   0.6,
	}
}

// LoadConfigFromEnv loads client configuration.
//
// Base URL: STUDYROOMS_BACKEND_URL, falling back to NEXT_PUBLIC_BASE_URL.
// Optional: STUDYROOMS_BACKEND_PREFIX, STUDYROOMS_BACKEND_TIMEOUT,
// STUDYROOMS_BACKEND_BREAKER_TIMEOUT, STUDYROOMS_BACKEND_BREAKER_MIN_REQUESTS,
// STUDYROOMS_BACKEND_BREAKER_FAILURE_RATIO.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.BaseURL = strings.TrimSpace(os.Getenv("STUDYROOMS_BACKEND_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimSpace(os.Getenv("NEXT_PUBLIC_BASE_URL"))
	}
	if v, ok := os.LookupEnv("STUDYROOMS_BACKEND_PREFIX"); ok {
		cfg.Prefix = strings.TrimSpace(v)
	}

	var err error
	if cfg.Timeout, err = envDuration("STUDYROOMS_BACKEND_TIMEOUT", cfg.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.BreakerTimeout, err = envDuration("STUDYROOMS_BACKEND_BREAKER_TIMEOUT", cfg.BreakerTimeout); err != nil {
		return Config{}, err
	}
	if v := strings.TrimSpace(os.Getenv("STUDYROOMS_BACKEND_BREAKER_MIN_REQUESTS")); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return Config{}, fmt.Errorf("%w: STUDYROOMS_BACKEND_BREAKER_MIN_REQUESTS=%q", ErrConfig, v)
		}
		cfg.BreakerMinRequests = uint32(n)
	}
	if v := strings.TrimSpace(os.Getenv("STUDYROOMS_BACKEND_BREAKER_FAILURE_RATIO")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return Config{}, fmt.Errorf("%w: STUDYROOMS_BACKEND_BREAKER_FAILURE_RATIO=%q", ErrConfig, v)
		}
		cfg.BreakerFailRatio = f
	}

	return cfg, cfg.Validate()
}

// Validate checks that the config can build a client.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: backend base url is required (NEXT_PUBLIC_BASE_URL)", ErrConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid backend base url %q", ErrConfig, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0", ErrConfig)
	}
	return nil
}

// endpointURL joins base, prefix and endpoint with exactly one slash between parts.
func (c Config) endpointURL(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/") + "/"
	prefix := strings.Trim(c.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return base + prefix + endpoint
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrConfig, key, v)
	}
	return d, nil
}

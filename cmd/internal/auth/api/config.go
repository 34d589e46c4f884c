package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the auth web API: cookie attributes, CSRF names, rate limits
// and the gated pages.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	SessionCookieName string
	CSRFCookieName    string
	CSRFHeaderName    string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	// LegacySetCookie enables POST /api/set-cookie, which mints a session
	// for an email without a password.
	LegacySetCookie bool

	RateRequests int
	RateWindow   time.Duration

	LoginPath string
	StaticDir string
}

// DefaultConfig returns the cookie contract of the web client.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      1 << 20,
		SessionCookieName: "session",
		CSRFCookieName:    "csrf",
		CSRFHeaderName:    "X-CSRF-Token",
		CookiePath:        "/",
		CookieSameSite:    http.SameSiteLaxMode,
		RateRequests:      10,
		RateWindow:        time.Minute,
		LoginPath:         "/login",
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:        envBool("STUDYROOMS_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("STUDYROOMS_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		SessionCookieName: envString("STUDYROOMS_SESSION_COOKIE_NAME", def.SessionCookieName),
		CSRFCookieName:    envString("STUDYROOMS_CSRF_COOKIE_NAME", def.CSRFCookieName),
		CSRFHeaderName:    envString("STUDYROOMS_CSRF_HEADER_NAME", def.CSRFHeaderName),
		CookiePath:        envString("STUDYROOMS_COOKIE_PATH", def.CookiePath),
		CookieDomain:      envString("STUDYROOMS_COOKIE_DOMAIN", ""),
		CookieSecure:      envBool("STUDYROOMS_COOKIE_SECURE", false),
		CookieSameSite:    parseSameSite(envString("STUDYROOMS_COOKIE_SAMESITE", "lax")),
		LegacySetCookie:   envBool("STUDYROOMS_LEGACY_SET_COOKIE", false),
		RateRequests:      envInt("STUDYROOMS_AUTH_RATE_REQUESTS", def.RateRequests),
		RateWindow:        envDuration("STUDYROOMS_AUTH_RATE_WINDOW", def.RateWindow),
		LoginPath:         envString("STUDYROOMS_LOGIN_PATH", def.LoginPath),
		StaticDir:         envString("STUDYROOMS_STATIC_DIR", ""),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	if cfg.CSRFCookieName == cfg.SessionCookieName {
		cfg.CSRFCookieName = def.CSRFCookieName
		if cfg.CSRFCookieName == cfg.SessionCookieName {
			cfg.CSRFCookieName = cfg.SessionCookieName + "_csrf"
		}
	}
	if !strings.HasPrefix(cfg.LoginPath, "/") {
		cfg.LoginPath = "/" + cfg.LoginPath
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

package app

import (
	"errors"
	"net/http"

	authapi "studyrooms/cmd/internal/auth/api"
)

// ValidateSecurityConfig enforces the cookie policy at startup.
//
// Fail-fast: with STUDYROOMS_REQUIRE_SECURE_COOKIES=true the server refuses
// to start rather than hand out cookies that could leak over plain HTTP.
func ValidateSecurityConfig(cfg Config, auth authapi.Config) error {
	if !cfg.RequireSecureCookies {
		return nil
	}
	if !auth.CookieSecure {
		return errors.New("security policy: STUDYROOMS_REQUIRE_SECURE_COOKIES=true but STUDYROOMS_COOKIE_SECURE is false")
	}
	if auth.LegacySetCookie {
		return errors.New("security policy: STUDYROOMS_REQUIRE_SECURE_COOKIES=true forbids STUDYROOMS_LEGACY_SET_COOKIE")
	}
	if auth.CookieSameSite == http.SameSiteNoneMode && len(cfg.CORSAllowedOrigins) == 0 {
		return errors.New("security policy: SameSite=None without a CORS allowlist")
	}
	return nil
}

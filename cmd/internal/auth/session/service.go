package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"studyrooms/cmd/internal/metrics"
	"studyrooms/cmd/security/token"
)

// maxTokenBytes bounds the cookie value we are willing to parse.
const maxTokenBytes = 4096

// Service issues, verifies, refreshes and revokes session tokens.
type Service struct {
	cfg    Config
	store  RevocationStore
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service. A nil store falls back to an in-memory one.
func NewService(cfg Config, store RevocationStore, opts ...Option) (*Service, error) {
	if len(cfg.Key) == 0 {
		return nil, fmt.Errorf("%w: empty signing key", ErrConfig)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be > 0", ErrConfig)
	}
	if store == nil {
		store = NewMemoryStore()
	}

	s := &Service{cfg: cfg, store: store, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration { return s.cfg.TTL }

// Store exposes the revocation store (janitor wiring).
func (s *Service) Store() RevocationStore { return s.store }

// DeriveKey derives a 32-byte subkey of the signing key for info.
func (s *Service) DeriveKey(info string) ([]byte, error) {
	return token.DeriveKey(s.cfg.Key, info, 32)
}

// Issue signs a fresh session for id with a new jti.
func (s *Service) Issue(id Identity) (Token, error) {
	if strings.TrimSpace(id.Email) == "" {
		return Token{}, ErrInvalidIdentity
	}
	now := s.now().UTC()
	jti, err := newTokenID(now)
	if err != nil {
		return Token{}, fmt.Errorf("session id: %w", err)
	}
	c := &Claims{Email: id.Email, UserID: id.ID}
	c.RegisteredClaims.ID = jti
	tok, err := s.sign(c, now)
	if err == nil {
		metrics.SessionsIssued.WithLabelValues("login").Inc()
	}
	return tok, err
}

// Refresh re-signs c with expiry now+TTL, keeping identity and jti.
func (s *Service) Refresh(c *Claims) (Token, error) {
	if c == nil {
		return Token{}, ErrInvalidIdentity
	}
	now := s.now().UTC()
	next := &Claims{Email: c.Email, UserID: c.UserID}
	next.RegisteredClaims.ID = c.TokenID()
	if next.RegisteredClaims.ID == "" {
		jti, err := newTokenID(now)
		if err != nil {
			return Token{}, fmt.Errorf("session id: %w", err)
		}
		next.RegisteredClaims.ID = jti
	}
	tok, err := s.sign(next, now)
	if err == nil {
		metrics.SessionsIssued.WithLabelValues("refresh").Inc()
	}
	return tok, err
}

// NeedsRefresh reports whether less than half of the lifetime remains.
func (s *Service) NeedsRefresh(c *Claims) bool {
	if c == nil {
		return false
	}
	if c.TokenID() == "" {
		return true
	}
	return c.Expiry().Sub(s.now()) < s.cfg.TTL/2
}

func (s *Service) sign(c *Claims, now time.Time) (Token, error) {
	exp := now.Add(s.cfg.TTL)
	c.CookieExpires = exp.Truncate(time.Millisecond)
	c.Issuer = s.cfg.Issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Key)
	if err != nil {
		return Token{}, fmt.Errorf("sign session: %w", err)
	}
	return Token{Value: signed, ExpiresAt: c.ExpiresAt.Time, Claims: c}, nil
}

// Verify decodes raw into claims.
//
// Invalid, expired or revoked tokens return (nil, nil). A non-nil error means the
// revocation store could not be consulted; treat that as no session too.
func (s *Service) Verify(ctx context.Context, raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxTokenBytes {
		return nil, nil
	}

	claims := &Claims{}
	tok, err := s.parser.ParseWithClaims(raw, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			metrics.SessionVerifications.WithLabelValues("expired").Inc()
		} else {
			metrics.SessionVerifications.WithLabelValues("invalid").Inc()
		}
		return nil, nil
	}
	if !tok.Valid || claims.Email == "" {
		metrics.SessionVerifications.WithLabelValues("invalid").Inc()
		return nil, nil
	}
	if claims.Issuer != "" && claims.Issuer != s.cfg.Issuer {
		metrics.SessionVerifications.WithLabelValues("invalid").Inc()
		return nil, nil
	}

	now := s.now()
	exp := claims.Expiry()
	if exp.IsZero() || !now.Before(exp.Add(s.cfg.Leeway)) {
		metrics.SessionVerifications.WithLabelValues("expired").Inc()
		return nil, nil
	}

	if jti := claims.TokenID(); jti != "" {
		revoked, err := s.store.IsRevoked(ctx, jti, now)
		if err != nil {
			metrics.SessionVerifications.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrRevocationCheck, err)
		}
		if revoked {
			metrics.SessionVerifications.WithLabelValues("revoked").Inc()
			return nil, nil
		}
	}

	metrics.SessionVerifications.WithLabelValues("valid").Inc()
	return claims, nil
}

// Revoke blocks c's jti until the latest expiry any token carrying it could
// have. Refresh keeps the jti, so a copy refreshed just now lives until
// now+TTL even when c itself expires sooner. Tokens without a jti cannot be
// revoked server-side; clearing the cookie is all that can be done for them.
func (s *Service) Revoke(ctx context.Context, c *Claims) error {
	jti := c.TokenID()
	if jti == "" {
		return nil
	}
	until := s.now().Add(s.cfg.TTL)
	if exp := c.Expiry(); exp.After(until) {
		until = exp
	}
	return s.store.Revoke(ctx, jti, until.Add(s.cfg.Leeway))
}

func (s *Service) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.cfg.Key, nil
}

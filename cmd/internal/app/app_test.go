package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	authapi "studyrooms/cmd/internal/auth/api"
	"studyrooms/cmd/internal/backend"
	"studyrooms/cmd/internal/backend/backendtest"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://rooms.example.com", want: "wss://rooms.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func newTestApp(t *testing.T) (*App, *backendtest.Fake) {
	t.Helper()

	fake := backendtest.New()
	t.Cleanup(fake.Close)

	t.Setenv("COOKIE_ENCRYPT_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("NEXT_PUBLIC_BASE_URL", fake.URL())
	t.Setenv("STUDYROOMS_BACKEND_URL", "")
	t.Setenv("STUDYROOMS_STATIC_DIR", "")

	cfg := LoadConfig()
	cfg.DatabaseURL = ""
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.hub.Close)
	return a, fake
}

func TestApp_ServiceEndpoints(t *testing.T) {
	a, _ := newTestApp(t)
	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	cases := []struct {
		path string
		want int
		body string
	}{
		{path: "/healthz", want: http.StatusOK, body: "ok"},
		{path: "/readyz", want: http.StatusOK, body: "ready"},
		{path: "/metrics", want: http.StatusOK, body: "studyrooms_"},
	}
	for _, tc := range cases {
		resp, err := http.Get(ts.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != tc.want || !strings.Contains(string(b), tc.body) {
			t.Fatalf("GET %s: status=%d body=%q", tc.path, resp.StatusCode, b)
		}
		if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
			t.Fatalf("GET %s: missing security headers", tc.path)
		}
	}
}

func TestApp_GateAndLogin(t *testing.T) {
	a, fake := newTestApp(t)
	fake.AddUser("ada@example.com", "password123", "Ada", "Lovelace")

	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	jar, _ := cookiejar.New(nil)
	c := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := c.Get(ts.URL + "/rooms")
	if err != nil {
		t.Fatalf("GET /rooms: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("ungated /rooms: status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = c.Post(ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"password123"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d", resp.StatusCode)
	}

	resp, err = c.Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET /api/rooms: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rooms after login: status=%d", resp.StatusCode)
	}

	resp, err = c.Get(ts.URL + "/rooms")
	if err != nil {
		t.Fatalf("GET /rooms: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gated /rooms with session: status=%d", resp.StatusCode)
	}
}

func TestApp_RequiresBackendURL(t *testing.T) {
	t.Setenv("COOKIE_ENCRYPT_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("NEXT_PUBLIC_BASE_URL", "")
	t.Setenv("STUDYROOMS_BACKEND_URL", "")

	if _, err := New(context.Background(), LoadConfig(), slog.New(slog.NewTextHandler(io.Discard, nil))); !errors.Is(err, backend.ErrConfig) {
		t.Fatalf("err=%v want backend.ErrConfig", err)
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	secure := authapi.DefaultConfig()
	secure.CookieSecure = true

	legacy := secure
	legacy.LegacySetCookie = true

	cases := []struct {
		name    string
		cfg     Config
		auth    authapi.Config
		wantErr bool
	}{
		{name: "policy off", cfg: Config{}, auth: authapi.DefaultConfig()},
		{name: "secure cookies", cfg: Config{RequireSecureCookies: true}, auth: secure},
		{name: "insecure cookies", cfg: Config{RequireSecureCookies: true}, auth: authapi.DefaultConfig(), wantErr: true},
		{name: "legacy set-cookie", cfg: Config{RequireSecureCookies: true}, auth: legacy, wantErr: true},
	}
	for _, tc := range cases {
		err := ValidateSecurityConfig(tc.cfg, tc.auth)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err=%v wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

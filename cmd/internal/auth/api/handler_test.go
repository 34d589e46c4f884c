package authapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"studyrooms/cmd/internal/auth/session"
	"studyrooms/cmd/internal/backend"
	"studyrooms/cmd/internal/backend/backendtest"
)

const testKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	h        *Handler
	fake     *backendtest.Fake
	sessions *session.Service
	store    *session.MemoryStore
	router   http.Handler
	now      time.Time
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	env := &testEnv{fake: backendtest.New(), store: session.NewMemoryStore()}
	t.Cleanup(env.fake.Close)
	env.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	bcfg := backend.DefaultConfig()
	bcfg.BaseURL = env.fake.URL()
	bcfg.Timeout = 2 * time.Second
	client, err := backend.New(bcfg, quietLogger())
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}

	scfg := session.DefaultConfig()
	scfg.Key = []byte(testKey)
	env.sessions, err = session.NewService(scfg, env.store, session.WithClock(func() time.Time { return env.now }))
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}

	cfg := DefaultConfig()
	cfg.RateRequests = 1000
	for _, m := range mutate {
		m(&cfg)
	}
	env.h, err = NewHandler(quietLogger(), cfg, env.sessions, client)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	r := chi.NewRouter()
	r.Use(env.h.Gate)
	env.h.Register(r)
	r.With(env.h.RequireSession).Post("/api/whoami", func(w http.ResponseWriter, r *http.Request) {
		c, _ := ClaimsFromContext(r.Context())
		_, _ = io.WriteString(w, c.Email)
	})
	env.h.RegisterPages(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "192.0.2.10:4000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// login seeds a user, logs in and returns the session and csrf cookies.
func (e *testEnv) login(t *testing.T, email string) (sess, csrf *http.Cookie) {
	t.Helper()
	e.fake.AddUser(email, "password123", "Ada", "Lovelace")
	rr := e.do(t, http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"password123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	sess = findCookie(rr, "session")
	csrf = findCookie(rr, "csrf")
	if sess == nil || csrf == nil {
		t.Fatalf("login did not set both cookies")
	}
	return sess, csrf
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeStatus(t *testing.T, rr *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var out statusResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v (body=%s)", err, rr.Body.String())
	}
	return out
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantHTTP    int
		wantStatus  int
		wantMessage string
		hitsBackend bool
	}{
		{"ok", `{"email":"new@x.io","password":"longenough","firstName":"A","lastName":"B"}`, 201, 200, "Account created!", true},
		{"taken", `{"email":"taken@x.io","password":"longenough","firstName":"A","lastName":"B"}`, 409, 404, "This email is already registered!", true},
		{"no at", `{"email":"nope","password":"longenough","firstName":"A","lastName":"B"}`, 422, 405, "Email must contain an @!", true},
		{"short password", `{"email":"a@x.io","password":"short","firstName":"A","lastName":"B"}`, 422, 406, "Password must contain at least 8 characters!", true},
		{"blank first", `{"email":"a@x.io","password":"longenough","firstName":"","lastName":"B"}`, 422, 407, "First name can't be blank!", true},
		{"blank last", `{"email":"a@x.io","password":"longenough","firstName":"A","lastName":""}`, 422, 408, "Last name can't be blank!", true},
		{"taken beats short password", `{"email":"taken@x.io","password":"short","firstName":"","lastName":""}`, 409, 404, "This email is already registered!", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.fake.AddUser("taken@x.io", "whatever1", "T", "U")

			rr := env.do(t, http.MethodPost, "/api/auth/signup", tc.body)
			if rr.Code != tc.wantHTTP {
				t.Fatalf("http=%d want %d body=%s", rr.Code, tc.wantHTTP, rr.Body.String())
			}
			got := decodeStatus(t, rr)
			if got.Status != tc.wantStatus || got.Message != tc.wantMessage {
				t.Fatalf("got %+v", got)
			}
			if hit := env.fake.Calls(backend.EndpointCreateUser) > 0; hit != tc.hitsBackend {
				t.Fatalf("backend hit=%v want %v", hit, tc.hitsBackend)
			}
		})
	}
}

func TestSignup_RejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/auth/signup", `{"email":"a@x.io","admin":true}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestLogin_SetsCookies(t *testing.T) {
	env := newTestEnv(t)
	id := env.fake.AddUser("ada@x.io", "password123", "Ada", "Lovelace")

	rr := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ada@x.io","password":"password123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeStatus(t, rr)
	if got.Status != 200 || got.Message != "Logged in!" || got.Redirect != "/rooms" {
		t.Fatalf("unexpected body: %+v", got)
	}

	sess := findCookie(rr, "session")
	if sess == nil || !sess.HttpOnly || sess.Path != "/" || sess.SameSite != http.SameSiteLaxMode {
		t.Fatalf("bad session cookie: %+v", sess)
	}
	if !sess.Expires.Equal(env.now.Add(time.Hour).Truncate(time.Second)) {
		t.Fatalf("session expires=%s", sess.Expires)
	}
	csrf := findCookie(rr, "csrf")
	if csrf == nil || csrf.HttpOnly || csrf.Value == "" {
		t.Fatalf("bad csrf cookie: %+v", csrf)
	}

	claims, err := env.sessions.Verify(t.Context(), sess.Value)
	if err != nil || claims == nil {
		t.Fatalf("Verify: %v %v", claims, err)
	}
	if claims.Email != "ada@x.io" || claims.UserID != id {
		t.Fatalf("claims=%+v", claims)
	}
	if csrf.Value != env.h.csrfToken(claims.TokenID()) {
		t.Fatalf("csrf cookie not bound to jti")
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*testEnv)
		body     string
		wantHTTP int
		wantMsg  string
	}{
		{"wrong password", func(e *testEnv) { e.fake.AddUser("ada@x.io", "password123", "A", "L") },
			`{"email":"ada@x.io","password":"nope"}`, 401, "Invalid email/password combination!"},
		{"unknown user", nil, `{"email":"ghost@x.io","password":"password123"}`, 401, "Invalid email/password combination!"},
		{"empty", nil, `{"email":"","password":""}`, 401, "Invalid email/password combination!"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tc.setup != nil {
				tc.setup(env)
			}
			rr := env.do(t, http.MethodPost, "/api/auth/login", tc.body)
			if rr.Code != tc.wantHTTP {
				t.Fatalf("http=%d want %d", rr.Code, tc.wantHTTP)
			}
			if got := decodeStatus(t, rr); got.Message != tc.wantMsg {
				t.Fatalf("message=%q", got.Message)
			}
			if findCookie(rr, "session") != nil {
				t.Fatalf("failed login must not set a session")
			}
		})
	}
}

func TestLogin_BackendUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.fake.FailHTTP(http.StatusBadGateway)

	rr := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ada@x.io","password":"password123"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "backend_unavailable") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/auth/session", "")
	if !strings.Contains(rr.Body.String(), `"loggedIn":false`) {
		t.Fatalf("anonymous body=%s", rr.Body.String())
	}

	sess, _ := env.login(t, "ada@x.io")
	rr = env.do(t, http.MethodGet, "/api/auth/session", "", sess)
	var out sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.LoggedIn || out.Email != "ada@x.io" || out.ID == 0 || out.ExpiresAt == nil {
		t.Fatalf("unexpected: %+v", out)
	}

	forged := &http.Cookie{Name: "session", Value: sess.Value + "x"}
	rr = env.do(t, http.MethodGet, "/api/auth/session", "", forged)
	if !strings.Contains(rr.Body.String(), `"loggedIn":false`) {
		t.Fatalf("forged cookie accepted: %s", rr.Body.String())
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	sess, csrf := env.login(t, "ada@x.io")

	rr := env.do(t, http.MethodPost, "/api/auth/logout", "", sess)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("logout without csrf header: status=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(sess)
	req.AddCookie(csrf)
	req.Header.Set("X-CSRF-Token", csrf.Value)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status=%d body=%s", rec.Code, rec.Body.String())
	}
	for _, name := range []string{"session", "csrf"} {
		c := findCookie(rec, name)
		if c == nil || c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("%s cookie not expired: %+v", name, c)
		}
	}
	if env.store.Len() != 1 {
		t.Fatalf("expected jti to be revoked, store len=%d", env.store.Len())
	}

	rr = env.do(t, http.MethodGet, "/api/auth/session", "", sess)
	if !strings.Contains(rr.Body.String(), `"loggedIn":false`) {
		t.Fatalf("revoked cookie still valid: %s", rr.Body.String())
	}

	// Idempotent without a session.
	rr = env.do(t, http.MethodPost, "/api/auth/logout", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous logout status=%d", rr.Code)
	}
}

func TestLogout_LegacyCookieWithoutJTI(t *testing.T) {
	env := newTestEnv(t)
	legacy := jwt.MapClaims{
		"email":         "ada@x.io",
		"cookieExpires": env.now.Add(10 * time.Minute).Format("2006-01-02T15:04:05.000Z07:00"),
		"id":            7,
		"iat":           env.now.Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, legacy).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign legacy: %v", err)
	}
	sess := &http.Cookie{Name: "session", Value: raw}

	rr := env.do(t, http.MethodGet, "/api/auth/session", "", sess)
	if !strings.Contains(rr.Body.String(), `"loggedIn":true`) {
		t.Fatalf("legacy cookie should be a session: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/auth/logout", "", sess)
	if rr.Code != http.StatusOK {
		t.Fatalf("legacy logout status=%d body=%s", rr.Code, rr.Body.String())
	}
	if c := findCookie(rr, "session"); c == nil || c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("session cookie not expired: %+v", c)
	}
	if env.store.Len() != 0 {
		t.Fatalf("nothing to revoke, store len=%d", env.store.Len())
	}
}

func TestSetCookie(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.AddUser("ada@x.io", "password123", "A", "L")
		rr := env.do(t, http.MethodPost, "/api/set-cookie", `{"email":"ada@x.io"}`)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status=%d", rr.Code)
		}
		if env.fake.Calls(backend.EndpointFetchID) != 0 {
			t.Fatalf("disabled route must not call backend")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		env := newTestEnv(t, func(c *Config) { c.LegacySetCookie = true })
		env.fake.AddUser("ada@x.io", "password123", "A", "L")

		rr := env.do(t, http.MethodPost, "/api/set-cookie", `{"email":"ada@x.io"}`)
		if rr.Code != http.StatusOK || decodeStatus(t, rr).Status != 200 {
			t.Fatalf("status=%d", rr.Code)
		}
		if findCookie(rr, "session") == nil {
			t.Fatalf("expected session cookie")
		}

		rr = env.do(t, http.MethodPost, "/api/set-cookie", `{"email":"ghost@x.io"}`)
		if rr.Code != http.StatusOK || decodeStatus(t, rr).Status != 500 {
			t.Fatalf("unknown email should report status 500 in body")
		}
	})
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateRequests = 2
		c.RateWindow = time.Minute
	})
	body := `{"email":"ada@x.io","password":"nope"}`
	for i := 0; i < 2; i++ {
		if rr := env.do(t, http.MethodPost, "/api/auth/login", body); rr.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
	}
	rr := env.do(t, http.MethodPost, "/api/auth/login", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if !strings.Contains(rr.Body.String(), "rate_limited") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

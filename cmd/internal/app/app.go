// Package app wires the Studyrooms server runtime: config, logging, HTTP
// routes, the realtime feed and the revocation store lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	authapi "studyrooms/cmd/internal/auth/api"
	"studyrooms/cmd/internal/auth/session"
	"studyrooms/cmd/internal/backend"
	"studyrooms/cmd/internal/realtime"
	"studyrooms/cmd/internal/rooms"
)

// App is the Studyrooms server runtime: it owns HTTP server wiring and the
// dependencies behind it.
type App struct {
	cfg     Config
	authCfg authapi.Config
	log     Logger

	dbPool *pgxpool.Pool

	backend     *backend.Client
	sessions    *session.Service
	revocations session.RevocationStore

	auth  *authapi.Handler
	rooms *rooms.Handler
	hub   *realtime.Hub
	ws    *realtime.WSGateway
}

// New constructs a fully wired App. Feature packages read their own
// configuration from the environment.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	authCfg := authapi.LoadConfigFromEnv()
	if err := ValidateSecurityConfig(cfg, authCfg); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	backendCfg, err := backend.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := backend.New(backendCfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, authCfg: authCfg, log: log, backend: client}

	a.revocations, err = a.newRevocationStore(ctx)
	if err != nil {
		return nil, err
	}

	a.sessions, err = session.NewService(sessCfg, a.revocations)
	if err != nil {
		a.closeDB()
		return nil, err
	}
	a.auth, err = authapi.NewHandler(log, authCfg, a.sessions, client)
	if err != nil {
		a.closeDB()
		return nil, err
	}

	roomsCfg := rooms.LoadConfigFromEnv()
	rtCfg := realtime.LoadConfigFromEnv()

	a.hub = realtime.NewHub(log, rtCfg, client)
	a.rooms = rooms.NewHandler(log, roomsCfg, client, rooms.WithNotifier(a.hub))
	a.ws = realtime.NewWSGateway(log, rtCfg, a.hub, a.auth, client, roomsCfg)

	return a, nil
}

// newRevocationStore picks Postgres when a database URL is configured and
// the in-memory store otherwise.
func (a *App) newRevocationStore(ctx context.Context) (session.RevocationStore, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.memory_revocations")
		return session.NewMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a.dbPool = pool

	st, err := session.NewPostgresStore(pool, session.WithSchema(a.cfg.DBSchema))
	if err != nil {
		a.closeDB()
		return nil, err
	}
	if a.cfg.DBEnsureSchema {
		if err := st.EnsureSchema(ctx); err != nil {
			a.closeDB()
			return nil, fmt.Errorf("db: ensure schema: %w", err)
		}
	}

	a.log.Info("db.enabled.postgres_revocations", "schema", a.cfg.DBSchema)
	return st, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return newRouter(a)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"http_url", base,
		"ws_url", wsBaseURL(base)+"/ws/rooms/{roomId}",
		"db_enabled", a.dbPool != nil,
	)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		a.runJanitor(janitorCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	// Hijacked WebSocket connections are not tracked by Shutdown.
	a.hub.Close()
	stopJanitor()
	<-janitorDone
	a.closeDB()

	a.log.Info("server.stopped")
	return runErr
}

// runJanitor drops expired revocations until ctx is done.
func (a *App) runJanitor(ctx context.Context) {
	t := time.NewTicker(nonZeroDuration(a.cfg.PruneInterval, 10*time.Minute))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.revocations.Prune(ctx, time.Now())
			if err != nil {
				if ctx.Err() == nil {
					a.log.Warn("session.revocations.prune_failed", "err", err)
				}
				continue
			}
			if n > 0 {
				a.log.Debug("session.revocations.pruned", "count", n)
			}
		}
	}
}

func (a *App) closeDB() {
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
// Wildcard binds map to loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return "ws://" + httpURL
	}
}

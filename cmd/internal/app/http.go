package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRouter(a *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if a.authCfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, a.log) })
	r.Use(middleware.Recoverer)
	r.Use(WithSecurityHeaders)
	if len(a.cfg.CORSAllowedOrigins) > 0 {
		r.Use(func(next http.Handler) http.Handler { return WithCORS(next, a.cfg, a.log) })
	}
	r.Use(a.auth.Gate)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !a.backend.Available() {
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			a.log.Info("readyz.backend.not_ready", "breaker", a.backend.BreakerState())
			return
		}

		if a.cfg.ReadinessRequireDB && a.dbPool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if a.dbPool != nil {
			if err := PingDB(r.Context(), a.dbPool, 2*time.Second); err != nil {
				a.log.Info("readyz.db.not_ready", "err", err)
				if a.cfg.ReadinessRequireDB {
					http.Error(w, "db not ready", http.StatusServiceUnavailable)
					return
				}
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	a.auth.Register(r)
	a.rooms.Register(r, a.auth.RequireSession)
	a.ws.Register(r)

	// Pages last: with a static dir they mount a catch-all.
	a.auth.RegisterPages(r)

	return r
}

package authapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/httprate"

	"studyrooms/cmd/internal/httpx"
)

// rateLimiter bounds credential routes per client IP. When TrustProxy is set,
// chi's RealIP has already rewritten RemoteAddr, so KeyByIP sees the client.
func (h *Handler) rateLimiter() func(http.Handler) http.Handler {
	window := h.cfg.RateWindow
	return httprate.Limit(
		h.cfg.RateRequests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if w.Header().Get("Retry-After") == "" {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			}
			h.log.Warn("auth.rate_limited", "path", r.URL.Path, "remote", r.RemoteAddr)
			httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		}),
	)
}

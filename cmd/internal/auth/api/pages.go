package authapi

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"studyrooms/cmd/internal/httpx"
)

// RegisterPages mounts the browser pages. With a static dir configured the
// exported web client is served from it; otherwise each page answers with a
// small JSON view so the gate can be exercised without a frontend build.
// Gate must wrap the router for the gated pages to be protected.
func (h *Handler) RegisterPages(r chi.Router) {
	if h.cfg.StaticDir != "" {
		r.Handle("/*", staticHandler(h.cfg.StaticDir))
		return
	}
	for _, p := range []string{"/", "/login", "/signup", "/about", "/about/*", "/rooms", "/roomchat"} {
		r.Get(p, h.handlePage)
	}
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	v := pageView{Page: r.URL.Path}
	if c, ok := ClaimsFromContext(r.Context()); ok {
		v.Email = c.Email
		v.ID = c.UserID
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// staticHandler serves dir, resolving extensionless page paths such as
// /rooms to rooms.html the way a static export lays them out.
func staticHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		if p != "/" && path.Ext(p) == "" {
			candidate := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(p, "/"))+".html")
			if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
				r2 := r.Clone(r.Context())
				r2.URL.Path = p + ".html"
				fs.ServeHTTP(w, r2)
				return
			}
		}
		fs.ServeHTTP(w, r)
	})
}

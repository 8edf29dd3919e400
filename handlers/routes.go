package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vavoo-proxy/metrics"
)

type Routes struct {
	Stream   http.Handler
	Playlist http.Handler
	Bouquet  http.Handler
}

func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/channels.m3u8", routes.Playlist)
	r.Method(http.MethodGet, "/channels.bouquet", routes.Bouquet)
	r.Method(http.MethodGet, "/stream/{id}", routes.Stream)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	return r
}

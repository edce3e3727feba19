package web

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/metrics"
	"github.com/kozaktomas/face-auth/internal/web/handlers"
	"github.com/kozaktomas/face-auth/internal/web/static"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(s.service)
	usersHandler := handlers.NewUsersHandler(s.service)
	configHandler := handlers.NewConfigHandler(s.config)
	readyHandler := handlers.NewReadyHandler(s.checks)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Get("/api/v1/ready", readyHandler.Ready)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)
		r.Get("/users", usersHandler.List)

		r.Post("/faces/detect", facesHandler.Detect)
		r.Post("/faces/register", facesHandler.Register)
		r.Post("/faces/verify", facesHandler.Verify)
	})

	// Paths used by the first version of the UI.
	s.router.Post("/api/detect_face", facesHandler.Detect)
	s.router.Post("/api/register_face", facesHandler.Register)
	s.router.Post("/api/verify_face", facesHandler.Verify)
	s.router.Get("/api/get_users", usersHandler.List)

	// Serve static files for the frontend
	s.router.Get("/*", s.serveUI)
}

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

// serveUI serves the embedded register/login pages. /register and /login
// both render index.html, which picks the tab from the path.
func (s *Server) serveUI(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if strings.HasPrefix(p, "/api/") {
		http.NotFound(w, r)
		return
	}

	fs := static.GetFileSystem()
	f, err := fs.Open(p)
	if err == nil {
		defer f.Close()
		if stat, err := f.Stat(); err == nil && !stat.IsDir() {
			contentType, ok := contentTypes[path.Ext(p)]
			if !ok {
				contentType = "application/octet-stream"
			}
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	index, err := fs.Open("/index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer index.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, index)
}

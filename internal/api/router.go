package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"memoryreel-backend/internal/worker"
)

// RouterConfig holds settings for the API router.
// Passed from main.go so the router can configure CORS and file serving
// from env vars.
type RouterConfig struct {
	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// LocalFilesDir, when non-empty, serves stored blobs from disk under
	// /files/. Left empty when the object-storage backend is in use.
	LocalFilesDir string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS: restrict origins when configured, otherwise allow all (dev mode)
	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/health", h.Health)
	r.Handle("/metrics", worker.MetricsHandler())
	r.Post("/v1/auth/google", h.GoogleCallback)

	// WebSocket event relay — auth rides in the token query parameter
	r.Get("/ws/projects/{id}", h.ProjectEvents)

	if cfg.LocalFilesDir != "" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.LocalFilesDir)))
		r.Get("/files/*", fileServer.ServeHTTP)
	}

	// API routes — protected by session token auth
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuth(h.jwtSecret))

		r.Get("/me", h.Me)

		// Projects
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/{id}", h.GetProject)
		r.Delete("/projects/{id}", h.DeleteProject)

		// Google Photos Picker import
		r.Post("/google-photos/session", h.CreatePickerSession)
		r.Get("/google-photos/session/{sessionID}", h.GetPickerSession)
		r.Post("/projects/{id}/import-google-photos", h.ImportGooglePhotos)

		// Photos
		r.Post("/projects/{id}/photos", h.UploadPhoto)
		r.Get("/projects/{id}/photos", h.ListPhotos)
		r.Put("/projects/{id}/photos/reorder", h.ReorderPhotos)
		r.Delete("/photos/{id}", h.DeletePhoto)

		// Style transfer
		r.Post("/projects/{id}/stylize", h.StylizeProject)
		r.Get("/projects/{id}/style-status", h.StyleStatus)
		r.Post("/photos/{id}/stylize", h.StylizePhoto)
		r.Get("/photos/{id}/variants", h.ListVariants)
		r.Post("/variants/{id}/select", h.SelectVariant)

		// Animation prompts
		r.Post("/projects/{id}/prompts", h.GeneratePrompts)
		r.Post("/photos/{id}/prompt", h.GeneratePhotoPrompt)

		// Videos
		r.Post("/photos/{id}/video", h.GenerateVideo)
		r.Get("/projects/{id}/videos", h.ListVideos)
		r.Post("/videos/{id}/select", h.SelectVideo)

		// Exports
		r.Post("/projects/{id}/export", h.CreateExport)
		r.Get("/projects/{id}/exports", h.ListExports)
		r.Get("/exports/{id}", h.GetExport)
		r.Post("/exports/{id}/main", h.SetMainExport)

		// Jobs
		r.Get("/jobs", h.ListJobs)
		r.Get("/projects/{id}/jobs", h.ListProjectJobs)
	})

	return r
}

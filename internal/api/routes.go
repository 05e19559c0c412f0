package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cratecrew/boxops/internal/auth"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, authManager *auth.Manager) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - allow credentials for auth cookies
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://portal.cratecrew.io", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	// Auth routes (no auth required)
	if authManager != nil {
		r.Get("/auth/login", authManager.HandleLogin)
		r.Get("/auth/callback", authManager.HandleCallback)
		r.Get("/auth/logout", authManager.HandleLogout)
	}

	devMode := os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development"

	r.Route("/api", func(r chi.Router) {
		// Apply auth middleware to all API routes (skip in dev mode)
		if authManager != nil && !devMode {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					if !authManager.IsAuthenticated(req) {
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(http.StatusUnauthorized)
						w.Write([]byte(`{"error":"unauthorized"}`))
						return
					}
					next.ServeHTTP(w, req)
				})
			})
		}

		r.Route("/orgs/{orgID}", func(r chi.Router) {
			// Migration run lifecycle
			r.Route("/runs", func(r chi.Router) {
				r.Post("/", h.StartRun)
				r.Get("/{runID}", h.GetRun)
				r.Post("/{runID}/batches", h.DispatchBatch)
				r.Post("/{runID}/complete", h.CompleteRun)
				r.Get("/{runID}/records", h.ListRecords)
				r.Post("/{runID}/export", h.ExportRunReport)
			})

			// Audit record review
			r.Route("/records/{recordID}", func(r chi.Router) {
				r.Get("/", h.GetRecord)
				r.Post("/resolve", h.ResolveRecord)
				r.Post("/skip", h.SkipRecord)
			})

			// SKU mapping administration
			r.Route("/mappings", func(r chi.Router) {
				r.Get("/aliases", h.ListAliases)
				r.Post("/aliases", h.CreateAlias)
				r.Delete("/aliases/{aliasID}", h.DeleteAlias)
				r.Get("/patterns", h.ListPatterns)
				r.Post("/patterns", h.CreatePattern)
				r.Delete("/patterns/{patternID}", h.DeletePattern)
			})
		})
	})

	return r
}

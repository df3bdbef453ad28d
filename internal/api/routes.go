package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/murillocortez/klyver-engine/internal/pkg/httputil"
)

// SetupRoutes configures the admin API. An empty apiKey disables auth, which
// is only sensible for local development.
func SetupRoutes(h *Handlers, apiKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		if apiKey != "" {
			r.Use(requireAPIKey(apiKey))
		}

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/run", h.RunAllCampaigns)
			r.Post("/retry-sweep", h.RetrySweep)
			r.Get("/runs", h.ListRuns)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/config", h.GetCampaignConfig)
				r.Put("/config", h.UpdateCampaignConfig)
				r.Post("/run", h.RunCampaign)
			})
		})

		r.Get("/stats", h.GetStats)
	})

	return r
}

// requireAPIKey accepts the key in X-API-Key or as a bearer token.
func requireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got := req.Header.Get("X-API-Key")
			if got == "" {
				got = strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				httputil.Unauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the web client
  5. RateLimit:  Per-client token bucket (golang.org/x/time/rate)

ROUTE GROUPS:
  /api/health                 Liveness
  /api/tenants/{tenant}/*     Obligations, generation, reminders, leave
  /api/leave-requests/{id}/*  Leave request transitions

SECURITY NOTE:
  No authentication middleware. Tenant ids in the path are trusted.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultRouterOptions matches the configuration defaults.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/tenants/{tenant}", func(r chi.Router) {
			// Template routes
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", h.ListTemplates)
				r.Post("/", h.CreateTemplate)
				r.Patch("/{id}", h.PatchTemplate)
			})

			// Instance routes
			r.Route("/instances", func(r chi.Router) {
				r.Get("/", h.ListInstances)
				r.Post("/", h.CreateInstance)
				r.Get("/export", h.ExportInstances)
				r.Patch("/{id}", h.PatchInstance)
			})

			// Generation routes
			r.Route("/generation", func(r chi.Router) {
				r.Post("/run", h.RunGeneration)
				r.Get("/history", h.GenerationHistory)
			})

			// Reminder routes
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notifications)
				r.Get("/export", h.ExportNotifications)
				r.Post("/{id}/read", h.MarkNotificationRead)
			})
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.PutSettings)

			// Leave routes
			r.Route("/leave-requests", func(r chi.Router) {
				r.Get("/", h.ListLeaveRequests)
				r.Post("/", h.SubmitLeaveRequest)
				r.Post("/validate", h.ValidateLeaveRequest)
			})
		})

		// Leave request transitions
		r.Route("/leave-requests/{id}", func(r chi.Router) {
			r.Get("/", h.GetLeaveRequest)
			r.Post("/approve", h.ApproveLeaveRequest)
			r.Post("/reject", h.RejectLeaveRequest)
			r.Post("/cancel", h.CancelLeaveRequest)
			r.Post("/reschedule", h.RescheduleLeaveRequest)
		})
	})

	return r
}

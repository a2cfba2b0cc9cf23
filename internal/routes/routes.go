package routes

import (
	"github.com/AnshRaj112/tandem-backend/internal/handlers"
	"github.com/AnshRaj112/tandem-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Options carries the middleware dependencies of the route tree.
type Options struct {
	Sessions     middleware.SessionValidator
	AdminKeyHash string
	// APILimiter is applied to /api routes when set.
	APILimiter *middleware.IPRateLimiter
	Logger     zerolog.Logger
}

func SetupRoutes(r chi.Router, h *handlers.Handler, opts Options) {
	requireSession := middleware.RequireSession(opts.Sessions, opts.Logger)

	// Health check (no rate limit)
	r.Get("/health", h.Health)

	// Chat gateway: token via Authorization header or ?token=
	r.With(requireSession).Get("/ws/chat", h.ChatWebSocket)

	r.Route("/api", func(r chi.Router) {
		if opts.APILimiter != nil {
			r.Use(opts.APILimiter.Middleware)
		}

		// Profiles
		r.Post("/users", h.UpsertProfile)
		r.With(requireSession).Get("/users/me", h.Me)

		// Media attachments
		r.With(requireSession).Post("/media", h.UploadMedia)

		// Oversight
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminKey(opts.AdminKeyHash, opts.Logger))
			r.Get("/connections", h.ListConnections)
			r.Get("/transcripts", h.ListTranscripts)
			r.Get("/users/{id}", h.GetUser)
			r.Post("/users/{id}/block", h.BlockUser)
		})
	})
}

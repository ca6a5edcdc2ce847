package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

// healthCheckTimeout bounds each backend check on /api/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, echoRequestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanics)
	r.Use(s.cors)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Public auth endpoints
		r.Post("/login", s.handleLogin)
		r.Post("/forgot_password", s.handleForgotPassword)
		r.Post("/reset_password/{token}", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/logout", s.handleLogout)
			r.Get("/profile", s.handleProfile)
		})

		r.Route("/admin", func(r chi.Router) {
			// Administrator recovery is public: the caller has lost the password.
			r.Post("/forgot_password", s.handleAdminForgotPassword)
			r.Post("/reset_password/{token}", s.handleAdminResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, s.requireRole(auth.RoleAdmin))
				r.Post("/password_reset", s.handleAdminPasswordReset)
			})
		})
	})

	return r
}

// handleHealth reports the server version and the state of each backend.
// Any failing backend turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if len(s.health) > 0 {
		components := make(map[string]string, len(s.health))
		for name, checker := range s.health {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := checker.HealthCheck(ctx)
			cancel()

			if err != nil {
				components[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				s.logger.Warn("health check failed", "component", name, "error", err)
				continue
			}
			components[name] = "ok"
		}
		body["components"] = components
	}

	writeJSON(w, status, body)
}

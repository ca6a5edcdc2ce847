package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, X-Request-Id"
	corsMaxAge       = "86400"

	// Auth payloads are a few short strings.
	maxRequestBodySize = 64 << 10

)

// resetPathPrefixes are the routes whose last segment is a reset token.
var resetPathPrefixes = []string{"/api/reset_password/", "/api/admin/reset_password/"}

// echoRequestID copies the id chosen by middleware.RequestID onto the
// response so clients can quote it.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one record per request. Reset tokens in the path are
// masked.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("http request",
			"method", r.Method,
			"path", redactPath(r.URL.Path),
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFrom(r),
		)
	})
}

// recoverPanics turns a handler panic into the generic JSON 500 body.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
				panic(rec)
			}
			s.logger.Error("handler panic",
				"panic", rec,
				"method", r.Method,
				"path", redactPath(r.URL.Path),
				"request_id", requestIDFrom(r),
			)
			writeInternalError(w)
		}()
		next.ServeHTTP(w, r)
	})
}

// cors answers preflights and sets the CORS headers for allowed origins.
// Only origins named in the config get Allow-Credentials, since the token
// cookie travels with credentialed requests. An empty list or "*" admits
// any origin without credentials.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if allowed, credentials := s.originPolicy(origin); allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				if credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originPolicy reports whether origin may call the API and whether it may
// send credentials.
func (s *Server) originPolicy(origin string) (allowed, credentials bool) {
	list := s.cfg.CORS.AllowedOrigins
	if len(list) == 0 {
		return true, false
	}
	for _, a := range list {
		if a == origin {
			return true, true
		}
		if a == "*" {
			allowed = true
		}
	}
	return allowed, false
}

// authenticate admits requests carrying a valid, unrevoked token and puts
// its claims in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.guard.RequireAuth(r)
		if err != nil {
			s.logger.Debug("unauthenticated request",
				"path", redactPath(r.URL.Path),
				"reason", err,
				"request_id", requestIDFrom(r),
			)
			s.writeAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// requireRole admits only callers whose claims carry role. Mount it
// below authenticate.
func (s *Server) requireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(auth.ClaimsFromContext(r.Context()), role); err != nil {
				s.writeAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDFrom(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// redactPath masks the token segment of the reset_password routes.
func redactPath(path string) string {
	for _, prefix := range resetPathPrefixes {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" {
			return prefix + "[redacted]"
		}
	}
	return path
}

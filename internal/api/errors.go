package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Msg  string `json:"msg"`
	Code string `json:"code"`
}

// Common error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeValidation         = "validation_error"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeInactive           = "account_inactive"
	ErrCodeUnauthorized       = "unauthorised"
	ErrCodeTokenExpired       = "token_expired"
	ErrCodeTokenRevoked       = "token_revoked"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeResetToken         = "invalid_reset_token"
	ErrCodeInternal           = "internal_error"
)

// messageResponse is the body of every successful write operation.
type messageResponse struct {
	Msg string `json:"msg"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeMessage writes a 200 {msg} response.
func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, messageResponse{Msg: msg})
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, Error{Msg: msg, Code: code})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, msg)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

type errorMapping struct {
	target error
	status int
	code   string
	msg    string
}

// authErrors maps auth sentinels to responses. Order matters: the first
// match wins.
var authErrors = []errorMapping{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid email, password, or role"},
	{auth.ErrPrincipalInactive, http.StatusForbidden, ErrCodeInactive, "Account is not active"},
	{auth.ErrTokenMissing, http.StatusUnauthorized, ErrCodeUnauthorized, "Missing authorization token"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, ErrCodeTokenExpired, "Token has expired"},
	{auth.ErrTokenRevoked, http.StatusUnauthorized, ErrCodeTokenRevoked, "Token has been revoked"},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid token"},
	{auth.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "Insufficient permissions"},
	{auth.ErrPasswordMismatch, http.StatusBadRequest, ErrCodeValidation, "Passwords do not match"},
	{auth.ErrResetTokenInvalid, http.StatusBadRequest, ErrCodeResetToken, "Invalid or expired token"},
	{auth.ErrPrincipalNotFound, http.StatusNotFound, ErrCodeNotFound, "Email not found"},
}

// writeAuthError maps err to a response. Validation errors carry a
// caller-safe message; anything unrecognised is an opaque 500.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range authErrors {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, m.msg)
			return
		}
	}

	if errors.Is(err, auth.ErrValidation) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
		"request_id", requestIDFrom(r),
	)
	writeInternalError(w)
}

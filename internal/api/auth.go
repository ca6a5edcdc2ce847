package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

// Response messages.
const (
	msgLoggedIn      = "You have successfully logged in"
	msgLoggedOut     = "Successfully logged out"
	msgResetSent     = "Password Reset email sent"
	msgPasswordReset = "Password has been reset"

	msgMissingJSON        = "Missing JSON in request"
	msgMissingLogin       = "Missing email, password, or role"
	msgMissingEmail       = "Missing email"
	msgMissingNewPassword = "Missing new password or confirmation"
)

// emailRule checks address syntax only. No MX lookup: validation must not
// touch the network.
var emailRule = validation.NewStringRule(govalidator.IsEmail, "must be a valid email address")

// loginRequest is the request body for POST /api/login.
type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	RememberMe bool   `json:"rememberMe"`
}

// Validate checks the shape of the request before any store access.
func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, emailRule),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role,
			validation.Required,
			validation.In(string(auth.RoleAdmin), string(auth.RoleTenant)),
		),
	)
}

// loginResponse is the response body for POST /api/login.
type loginResponse struct {
	Msg         string    `json:"msg"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// emailRequest is the body of the forgot_password and password_reset
// endpoints. Role is optional; empty means tenants first.
type emailRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Validate checks the shape of the request before any store access.
func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, emailRule),
		validation.Field(&r.Role, validation.In(string(auth.RoleAdmin), string(auth.RoleTenant))),
	)
}

// resetPasswordRequest is the request body for POST /api/reset_password/{token}.
type resetPasswordRequest struct {
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// profileResponse is the response body for GET /api/profile.
type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	Active    bool      `json:"active"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, msgMissingJSON)
		return false
	}
	return true
}

// writeValidationError answers 400 with the first field error.
func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
}

// handleLogin authenticates a principal and issues an access token, both
// in the body and as an HTTP-only cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.TrimSpace(req.Role)

	if req.Email == "" || req.Password == "" || req.Role == "" {
		writeBadRequest(w, msgMissingLogin)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	issued, err := s.auth.Login(r.Context(), auth.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		Role:       auth.Role(req.Role),
		RememberMe: req.RememberMe,
	})
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.setTokenCookie(w, issued)
	writeJSON(w, http.StatusOK, loginResponse{
		Msg:         msgLoggedIn,
		AccessToken: issued.Token,
		ExpiresAt:   issued.ExpiresAt,
	})
}

// handleLogout revokes the caller's token and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(auth.ClaimsFromContext(r.Context()))
	s.clearTokenCookie(w)
	writeMessage(w, msgLoggedOut)
}

// handleProfile returns the identity behind the caller's token.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	p, err := s.auth.Profile(r.Context(), claims)
	if err != nil {
		if errors.Is(err, auth.ErrPrincipalNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		s.writeAuthError(w, r, err)
		return
	}

	resp := profileResponse{
		ID:        p.ID,
		Email:     p.Email,
		Role:      p.Role,
		Active:    p.Active,
		ExpiresAt: claims.Expiry(),
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleForgotPassword starts password recovery for an email address.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEmailRequest(w, r)
	if !ok {
		return
	}
	s.forgotPassword(w, r, req.Email, auth.Role(req.Role))
}

// handleAdminForgotPassword is forgot_password scoped to administrator
// accounts.
func (s *Server) handleAdminForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEmailRequest(w, r)
	if !ok {
		return
	}
	s.forgotPassword(w, r, req.Email, auth.RoleAdmin)
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request, email string, role auth.Role) {
	if err := s.auth.ForgotPassword(r.Context(), email, role); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeMessage(w, msgResetSent)
}

// handleAdminPasswordReset sends a reset link to any principal on behalf
// of an administrator.
func (s *Server) handleAdminPasswordReset(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEmailRequest(w, r)
	if !ok {
		return
	}

	if err := s.auth.SendResetLink(r.Context(), req.Email, auth.Role(req.Role)); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	s.logger.Info("admin issued password reset",
		"admin_jti", auth.ClaimsFromContext(r.Context()).ID,
		"request_id", requestIDFrom(r),
	)
	writeMessage(w, msgResetSent)
}

func (s *Server) readEmailRequest(w http.ResponseWriter, r *http.Request) (emailRequest, bool) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.TrimSpace(req.Role)

	if req.Email == "" {
		writeBadRequest(w, msgMissingEmail)
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return req, false
	}
	return req, true
}

// handleResetPassword consumes a reset token and sets the new password of
// whichever principal it was issued for.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	s.resetPassword(w, r, "")
}

// handleAdminResetPassword accepts only tokens issued for administrators.
func (s *Server) handleAdminResetPassword(w http.ResponseWriter, r *http.Request) {
	s.resetPassword(w, r, auth.RoleAdmin)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request, role auth.Role) {
	token := chi.URLParam(r, "token")

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NewPassword == "" || req.ConfirmPassword == "" {
		writeBadRequest(w, msgMissingNewPassword)
		return
	}

	if err := s.auth.ResetPasswordForRole(r.Context(), role, token, req.NewPassword, req.ConfirmPassword); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeMessage(w, msgPasswordReset)
}

func (s *Server) setTokenCookie(w http.ResponseWriter, issued *auth.IssuedToken) {
	name := s.guard.CookieName()
	if name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    issued.Token,
		Path:     "/",
		Expires:  issued.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter) {
	name := s.guard.CookieName()
	if name == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

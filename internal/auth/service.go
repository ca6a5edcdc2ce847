package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Notification is an outbound message handed to a Notifier.
type Notification struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Notifier dispatches notifications. Delivery is fire-and-forget: the
// service logs a failed dispatch and does not retry it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EventRecorder receives one call per authentication event. Implementations
// must not block.
type EventRecorder interface {
	RecordAuthEvent(event string, role Role, outcome string)
}

// Auth event names and outcomes passed to EventRecorder.
const (
	EventLogin          = "login"
	EventLogout         = "logout"
	EventForgotPassword = "forgot_password"
	EventResetPassword  = "reset_password"

	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeInactive = "inactive"
	OutcomeUnknown  = "unknown"
)

const resetSubject = "Password Reset Request"

// ServiceConfig holds the policy knobs of the recovery flow.
type ServiceConfig struct {
	// LinkBaseURL is prefixed to the reset token to form the emailed link.
	LinkBaseURL string

	// RevealUnknownEmail makes ForgotPassword return ErrPrincipalNotFound
	// for unregistered addresses instead of succeeding silently.
	RevealUnknownEmail bool

	// MinPasswordLength applies to passwords set via ResetPassword.
	MinPasswordLength int
}

// Service composes the credential store, token issuer, guard and reset
// store into the login, logout and recovery operations.
type Service struct {
	creds    *CredentialStore
	tokens   *TokenIssuer
	guard    *Guard
	resets   *ResetTokenStore
	notifier Notifier
	events   EventRecorder
	cfg      ServiceConfig
	logger   *slog.Logger
}

// ServiceDeps lists the collaborators of a Service. Events may be nil.
type ServiceDeps struct {
	Credentials *CredentialStore
	Tokens      *TokenIssuer
	Guard       *Guard
	Resets      *ResetTokenStore
	Notifier    Notifier
	Events      EventRecorder
	Logger      *slog.Logger
}

// NewService validates deps and builds a Service.
func NewService(deps ServiceDeps, cfg ServiceConfig) (*Service, error) {
	if deps.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if deps.Guard == nil {
		return nil, errors.New("guard is required")
	}
	if deps.Resets == nil {
		return nil, errors.New("reset token store is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if deps.Events == nil {
		deps.Events = noopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		creds:    deps.Credentials,
		tokens:   deps.Tokens,
		guard:    deps.Guard,
		resets:   deps.Resets,
		notifier: deps.Notifier,
		events:   deps.Events,
		cfg:      cfg,
		logger:   deps.Logger,
	}, nil
}

// LoginRequest is the input to Login.
type LoginRequest struct {
	Email      string
	Password   string
	Role       Role
	RememberMe bool
}

// Login authenticates the request and issues an access token. Inactive
// tenants are refused with ErrPrincipalInactive; administrators are not
// subject to the active flag.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*IssuedToken, error) {
	p, err := s.creds.Authenticate(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.events.RecordAuthEvent(EventLogin, req.Role, OutcomeFailure)
			s.logger.Info("login rejected", "role", req.Role)
		}
		return nil, err
	}

	if p.Role == RoleTenant && !p.Active {
		s.events.RecordAuthEvent(EventLogin, p.Role, OutcomeInactive)
		s.logger.Info("login refused for inactive account", "principal_id", p.ID)
		return nil, ErrPrincipalInactive
	}

	issued, err := s.tokens.Issue(p.Email, p.Role, s.tokens.TTL(req.RememberMe))
	if err != nil {
		return nil, err
	}

	s.events.RecordAuthEvent(EventLogin, p.Role, OutcomeSuccess)
	s.logger.Info("login succeeded", "principal_id", p.ID, "role", p.Role, "jti", issued.ID)
	return issued, nil
}

// Logout revokes the caller's current token.
func (s *Service) Logout(claims *Claims) {
	s.guard.Logout(claims)
	s.events.RecordAuthEvent(EventLogout, claims.Role, OutcomeSuccess)
	s.logger.Info("token revoked", "jti", claims.ID, "role", claims.Role)
}

// Profile returns the principal behind claims.
func (s *Service) Profile(ctx context.Context, claims *Claims) (*Principal, error) {
	return s.creds.Lookup(ctx, claims.Email(), claims.Role)
}

// ForgotPassword creates a reset token for the principal with email and
// dispatches the link. An empty role means any role, tenants first; the
// same email may exist once per role, so admins recover with RoleAdmin.
// Unknown addresses succeed silently unless RevealUnknownEmail is set.
func (s *Service) ForgotPassword(ctx context.Context, email string, role Role) error {
	p, err := s.findForReset(ctx, email, role)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			s.events.RecordAuthEvent(EventForgotPassword, role, OutcomeUnknown)
			s.logger.Debug("password reset requested for unknown email", "email", NormalizeEmail(email), "role", role)
			if s.cfg.RevealUnknownEmail {
				return ErrPrincipalNotFound
			}
			return nil
		}
		return err
	}

	if err := s.dispatchResetLink(ctx, p); err != nil {
		return err
	}
	s.events.RecordAuthEvent(EventForgotPassword, p.Role, OutcomeSuccess)
	return nil
}

// SendResetLink dispatches a reset link on behalf of an administrator.
// Role selects the account as in ForgotPassword. Unlike ForgotPassword an
// unknown email is always reported.
func (s *Service) SendResetLink(ctx context.Context, email string, role Role) error {
	p, err := s.findForReset(ctx, email, role)
	if err != nil {
		return err
	}
	return s.dispatchResetLink(ctx, p)
}

func (s *Service) findForReset(ctx context.Context, email string, role Role) (*Principal, error) {
	switch {
	case role == "":
		return s.creds.FindByEmail(ctx, email)
	case role.Valid():
		return s.creds.Lookup(ctx, email, role)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
}

func (s *Service) dispatchResetLink(ctx context.Context, p *Principal) error {
	token, err := s.resets.Create(p.Email, p.Role)
	if err != nil {
		return err
	}

	n := Notification{
		Recipient: p.Email,
		Subject:   resetSubject,
		Body:      "Reset your password using the following link: " + s.resetLink(token),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("reset link dispatch failed", "principal_id", p.ID, "error", err)
		return nil
	}

	s.logger.Info("reset link dispatched", "principal_id", p.ID, "role", p.Role)
	return nil
}

func (s *Service) resetLink(token string) string {
	base := s.cfg.LinkBaseURL
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + token
}

// ResetPassword checks the new password pair, consumes token and stores
// the new hash on the principal the token was issued for. A rejected pair
// leaves the token unconsumed.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error {
	return s.ResetPasswordForRole(ctx, "", token, newPassword, confirmPassword)
}

// ResetPasswordForRole is ResetPassword restricted to tokens issued for
// role. A token of another role is rejected and left unconsumed.
func (s *Service) ResetPasswordForRole(ctx context.Context, role Role, token, newPassword, confirmPassword string) error {
	if newPassword == "" || confirmPassword == "" {
		return fmt.Errorf("%w: missing new password or confirmation", ErrValidation)
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if len(newPassword) < s.cfg.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, s.cfg.MinPasswordLength)
	}

	grant, err := s.resets.Consume(token, role)
	if err != nil {
		s.events.RecordAuthEvent(EventResetPassword, role, OutcomeFailure)
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.creds.UpdatePassword(ctx, grant.Email, grant.Role, hash); err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// The account was removed after the link was sent.
			s.events.RecordAuthEvent(EventResetPassword, grant.Role, OutcomeUnknown)
			s.logger.Info("reset token outlived its principal", "role", grant.Role)
			return ErrResetTokenInvalid
		}
		return err
	}

	s.events.RecordAuthEvent(EventResetPassword, grant.Role, OutcomeSuccess)
	s.logger.Info("password reset", "role", grant.Role)
	return nil
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthEvent(string, Role, string) {}

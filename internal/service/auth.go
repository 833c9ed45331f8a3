// Package service holds the portal's business rules.
//
// AuthService orchestrates sign-up, login, federated sign-in and sign-out:
//
//	AuthHandler (HTTP) → AuthService (rules) → identity.Provider (credentials)
//	                                         ↘ RoleRepository (Role Records)
//
// KEY RESPONSIBILITIES:
//   - Write the Role Record at first sign-up / first federated sign-in
//   - Decide where the user lands afterwards
//   - Return every failure as a classified apperror, never a raw one
//
// WHAT THIS LAYER DOES NOT DO:
//   - It does NOT set cookies or read requests (handler's job)
//   - It does NOT retry; the user re-submits the form
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	"github.com/sakif/ngo-hub/internal/validate"
)

// SessionRefresher re-resolves an instance's session. The sign-in
// notification reaches the session manager before the Role Record is
// written, so the flow asks for a second look once the record exists.
type SessionRefresher interface {
	Refresh(instance string)
}

// AuthService handles the authentication flows.
//
// DEPENDENCIES (injected via NewAuthService):
//   - provider   identity.Provider         → credentials and bindings
//   - roles      repository.RoleRepository → Role Records
//   - federated  *auth.Registry            → authorization URLs
//   - sessions   SessionRefresher          → may be nil
type AuthService struct {
	provider  identity.Provider
	roles     repository.RoleRepository
	federated *auth.Registry
	sessions  SessionRefresher
	validator *validate.Validator
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. federated may be nil when no
// external provider is configured.
func NewAuthService(
	provider identity.Provider,
	roles repository.RoleRepository,
	federated *auth.Registry,
	sessions SessionRefresher,
	validator *validate.Validator,
	logger *slog.Logger,
) *AuthService {
	if federated == nil {
		federated = auth.NewRegistry()
	}
	return &AuthService{
		provider:  provider,
		roles:     roles,
		federated: federated,
		sessions:  sessions,
		validator: validator,
		logger:    logger,
	}
}

// SignUpInput is the sign-up form. The password policy belongs to the
// identity provider, so Password carries no tags here.
type SignUpInput struct {
	Name     string     `json:"name"     validate:"notblank,max=120"`
	Email    string     `json:"email"    validate:"required,email"`
	Password string     `json:"-"`
	Role     model.Role `json:"role"     validate:"role"`
}

// AuthResult is what a successful flow hands back to the handler.
// Role is empty when the Role Record is missing.
type AuthResult struct {
	Identity *identity.Identity
	Role     model.Role
	Redirect string
}

// FederatedStart is everything the handler needs to send the browser to
// an external provider and check the callback afterwards.
type FederatedStart struct {
	URL      string
	State    string
	Verifier string
}

// SignUp creates the credential, then the Role Record.
//
// ORDERING:
// If credential creation fails nothing is written. If the Role Record write
// fails afterwards the identity exists without a role; that is logged and
// returned as a NetworkError, and the session resolves with no role.
func (s *AuthService) SignUp(ctx context.Context, instance string, in SignUpInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	id, err := s.provider.CreateCredential(ctx, instance, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	rec := &model.RoleRecord{ID: id.ID, Role: in.Role, Name: in.Name, Email: id.Email}
	if err := s.roles.PutRole(ctx, rec); err != nil {
		s.logger.Error("identity created without role record",
			slog.String("identityID", id.ID),
			slog.String("role", string(in.Role)),
			slog.String("error", err.Error()),
		)
		return nil, classify("your account was created but its role could not be saved", err)
	}
	s.refresh(instance)

	s.logger.Info("signed up",
		slog.String("identityID", id.ID),
		slog.String("role", string(in.Role)),
	)
	return &AuthResult{Identity: id, Role: in.Role, Redirect: model.RedirectForRole(in.Role)}, nil
}

// Login verifies the credential and redirects by role. A missing or
// unreadable Role Record is logged and the user lands on the landing page.
func (s *AuthService) Login(ctx context.Context, instance, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.Credential(apperror.CodeInvalidCredential, "enter your email and password")
	}

	id, err := s.provider.VerifyCredential(ctx, instance, email, password)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{Identity: id, Redirect: model.RouteLanding}
	rec, err := s.roles.GetRole(ctx, id.ID)
	switch {
	case err == nil:
		result.Role = rec.Role
		result.Redirect = model.RedirectForRole(rec.Role)
	case errors.Is(err, apperror.ErrNotFound):
		s.logger.Warn("login without role record", slog.String("identityID", id.ID))
	default:
		s.logger.Error("fetching role record at login failed",
			slog.String("identityID", id.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("logged in",
		slog.String("identityID", id.ID),
		slog.String("role", string(result.Role)),
	)
	return result, nil
}

// BeginFederated prepares a redirect to the named provider with a fresh
// state and PKCE verifier.
func (s *AuthService) BeginFederated(providerName string) (*FederatedStart, error) {
	p, err := s.federated.Get(providerName)
	if err != nil {
		return nil, err
	}
	state := xid.New().String()
	verifier := auth.NewVerifier()
	return &FederatedStart{
		URL:      p.AuthCodeURL(state, verifier),
		State:    state,
		Verifier: verifier,
	}, nil
}

// FederatedProviders lists the configured provider names.
func (s *AuthService) FederatedProviders() []string {
	return s.federated.Names()
}

// SignInWithFederatedProvider completes the provider callback. A first-time
// identity gets a volunteer Role Record; an existing record is never touched.
// The redirect is always the landing page, whatever the role.
func (s *AuthService) SignInWithFederatedProvider(ctx context.Context, instance string, grant identity.FederatedGrant) (*AuthResult, error) {
	id, err := s.provider.SignInFederated(ctx, instance, grant)
	if err != nil {
		return nil, err
	}

	rec := &model.RoleRecord{
		ID:    id.ID,
		Role:  model.RoleVolunteer,
		Name:  id.DisplayName,
		Email: id.Email,
	}
	created, err := s.roles.CreateRoleIfAbsent(ctx, rec)
	if err != nil {
		s.logger.Error("federated identity without role record",
			slog.String("identityID", id.ID),
			slog.String("provider", grant.Provider),
			slog.String("error", err.Error()),
		)
		return nil, classify("you are signed in but your role could not be saved", err)
	}
	if created {
		s.refresh(instance)
		s.logger.Info("federated identity registered",
			slog.String("identityID", id.ID),
			slog.String("provider", grant.Provider),
		)
	}

	result := &AuthResult{Identity: id, Redirect: model.RouteLanding}
	if created {
		result.Role = model.RoleVolunteer
	} else if existing, err := s.roles.GetRole(ctx, id.ID); err == nil {
		result.Role = existing.Role
	}
	return result, nil
}

// SignOut is idempotent: signing out an anonymous instance succeeds.
func (s *AuthService) SignOut(ctx context.Context, instance string) (string, error) {
	if err := s.provider.SignOut(ctx, instance); err != nil {
		return "", classify("could not sign out", err)
	}
	return model.RouteLogin, nil
}

func (s *AuthService) refresh(instance string) {
	if s.sessions != nil {
		s.sessions.Refresh(instance)
	}
}

// classify keeps errors that already carry a classification and reports
// everything else as a NetworkError with msg for the user.
func classify(msg string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Network(msg, fmt.Errorf("service: %w", err))
}

// Package authapi is the authentication call surface: login, signup, token
// refresh and password change against the backend's /auth endpoints.
package authapi

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/edukite/go-edukite-client/client"
	"github.com/edukite/go-edukite-client/session"
)

// Service wires the auth endpoints to the session manager: a successful
// login, signup or refresh initialises the session and arms silent renewal.
type Service struct {
	client  *client.Client
	session *session.Manager
	log     zerolog.Logger
}

// ServiceOption modifies a Service at construction.
type ServiceOption func(*Service)

// WithLogger sets the service logger. The default logger is a nop.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log.With().Str("component", "authapi").Logger()
	}
}

// New creates the auth service.
func New(c *client.Client, m *session.Manager, options ...ServiceOption) (*Service, error) {
	if c == nil {
		return nil, errors.New("[New] client is required")
	}
	if m == nil {
		return nil, errors.New("[New] session manager is required")
	}

	s := &Service{
		client:  c,
		session: m,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// LoginRequest carries user credentials and an optional tenant context.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId,omitempty"`
}

// SignupRequest registers a new account within a tenant.
type SignupRequest struct {
	Email     string           `json:"email"`
	Password  string           `json:"password"`
	FirstName string           `json:"firstName"`
	LastName  string           `json:"lastName"`
	Role      session.RoleType `json:"role,omitempty"`
	TenantID  string           `json:"tenantId,omitempty"`
}

// changePasswordRequest is the wire shape of a password change.
type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login authenticates and installs the returned session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*session.AuthResponse, error) {
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return nil, errors.Wrap(err, "[Login] credential validation")
	}

	auth, err := client.Call[session.AuthResponse](ctx, s.client, http.MethodPost, "/auth/login", req)
	if err != nil {
		return nil, errors.Wrap(err, "[Login] login call")
	}
	if err := s.session.Initialise(&auth, true); err != nil {
		return nil, errors.Wrap(err, "[Login] initialise session")
	}

	s.log.Debug().Str("email", req.Email).Msg("logged in")
	return &auth, nil
}

// Signup registers a new account and installs the returned session.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*session.AuthResponse, error) {
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return nil, errors.Wrap(err, "[Signup] credential validation")
	}
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return nil, errors.Wrap(err, "[Signup] password strength")
	}

	auth, err := client.Call[session.AuthResponse](ctx, s.client, http.MethodPost, "/auth/signup", req)
	if err != nil {
		return nil, errors.Wrap(err, "[Signup] signup call")
	}
	if err := s.session.Initialise(&auth, true); err != nil {
		return nil, errors.Wrap(err, "[Signup] initialise session")
	}
	return &auth, nil
}

// ChangePassword submits a password change for the authenticated user. The
// endpoint returns an empty body on success.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return errors.Wrap(err, "[ChangePassword] password strength")
	}

	err := s.client.Do(ctx, http.MethodPost, "/auth/change-password", changePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "[ChangePassword] change password call")
	}
	return nil
}

// Logout destroys the local session: tokens, tenant, renewal timer and
// persisted entries all clear together.
func (s *Service) Logout() error {
	if err := s.session.Clear(); err != nil {
		return errors.Wrap(err, "[Logout] clear session")
	}
	s.log.Debug().Msg("logged out")
	return nil
}

func validateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return errors.New("invalid email format")
	}
	if password == "" {
		return errors.New("password is required")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower {
		return errors.New("password must contain uppercase and lowercase letters")
	}
	if !hasDigit {
		return errors.New("password must contain at least one number")
	}
	return nil
}

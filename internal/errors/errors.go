package errors

import (
	"errors"
	"fmt"
)

// Common error types for the EduKite client runtime
var (
	// Configuration errors
	ErrEndpointNotConfigured = errors.New("api endpoint not configured")
	ErrInvalidEndpoint       = errors.New("invalid api endpoint")
	ErrOriginNotConfigured   = errors.New("request origin not configured for relative endpoint")
	ErrInvalidStoreKey       = errors.New("invalid token store key")

	// Token errors
	ErrInvalidTokenFormat  = errors.New("invalid token format")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNoRefreshToken      = errors.New("no refresh token held")

	// Tenant errors
	ErrInvalidTenantID = errors.New("invalid tenant id")

	// Session errors
	ErrSessionExpired = errors.New("session expired")
	ErrNoSession      = errors.New("no active session")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

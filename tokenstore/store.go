// Package tokenstore is the persistence boundary for the refresh token and
// tenant id. The access token never crosses this boundary: it lives in
// session memory only.
package tokenstore

import (
	"errors"
	"regexp"
)

// ErrRejectedWrite is returned when a write fails format validation.
var ErrRejectedWrite = errors.New("value failed format validation")

// Store persists the refresh token and tenant id between process lifetimes.
// Implementations must reject values that fail format validation and purge
// invalid persisted values on read.
type Store interface {
	// StoreRefreshToken persists the refresh token. An empty token clears
	// the persisted entry.
	StoreRefreshToken(token string) error

	// RefreshToken returns the persisted refresh token, or "" when none is
	// held. Invalid persisted values are purged and reported as absent.
	RefreshToken() (string, error)

	// StoreTenantID persists the tenant id. An empty id clears the entry.
	StoreTenantID(id string) error

	// TenantID returns the persisted tenant id, or "" when none is held.
	// Invalid persisted values are purged and reported as absent.
	TenantID() (string, error)

	// ClearAll removes the refresh token and tenant id together.
	ClearAll() error
}

var (
	tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	tokenPattern    = regexp.MustCompile(`^[A-Za-z0-9._~+/=-]+$`)
)

const minTokenLength = 20

// ValidTokenFormat reports whether token looks like a credential this store
// is willing to persist: long enough and restricted to token-safe characters.
func ValidTokenFormat(token string) bool {
	if len(token) < minTokenLength {
		return false
	}
	return tokenPattern.MatchString(token)
}

// ValidTenantID reports whether id matches the restrictive tenant identifier
// pattern (alphanumeric, '-', '_').
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

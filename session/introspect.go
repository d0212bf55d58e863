package session

import (
	"time"

	"github.com/pkg/errors"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the client-visible metadata carried by the access token.
// The client does not hold the signing key; claims are extracted without
// verification and are advisory (UI gating only) - the backend remains the
// authority on every request.
type TokenClaims struct {
	Subject  string    `json:"sub,omitempty"`
	Email    string    `json:"email,omitempty"`
	Role     RoleType  `json:"role,omitempty"`
	TenantID string    `json:"tenant,omitempty"`
	IssuedAt time.Time `json:"iat,omitempty"`
	Expiry   time.Time `json:"exp,omitempty"`
}

// Expired reports whether the token expiry has passed at time now.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.After(c.Expiry)
}

// Introspect extracts claims from the current access token. Returns an error
// when no token is held or the token is not a parseable JWT.
func (m *Manager) Introspect() (*TokenClaims, error) {
	rawToken := m.AccessToken()
	if rawToken == "" {
		return nil, errors.New("[Introspect] no access token held")
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[Introspect] parse access token")
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[Introspect] error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	tenant, _ := claims["tenant"].(string)

	tc := &TokenClaims{
		Subject:  sub,
		Email:    email,
		Role:     RoleType(role),
		TenantID: tenant,
	}
	if iat, ok := claims["iat"].(float64); ok {
		tc.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := claims["exp"].(float64); ok {
		tc.Expiry = time.Unix(int64(exp), 0)
	}
	return tc, nil
}

// Package session owns the in-memory authentication state: the access token,
// the refresh token mirror, the active tenant, and the silent renewal timer.
package session

import "encoding/json"

// RoleType represents a user role within the platform
type RoleType string

const (
	RoleStudent    RoleType = "student"
	RoleTeacher    RoleType = "teacher"
	RoleHOD        RoleType = "hod"
	RoleAdmin      RoleType = "admin"
	RoleSuperAdmin RoleType = "superadmin"
)

// UserStatus represents a user's account state
type UserStatus string

const (
	StatusPending   UserStatus = "pending"
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
	StatusRejected  UserStatus = "rejected"
)

// AuthUser is the user identity attached to an AuthResponse.
type AuthUser struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Role       RoleType   `json:"role"`
	TenantID   string     `json:"tenantId,omitempty"`
	IsVerified bool       `json:"isVerified"`
	Status     UserStatus `json:"status,omitempty"`
}

// UnmarshalJSON decodes an AuthUser, defaulting an absent status to active.
// Records issued before the status field existed carry no status; the client
// must not treat them as more restricted than the backend does.
func (u *AuthUser) UnmarshalJSON(data []byte) error {
	type alias AuthUser
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	*u = AuthUser(a)
	return nil
}

// AuthResponse is the sole payload shape returned by login, signup and
// refresh. ExpiresIn is a duration string: a bare integer is milliseconds,
// otherwise a suffix-qualified value ("900s", "15m", "12h", "7d").
type AuthResponse struct {
	AccessToken        string   `json:"accessToken"`
	RefreshToken       string   `json:"refreshToken"`
	ExpiresIn          string   `json:"expiresIn"`
	MustChangePassword *bool    `json:"mustChangePassword,omitempty"`
	User               AuthUser `json:"user"`
}

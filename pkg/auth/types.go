// Package auth provides user accounts and API token authentication.
package auth

import (
	"time"

	"github.com/ledgerline/backoffice/pkg/authz"
)

// User represents a staff account
type User struct {
	ID           int64             `json:"id"`
	Username     string            `json:"username"`
	Email        string            `json:"email,omitempty"`
	FullName     string            `json:"full_name,omitempty"`
	PlatformRole authz.PlatformRole `json:"platform_role"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	LastLoginAt  *time.Time        `json:"last_login_at,omitempty"`
}

// Identity returns the authorization identity for this user
func (u *User) Identity() authz.Identity {
	return authz.Identity{
		UserID:       u.ID,
		PlatformRole: u.PlatformRole,
	}
}

// APIToken represents an API token
type APIToken struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	TokenHash    string     `json:"-"` // Never expose hash
	TokenPrefix  string     `json:"token_prefix"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokedBy    *int64     `json:"revoked_by,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
}

// Revoked reports whether the token has been revoked
func (t *APIToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token has expired as of now
func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

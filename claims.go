package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUse distinguishes access tokens from refresh tokens.
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// SessionClaims is the JWT payload of session tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID                    string      `json:"uid"`
	Kind                   AccountKind `json:"kind"`
	IsTemporary            bool        `json:"is_temporary"`
	NeedsProfileCompletion bool        `json:"needs_profile_completion"`
	TokenUse               TokenUse    `json:"token_use"`
}

// Owner returns the account the session belongs to.
func (c *SessionClaims) Owner() OwnerRef {
	uid := c.UID
	if uid == "" {
		uid = c.Subject
	}
	return OwnerRef{Kind: c.Kind, ID: uid}
}

// Expires returns the expiration time, zero when unset.
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IsAccess reports whether the claims belong to an access token.
func (c *SessionClaims) IsAccess() bool {
	return c.TokenUse == TokenUseAccess
}

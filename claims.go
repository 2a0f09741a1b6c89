package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured JWT claims for an authenticated session
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	FirstName() string
	LastName() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The user ID rides
// both in the registered subject and in the id claim so downstream consumers
// that only speak map claims still find it.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID           string         `json:"id,omitempty"`
	UserEmail     string         `json:"email,omitempty"`
	UserFirstName string         `json:"first_name,omitempty"`
	UserLastName  string         `json:"last_name,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"` // extension payload
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// FirstName returns the first name claim
func (c *JWTClaims) FirstName() string {
	return c.UserFirstName
}

// LastName returns the last name claim
func (c *JWTClaims) LastName() string {
	return c.UserLastName
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity record. A user is created unverified by registration,
// flips to verified exactly once when its verification token is redeemed, and
// is only read after that. Email and verification token are unique at the
// storage layer.
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	VerificationToken uuid.UUID      `bun:"verification_token,nullzero,type:uuid,unique" json:"verification_token,omitempty"`
	FirstName         string         `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName          string         `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email             string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone             string         `bun:"phone_number" json:"phone_number,omitempty"`
	DateOfBirth       string         `bun:"date_of_birth" json:"date_of_birth,omitempty"`
	Address           string         `bun:"address" json:"address,omitempty"`
	TravelInterests   []string       `bun:"travel_interests" json:"travel_interests,omitempty"`
	PasswordHash      string         `bun:"password_hash" json:"password_hash,omitempty"`
	Verified          bool           `bun:"is_verified" json:"is_verified,omitempty"`
	VerifiedAt        *time.Time     `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	Metadata          map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt         *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]interface{})
	}
	u.Metadata[key] = val
	return u
}

// FullName joins first and last name for display and token claims.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

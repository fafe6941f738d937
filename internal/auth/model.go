package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is one logical person. Optional attributes are empty strings when
// absent; Email maps to NULL in the database so multiple users without an
// email do not collide on the unique constraint.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	LastName  string
	Picture   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account links one User to one external provider identity. The pair
// (Provider, ProviderAccountID) is globally unique.
type Account struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Provider          Provider
	ProviderType      ProviderType
	ProviderAccountID string
	Email             string
	AccessToken       string
	RefreshToken      string
	IDToken           string
	Scope             string
	TokenType         string
	ExpiresAt         int64
	RawProfile        []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Session is a server-issued bearer credential. The raw token is never
// stored; repositories persist its SHA-256 hash.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ProfilePatch carries optional user-field updates; nil means "leave as is".
type ProfilePatch struct {
	Email    *string
	Name     *string
	LastName *string
	Picture  *string
}

// AccountTokenUpdate refreshes an account's volatile fields after a repeat
// login. User profile fields are never touched by a repeat login.
type AccountTokenUpdate struct {
	Email        string
	AccessToken  string
	RefreshToken string
	IDToken      string
	Scope        string
	TokenType    string
	ExpiresAt    int64
	RawProfile   []byte
}

package auth

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines user, account, and session persistence. Transact runs fn
// against a repository view bound to one atomic unit; implementations
// surface unique-constraint hits on account creation as ErrDuplicateAccount.
type Repository interface {
	Transact(ctx context.Context, fn func(Repository) error) error

	// User operations
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error)

	// Account operations
	FindAccount(ctx context.Context, provider Provider, providerAccountID string) (*Account, error)
	ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]Account, error)
	CreateAccount(ctx context.Context, account Account) error
	UpdateAccountTokens(ctx context.Context, id uuid.UUID, update AccountTokenUpdate) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error

	// Session operations
	CreateSession(ctx context.Context, session Session, tokenHash string) error
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, *User, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]Session, error)
}

package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"noughts/internal/auth"
)

// Repository is the slice of auth persistence the settings service needs.
// Both auth repository implementations satisfy it.
type Repository interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error)
	ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]auth.Account, error)
	ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]auth.Session, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, patch auth.ProfilePatch) (*auth.User, error)
}

// Service serves the settings overview and profile updates.
type Service struct {
	repo Repository
}

// NewService creates the settings Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UserSummary is the profile slice shown on the settings page.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	LastName string    `json:"lastName"`
	Picture  string    `json:"picture"`
}

// LinkedAccount is one connected provider identity.
type LinkedAccount struct {
	ID          uuid.UUID     `json:"id"`
	Provider    auth.Provider `json:"provider"`
	Email       string        `json:"email"`
	ConnectedAt time.Time     `json:"connectedAt"`
}

// SessionInfo is one active session. The newest session is marked current.
type SessionInfo struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsCurrent bool      `json:"isCurrent"`
}

// Overview is the full settings page payload.
type Overview struct {
	User     UserSummary     `json:"user"`
	Accounts []LinkedAccount `json:"accounts"`
	Sessions []SessionInfo   `json:"sessions"`
}

// OverviewForUser gathers the user's profile, linked accounts (oldest
// first), and sessions (newest first).
func (s *Service) OverviewForUser(ctx context.Context, userID uuid.UUID) (*Overview, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, auth.ErrUserNotFound
	}

	accounts, err := s.repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	sessions, err := s.repo.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	overview := &Overview{
		User:     summarize(*user),
		Accounts: make([]LinkedAccount, 0, len(accounts)),
		Sessions: make([]SessionInfo, 0, len(sessions)),
	}
	for _, a := range accounts {
		overview.Accounts = append(overview.Accounts, LinkedAccount{
			ID:          a.ID,
			Provider:    a.Provider,
			Email:       a.Email,
			ConnectedAt: a.CreatedAt,
		})
	}
	for i, sess := range sessions {
		overview.Sessions = append(overview.Sessions, SessionInfo{
			ID:        sess.ID,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			IsCurrent: i == 0,
		})
	}
	return overview, nil
}

// ProfileUpdate carries the editable profile fields. Nil means the field was
// absent from the request and stays untouched.
type ProfileUpdate struct {
	Name     *string `json:"name"`
	LastName *string `json:"lastName"`
}

// UpdateProfile applies the present fields and returns the updated summary.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*UserSummary, error) {
	user, err := s.repo.UpdateUserProfile(ctx, userID, auth.ProfilePatch{
		Name:     update.Name,
		LastName: update.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	summary := summarize(*user)
	return &summary, nil
}

func summarize(user auth.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		LastName: user.LastName,
		Picture:  user.Picture,
	}
}

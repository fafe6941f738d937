package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// Service drives the OAuth callback state machine: token exchange, profile
// normalization, identity resolution, linking, and session lifecycle.
type Service struct {
	registry   *Registry
	repo       Repository
	exchange   *ExchangeClient
	verifier   *IDTokenVerifier
	sessionTTL time.Duration
}

// NewService creates the auth Service.
func NewService(registry *Registry, repo Repository, exchange *ExchangeClient, verifier *IDTokenVerifier, sessionTTL time.Duration) *Service {
	if sessionTTL == 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Service{
		registry:   registry,
		repo:       repo,
		exchange:   exchange,
		verifier:   verifier,
		sessionTTL: sessionTTL,
	}
}

// AuthorizeURL builds the provider consent URL for the given redirect URI and
// encoded state.
func (s *Service) AuthorizeURL(provider Provider, redirectURI, state string) (string, error) {
	pc, ok := s.registry.Lookup(provider)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return pc.AuthCodeURL(redirectURI, state), nil
}

// CallbackInput carries one provider callback through the state machine.
type CallbackInput struct {
	Provider     Provider
	Code         string
	RedirectURI  string
	Mode         StateMode
	SessionToken string
}

// CallbackResult is the terminal success of a callback. SessionToken is newly
// issued in login mode and echoes the existing token in link mode.
type CallbackResult struct {
	User         User
	SessionToken string
}

// HandleCallback exchanges the code, fetches and normalizes the profile, and
// resolves the identity according to the flow mode.
func (s *Service) HandleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	pc, ok := s.registry.Lookup(in.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, in.Provider)
	}

	// Link mode requires a valid prior session; check before spending
	// upstream calls.
	var linkUser *User
	if in.Mode == ModeLink {
		if in.SessionToken == "" {
			return nil, ErrUnauthenticated
		}
		user, _, err := s.ValidateSession(ctx, in.SessionToken)
		if err != nil {
			return nil, err
		}
		linkUser = user
	}

	token, err := s.exchange.ExchangeCode(ctx, pc, in.Code, in.RedirectURI)
	if err != nil {
		return nil, err
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, pc, token.IDToken); err != nil {
			return nil, err
		}
	}

	rawProfile, rawJSON, err := s.exchange.FetchProfile(ctx, pc, token.AccessToken)
	if err != nil {
		return nil, err
	}

	profile, err := Normalize(pc.Provider, rawProfile)
	if err != nil {
		return nil, err
	}

	if in.Mode == ModeLink {
		return s.completeLink(ctx, pc, profile, token, rawJSON, linkUser, in.SessionToken)
	}
	return s.completeLogin(ctx, pc, profile, token, rawJSON)
}

// completeLogin resolves the identity and issues a fresh session. A duplicate
// account insert means a concurrent callback resolved the same identity
// first; the lookup is retried once so the second callback joins the winner.
func (s *Service) completeLogin(ctx context.Context, pc ProviderConfig, profile Profile, token TokenResult, rawJSON []byte) (*CallbackResult, error) {
	result, err := s.loginOnce(ctx, pc, profile, token, rawJSON)
	if errors.Is(err, ErrDuplicateAccount) {
		result, err = s.loginOnce(ctx, pc, profile, token, rawJSON)
	}
	return result, err
}

func (s *Service) loginOnce(ctx context.Context, pc ProviderConfig, profile Profile, token TokenResult, rawJSON []byte) (*CallbackResult, error) {
	var result *CallbackResult

	err := s.repo.Transact(ctx, func(tx Repository) error {
		account, err := tx.FindAccount(ctx, pc.Provider, profile.ProviderAccountID)
		if err != nil {
			return fmt.Errorf("find account: %w", err)
		}

		var user *User
		if account != nil {
			// Exact provider-identity match always wins; only the account's
			// volatile fields are refreshed, never the user's profile.
			user, err = tx.FindUserByID(ctx, account.UserID)
			if err != nil {
				return fmt.Errorf("find account owner: %w", err)
			}
			if user == nil {
				return fmt.Errorf("account %s/%s has no owner", pc.Provider, profile.ProviderAccountID)
			}
			if err := tx.UpdateAccountTokens(ctx, account.ID, tokenUpdate(profile, token, rawJSON)); err != nil {
				return fmt.Errorf("refresh account tokens: %w", err)
			}
		} else {
			if profile.Email != "" {
				user, err = tx.FindUserByEmail(ctx, profile.Email)
				if err != nil {
					return fmt.Errorf("find user by email: %w", err)
				}
			}

			if user == nil {
				created, err := tx.CreateUser(ctx, User{
					ID:       uuid.New(),
					Email:    profile.Email,
					Name:     profile.DisplayName(pc.Provider),
					LastName: profile.LastName,
					Picture:  profile.Picture,
				})
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				user = &created
			}

			if err := tx.CreateAccount(ctx, newAccount(user.ID, pc, profile, token, rawJSON)); err != nil {
				return err
			}
		}

		sessionToken, err := s.issueSession(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		result = &CallbackResult{User: *user, SessionToken: sessionToken}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// completeLink attaches the provider identity to the already-authenticated
// user. It never issues a new session.
func (s *Service) completeLink(ctx context.Context, pc ProviderConfig, profile Profile, token TokenResult, rawJSON []byte, user *User, sessionToken string) (*CallbackResult, error) {
	err := s.repo.Transact(ctx, func(tx Repository) error {
		accounts, err := tx.ListAccountsByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		for _, a := range accounts {
			if a.Provider == pc.Provider {
				// Already linked to this provider: idempotent no-op.
				return nil
			}
		}

		existing, err := tx.FindAccount(ctx, pc.Provider, profile.ProviderAccountID)
		if err != nil {
			return fmt.Errorf("find account: %w", err)
		}
		if existing != nil {
			if existing.UserID == user.ID {
				return nil
			}
			return ErrAccountAlreadyLinked
		}

		if err := tx.CreateAccount(ctx, newAccount(user.ID, pc, profile, token, rawJSON)); err != nil {
			return err
		}

		// A user created without any social login gets their profile seeded
		// from the first linked account.
		if len(accounts) == 0 {
			patch := ProfilePatch{}
			if profile.Name != "" {
				patch.Name = &profile.Name
			}
			if profile.LastName != "" {
				patch.LastName = &profile.LastName
			}
			if profile.Picture != "" {
				patch.Picture = &profile.Picture
			}
			if profile.Email != "" {
				patch.Email = &profile.Email
			}
			if _, err := tx.UpdateUserProfile(ctx, user.ID, patch); err != nil {
				return fmt.Errorf("seed user profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CallbackResult{User: *user, SessionToken: sessionToken}, nil
}

// Disconnect removes the user's account for the given provider. Removing a
// provider that is not linked is a silent no-op; removing the last remaining
// account is refused.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID, provider Provider) error {
	return s.repo.Transact(ctx, func(tx Repository) error {
		accounts, err := tx.ListAccountsByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}

		var target *Account
		for i := range accounts {
			if accounts[i].Provider == provider {
				target = &accounts[i]
				break
			}
		}
		if target == nil {
			return nil
		}
		if len(accounts) <= 1 {
			return ErrCannotRemoveLastAccount
		}

		return tx.DeleteAccount(ctx, target.ID)
	})
}

// ValidateSession resolves a bearer token to its user and session. Expired
// sessions are removed lazily on first sight.
func (s *Service) ValidateSession(ctx context.Context, token string) (*User, *Session, error) {
	if token == "" {
		return nil, nil, ErrUnauthenticated
	}

	session, user, err := s.repo.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || user == nil {
		return nil, nil, ErrInvalidSession
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, session.ID)
		return nil, nil, ErrSessionExpired
	}

	return user, session, nil
}

// RevokeSession deletes the session for the given token. Revoking an absent
// session is not an error.
func (s *Service) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, _, err := s.repo.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil
	}
	return s.repo.DeleteSession(ctx, session.ID)
}

// CleanupExpiredSessions removes all sessions past their expiry.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx)
}

func (s *Service) issueSession(ctx context.Context, tx Repository, userID uuid.UUID) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	now := time.Now()
	session := Session{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err := tx.CreateSession(ctx, session, hashToken(token)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func newAccount(userID uuid.UUID, pc ProviderConfig, profile Profile, token TokenResult, rawJSON []byte) Account {
	return Account{
		ID:                uuid.New(),
		UserID:            userID,
		Provider:          pc.Provider,
		ProviderType:      pc.Type,
		ProviderAccountID: profile.ProviderAccountID,
		Email:             profile.Email,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		IDToken:           token.IDToken,
		Scope:             token.Scope,
		TokenType:         token.TokenType,
		ExpiresAt:         token.ExpiresAt,
		RawProfile:        rawJSON,
	}
}

func tokenUpdate(profile Profile, token TokenResult, rawJSON []byte) AccountTokenUpdate {
	return AccountTokenUpdate{
		Email:        profile.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      token.IDToken,
		Scope:        token.Scope,
		TokenType:    token.TokenType,
		ExpiresAt:    token.ExpiresAt,
		RawProfile:   rawJSON,
	}
}

// hashToken returns the SHA-256 hash of the token as a hex string.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

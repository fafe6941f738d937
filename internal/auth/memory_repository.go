package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for local development and
// tests. Transact snapshots the maps and restores them when fn fails, so
// callers see the same all-or-nothing behavior as the SQL implementation.
type MemoryRepository struct {
	mu sync.Mutex
	st *memoryState
}

type memoryState struct {
	users    map[uuid.UUID]User
	accounts map[uuid.UUID]Account
	sessions map[uuid.UUID]Session
	// session id by token hash
	tokens map[string]uuid.UUID
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{st: newMemoryState()}
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:    make(map[uuid.UUID]User),
		accounts: make(map[uuid.UUID]Account),
		sessions: make(map[uuid.UUID]Session),
		tokens:   make(map[string]uuid.UUID),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

// Transact holds the repository lock for the duration of fn and rolls the
// state back if fn returns an error.
func (r *MemoryRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.st.clone()
	if err := fn(&memoryTx{st: r.st}); err != nil {
		r.st = snapshot
		return err
	}
	return nil
}

func (r *MemoryRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.findUserByID(id), nil
}

func (r *MemoryRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.findUserByEmail(email), nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.createUser(user)
}

func (r *MemoryRepository) UpdateUserProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.updateUserProfile(id, patch)
}

func (r *MemoryRepository) FindAccount(ctx context.Context, provider Provider, providerAccountID string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.findAccount(provider, providerAccountID), nil
}

func (r *MemoryRepository) ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.listAccountsByUser(userID), nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.createAccount(account)
}

func (r *MemoryRepository) UpdateAccountTokens(ctx context.Context, id uuid.UUID, update AccountTokenUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.updateAccountTokens(id, update)
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.st.accounts, id)
	return nil
}

func (r *MemoryRepository) CreateSession(ctx context.Context, session Session, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.createSession(session, tokenHash)
}

func (r *MemoryRepository) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, *User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, user := r.st.findSessionByTokenHash(tokenHash)
	return session, user, nil
}

func (r *MemoryRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.deleteSession(id)
	return nil
}

func (r *MemoryRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.deleteExpiredSessions(), nil
}

func (r *MemoryRepository) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.listSessionsByUser(userID), nil
}

// memoryTx is the view handed to Transact callbacks. The outer repository
// already holds the lock, so methods here touch the state directly.
type memoryTx struct {
	st *memoryState
}

func (t *memoryTx) Transact(ctx context.Context, fn func(Repository) error) error {
	return fn(t)
}

func (t *memoryTx) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return t.st.findUserByID(id), nil
}

func (t *memoryTx) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return t.st.findUserByEmail(email), nil
}

func (t *memoryTx) CreateUser(ctx context.Context, user User) (User, error) {
	return t.st.createUser(user)
}

func (t *memoryTx) UpdateUserProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error) {
	return t.st.updateUserProfile(id, patch)
}

func (t *memoryTx) FindAccount(ctx context.Context, provider Provider, providerAccountID string) (*Account, error) {
	return t.st.findAccount(provider, providerAccountID), nil
}

func (t *memoryTx) ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]Account, error) {
	return t.st.listAccountsByUser(userID), nil
}

func (t *memoryTx) CreateAccount(ctx context.Context, account Account) error {
	return t.st.createAccount(account)
}

func (t *memoryTx) UpdateAccountTokens(ctx context.Context, id uuid.UUID, update AccountTokenUpdate) error {
	return t.st.updateAccountTokens(id, update)
}

func (t *memoryTx) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	delete(t.st.accounts, id)
	return nil
}

func (t *memoryTx) CreateSession(ctx context.Context, session Session, tokenHash string) error {
	return t.st.createSession(session, tokenHash)
}

func (t *memoryTx) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, *User, error) {
	session, user := t.st.findSessionByTokenHash(tokenHash)
	return session, user, nil
}

func (t *memoryTx) DeleteSession(ctx context.Context, id uuid.UUID) error {
	t.st.deleteSession(id)
	return nil
}

func (t *memoryTx) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return t.st.deleteExpiredSessions(), nil
}

func (t *memoryTx) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	return t.st.listSessionsByUser(userID), nil
}

func (s *memoryState) findUserByID(id uuid.UUID) *User {
	if user, ok := s.users[id]; ok {
		return &user
	}
	return nil
}

func (s *memoryState) findUserByEmail(email string) *User {
	if email == "" {
		return nil
	}
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u
		}
	}
	return nil
}

func (s *memoryState) createUser(user User) (User, error) {
	if user.Email != "" && s.findUserByEmail(user.Email) != nil {
		return User{}, fmt.Errorf("user email %q already exists", user.Email)
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *memoryState) updateUserProfile(id uuid.UUID, patch ProfilePatch) (*User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Picture != nil {
		user.Picture = *patch.Picture
	}
	user.UpdatedAt = time.Now()

	s.users[id] = user
	return &user, nil
}

func (s *memoryState) findAccount(provider Provider, providerAccountID string) *Account {
	for _, account := range s.accounts {
		if account.Provider == provider && account.ProviderAccountID == providerAccountID {
			a := account
			return &a
		}
	}
	return nil
}

func (s *memoryState) listAccountsByUser(userID uuid.UUID) []Account {
	accounts := make([]Account, 0)
	for _, account := range s.accounts {
		if account.UserID == userID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts
}

func (s *memoryState) createAccount(account Account) error {
	if s.findAccount(account.Provider, account.ProviderAccountID) != nil {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateAccount, account.Provider, account.ProviderAccountID)
	}

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = account
	return nil
}

func (s *memoryState) updateAccountTokens(id uuid.UUID, update AccountTokenUpdate) error {
	account, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}

	account.Email = update.Email
	account.AccessToken = update.AccessToken
	account.RefreshToken = update.RefreshToken
	account.IDToken = update.IDToken
	account.Scope = update.Scope
	account.TokenType = update.TokenType
	account.ExpiresAt = update.ExpiresAt
	account.RawProfile = update.RawProfile
	account.UpdatedAt = time.Now()

	s.accounts[id] = account
	return nil
}

func (s *memoryState) createSession(session Session, tokenHash string) error {
	s.sessions[session.ID] = session
	s.tokens[tokenHash] = session.ID
	return nil
}

func (s *memoryState) findSessionByTokenHash(tokenHash string) (*Session, *User) {
	id, ok := s.tokens[tokenHash]
	if !ok {
		return nil, nil
	}
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	user := s.findUserByID(session.UserID)
	if user == nil {
		return nil, nil
	}
	return &session, user
}

func (s *memoryState) deleteSession(id uuid.UUID) {
	delete(s.sessions, id)
	for hash, sid := range s.tokens {
		if sid == id {
			delete(s.tokens, hash)
		}
	}
}

func (s *memoryState) deleteExpiredSessions() int64 {
	now := time.Now()
	var removed int64
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			s.deleteSession(id)
			removed++
		}
	}
	return removed
}

func (s *memoryState) listSessionsByUser(userID uuid.UUID) []Session {
	sessions := make([]Session, 0)
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions
}

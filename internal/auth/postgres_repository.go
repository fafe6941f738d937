package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// queryer is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx, letting one
// repository type serve both direct and transactional access.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
	q  queryer
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

// Transact runs fn against a repository view bound to one database
// transaction. Nested calls reuse the outer transaction.
func (r *PostgresRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&PostgresRepository{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const userColumns = `id, COALESCE(email, '') AS email, name, last_name, picture, created_at, updated_at`

// FindUserByID looks up a user by primary key.
func (r *PostgresRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var row userRow
	if err := r.q.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toUser(), nil
}

// FindUserByEmail looks up a user by email address.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var row userRow
	if err := r.q.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toUser(), nil
}

// CreateUser inserts a new user. An empty email is stored as NULL so users
// without one never collide on the unique constraint.
func (r *PostgresRepository) CreateUser(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (id, email, name, last_name, picture, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $6)
	`

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.q.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.LastName, user.Picture, now,
	); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUserProfile applies the non-nil fields of patch and returns the
// updated user.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error) {
	set := []string{"updated_at = now()"}
	args := []interface{}{id}
	next := 2

	addField := func(expr string, value string) {
		set = append(set, fmt.Sprintf(expr, next))
		args = append(args, value)
		next++
	}

	if patch.Email != nil {
		addField("email = NULLIF($%d, '')", *patch.Email)
	}
	if patch.Name != nil {
		addField("name = $%d", *patch.Name)
	}
	if patch.LastName != nil {
		addField("last_name = $%d", *patch.LastName)
	}
	if patch.Picture != nil {
		addField("picture = $%d", *patch.Picture)
	}

	query := `UPDATE users SET ` + strings.Join(set, ", ") + ` WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	user, err := r.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

const accountColumns = `
	id, user_id, provider, provider_type, provider_account_id,
	COALESCE(email, '') AS email, access_token, refresh_token, id_token,
	scope, token_type, expires_at, raw_profile, created_at, updated_at`

// FindAccount looks up an account by its globally unique provider identity.
func (r *PostgresRepository) FindAccount(ctx context.Context, provider Provider, providerAccountID string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE provider = $1 AND provider_account_id = $2`

	var row accountRow
	if err := r.q.GetContext(ctx, &row, query, provider, providerAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toAccount(), nil
}

// ListAccountsByUser returns the user's linked accounts, oldest first.
func (r *PostgresRepository) ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at ASC`

	var rows []accountRow
	if err := r.q.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].toAccount())
	}
	return accounts, nil
}

// CreateAccount inserts a new account row. A unique-constraint hit on
// (provider, provider_account_id) surfaces as ErrDuplicateAccount.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account Account) error {
	const query = `
		INSERT INTO accounts (
			id, user_id, provider, provider_type, provider_account_id, email,
			access_token, refresh_token, id_token, scope, token_type, expires_at,
			raw_profile, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`

	_, err := r.q.ExecContext(ctx, query,
		account.ID, account.UserID, account.Provider, account.ProviderType,
		account.ProviderAccountID, account.Email, account.AccessToken,
		account.RefreshToken, account.IDToken, account.Scope, account.TokenType,
		account.ExpiresAt, rawProfileValue(account.RawProfile), time.Now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateAccount, account.Provider, account.ProviderAccountID)
		}
		return err
	}
	return nil
}

// UpdateAccountTokens refreshes an account's volatile fields.
func (r *PostgresRepository) UpdateAccountTokens(ctx context.Context, id uuid.UUID, update AccountTokenUpdate) error {
	const query = `
		UPDATE accounts
		SET email = NULLIF($2, ''), access_token = $3, refresh_token = $4,
			id_token = $5, scope = $6, token_type = $7, expires_at = $8,
			raw_profile = $9, updated_at = now()
		WHERE id = $1
	`

	_, err := r.q.ExecContext(ctx, query,
		id, update.Email, update.AccessToken, update.RefreshToken,
		update.IDToken, update.Scope, update.TokenType, update.ExpiresAt,
		rawProfileValue(update.RawProfile),
	)
	return err
}

// DeleteAccount removes an account row.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

// CreateSession inserts a new session; only the token hash is stored.
func (r *PostgresRepository) CreateSession(ctx context.Context, session Session, tokenHash string) error {
	const query = `
		INSERT INTO user_sessions (id, user_id, session_token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.ExecContext(ctx, query,
		session.ID, session.UserID, tokenHash, session.CreatedAt, session.ExpiresAt,
	)
	return err
}

// FindSessionByTokenHash looks up a session and its owning user.
func (r *PostgresRepository) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, *User, error) {
	const query = `
		SELECT
			s.id, s.user_id, s.created_at, s.expires_at,
			u.id AS owner_id, COALESCE(u.email, '') AS email, u.name, u.last_name, u.picture,
			u.created_at AS user_created_at, u.updated_at AS user_updated_at
		FROM user_sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.session_token_hash = $1
	`

	var row sessionUserRow
	if err := r.q.GetContext(ctx, &row, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return row.toSession(), row.toUser(), nil
}

// DeleteSession removes a session row.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	return err
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListSessionsByUser returns the user's sessions, newest first.
func (r *PostgresRepository) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	const query = `
		SELECT id, user_id, created_at, expires_at
		FROM user_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var rows []sessionRow
	if err := r.q.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, Session(row))
	}
	return sessions, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// rawProfileValue keeps NULL for absent snapshots instead of an empty JSONB.
func rawProfileValue(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

type userRow struct {
	ID        uuid.UUID `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	LastName  string    `db:"last_name"`
	Picture   string    `db:"picture"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *userRow) toUser() *User {
	return &User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		LastName:  r.LastName,
		Picture:   r.Picture,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type accountRow struct {
	ID                uuid.UUID `db:"id"`
	UserID            uuid.UUID `db:"user_id"`
	Provider          Provider  `db:"provider"`
	ProviderType      ProviderType `db:"provider_type"`
	ProviderAccountID string    `db:"provider_account_id"`
	Email             string    `db:"email"`
	AccessToken       string    `db:"access_token"`
	RefreshToken      string    `db:"refresh_token"`
	IDToken           string    `db:"id_token"`
	Scope             string    `db:"scope"`
	TokenType         string    `db:"token_type"`
	ExpiresAt         int64     `db:"expires_at"`
	RawProfile        []byte    `db:"raw_profile"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r *accountRow) toAccount() *Account {
	return &Account{
		ID:                r.ID,
		UserID:            r.UserID,
		Provider:          r.Provider,
		ProviderType:      r.ProviderType,
		ProviderAccountID: r.ProviderAccountID,
		Email:             r.Email,
		AccessToken:       r.AccessToken,
		RefreshToken:      r.RefreshToken,
		IDToken:           r.IDToken,
		Scope:             r.Scope,
		TokenType:         r.TokenType,
		ExpiresAt:         r.ExpiresAt,
		RawProfile:        r.RawProfile,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type sessionRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

type sessionUserRow struct {
	// Session fields
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`

	// User fields
	OwnerID       uuid.UUID `db:"owner_id"`
	Email         string    `db:"email"`
	Name          string    `db:"name"`
	LastName      string    `db:"last_name"`
	Picture       string    `db:"picture"`
	UserCreatedAt time.Time `db:"user_created_at"`
	UserUpdatedAt time.Time `db:"user_updated_at"`
}

func (r *sessionUserRow) toSession() *Session {
	return &Session{
		ID:        r.ID,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func (r *sessionUserRow) toUser() *User {
	return &User{
		ID:        r.OwnerID,
		Email:     r.Email,
		Name:      r.Name,
		LastName:  r.LastName,
		Picture:   r.Picture,
		CreatedAt: r.UserCreatedAt,
		UpdatedAt: r.UserUpdatedAt,
	}
}

package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

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

// FindStats loads a user's stat row.
func (r *PostgresRepository) FindStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	const query = `
		SELECT user_id, score, current_win_streak, total_wins, total_losses,
			total_draws, created_at, updated_at
		FROM tictactoe_stats
		WHERE user_id = $1
	`

	var row statsRow
	if err := r.q.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	stats := row.toStats()
	return &stats, nil
}

// SaveStats upserts a user's stat row.
func (r *PostgresRepository) SaveStats(ctx context.Context, stats Stats) error {
	const query = `
		INSERT INTO tictactoe_stats (
			user_id, score, current_win_streak, total_wins, total_losses,
			total_draws, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			score = EXCLUDED.score,
			current_win_streak = EXCLUDED.current_win_streak,
			total_wins = EXCLUDED.total_wins,
			total_losses = EXCLUDED.total_losses,
			total_draws = EXCLUDED.total_draws,
			updated_at = now()
	`

	_, err := r.q.ExecContext(ctx, query,
		stats.UserID, stats.Score, stats.CurrentWinStreak,
		stats.TotalWins, stats.TotalLosses, stats.TotalDraws,
	)
	return err
}

// TopStats returns the highest-scoring stat rows with their owners.
func (r *PostgresRepository) TopStats(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	const query = `
		SELECT
			s.user_id, s.score, s.total_wins, s.total_losses, s.total_draws,
			u.id AS owner_id, COALESCE(u.email, '') AS email, u.name,
			u.last_name, u.picture
		FROM tictactoe_stats s
		JOIN users u ON s.user_id = u.id
		ORDER BY s.score DESC
		LIMIT $1
	`

	var rows []leaderboardRow
	if err := r.q.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

// CreateGame inserts the game row and its moves.
func (r *PostgresRepository) CreateGame(ctx context.Context, game Game) error {
	const gameQuery = `
		INSERT INTO tictactoe_games (
			id, user_id, result, starting_side, score_delta, created_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.q.ExecContext(ctx, gameQuery,
		game.ID, game.UserID, game.Result, game.StartingSide,
		game.ScoreDelta, game.CreatedAt, game.FinishedAt,
	); err != nil {
		return err
	}

	const moveQuery = `
		INSERT INTO tictactoe_moves (id, game_id, move_order, player, position)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, m := range game.Moves {
		if _, err := r.q.ExecContext(ctx, moveQuery,
			m.ID, m.GameID, m.MoveOrder, m.Player, m.Position,
		); err != nil {
			return err
		}
	}
	return nil
}

// FindGameByID loads one game with its moves in order.
func (r *PostgresRepository) FindGameByID(ctx context.Context, id uuid.UUID) (*Game, error) {
	const query = `
		SELECT id, user_id, result, starting_side, score_delta, created_at, finished_at
		FROM tictactoe_games
		WHERE id = $1
	`

	var row gameRow
	if err := r.q.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	g := row.toGame()
	moves, err := r.movesForGames(ctx, []uuid.UUID{g.ID})
	if err != nil {
		return nil, err
	}
	g.Moves = moves[g.ID]
	return &g, nil
}

// ListGamesByUser returns one page of the user's games, newest first, with
// moves attached.
func (r *PostgresRepository) ListGamesByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Game, error) {
	const query = `
		SELECT id, user_id, result, starting_side, score_delta, created_at, finished_at
		FROM tictactoe_games
		WHERE user_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`

	var rows []gameRow
	if err := r.q.SelectContext(ctx, &rows, query, userID, offset, limit); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Game{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	moves, err := r.movesForGames(ctx, ids)
	if err != nil {
		return nil, err
	}

	games := make([]Game, 0, len(rows))
	for _, row := range rows {
		g := row.toGame()
		g.Moves = moves[g.ID]
		games = append(games, g)
	}
	return games, nil
}

// CountGamesByUser counts the user's recorded games.
func (r *PostgresRepository) CountGamesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM tictactoe_games WHERE user_id = $1`, userID)
	return count, err
}

func (r *PostgresRepository) movesForGames(ctx context.Context, gameIDs []uuid.UUID) (map[uuid.UUID][]Move, error) {
	query, args, err := sqlx.In(`
		SELECT id, game_id, move_order, player, position
		FROM tictactoe_moves
		WHERE game_id IN (?)
		ORDER BY game_id, move_order ASC
	`, gameIDs)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var rows []moveRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	moves := make(map[uuid.UUID][]Move, len(gameIDs))
	for _, row := range rows {
		moves[row.GameID] = append(moves[row.GameID], Move(row))
	}
	return moves, nil
}

type statsRow struct {
	UserID           uuid.UUID `db:"user_id"`
	Score            int       `db:"score"`
	CurrentWinStreak int       `db:"current_win_streak"`
	TotalWins        int       `db:"total_wins"`
	TotalLosses      int       `db:"total_losses"`
	TotalDraws       int       `db:"total_draws"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r statsRow) toStats() Stats {
	return Stats{
		UserID:           r.UserID,
		Score:            r.Score,
		CurrentWinStreak: r.CurrentWinStreak,
		TotalWins:        r.TotalWins,
		TotalLosses:      r.TotalLosses,
		TotalDraws:       r.TotalDraws,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type leaderboardRow struct {
	UserID      uuid.UUID `db:"user_id"`
	Score       int       `db:"score"`
	TotalWins   int       `db:"total_wins"`
	TotalLosses int       `db:"total_losses"`
	TotalDraws  int       `db:"total_draws"`
	OwnerID     uuid.UUID `db:"owner_id"`
	Email       string    `db:"email"`
	Name        string    `db:"name"`
	LastName    string    `db:"last_name"`
	Picture     string    `db:"picture"`
}

func (r leaderboardRow) toEntry() LeaderboardEntry {
	return LeaderboardEntry{
		UserID:      r.UserID,
		Score:       r.Score,
		TotalWins:   r.TotalWins,
		TotalLosses: r.TotalLosses,
		TotalDraws:  r.TotalDraws,
		User: UserSummary{
			ID:       r.OwnerID,
			Email:    r.Email,
			Name:     r.Name,
			LastName: r.LastName,
			Picture:  r.Picture,
		},
	}
}

type gameRow struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	Result       Result    `db:"result"`
	StartingSide Player    `db:"starting_side"`
	ScoreDelta   int       `db:"score_delta"`
	CreatedAt    time.Time `db:"created_at"`
	FinishedAt   time.Time `db:"finished_at"`
}

func (r gameRow) toGame() Game {
	return Game{
		ID:           r.ID,
		UserID:       r.UserID,
		Result:       r.Result,
		StartingSide: r.StartingSide,
		ScoreDelta:   r.ScoreDelta,
		CreatedAt:    r.CreatedAt,
		FinishedAt:   r.FinishedAt,
	}
}

type moveRow struct {
	ID        uuid.UUID `db:"id"`
	GameID    uuid.UUID `db:"game_id"`
	MoveOrder int       `db:"move_order"`
	Player    Player    `db:"player"`
	Position  int       `db:"position"`
}

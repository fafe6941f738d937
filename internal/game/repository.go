package game

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines game, move, and stat persistence. Transact runs fn
// against a view bound to one atomic unit.
type Repository interface {
	Transact(ctx context.Context, fn func(Repository) error) error

	FindStats(ctx context.Context, userID uuid.UUID) (*Stats, error)
	SaveStats(ctx context.Context, stats Stats) error
	TopStats(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// CreateGame persists the game together with its moves.
	CreateGame(ctx context.Context, game Game) error
	FindGameByID(ctx context.Context, id uuid.UUID) (*Game, error)
	ListGamesByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Game, error)
	CountGamesByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

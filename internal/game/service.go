package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	winStreakBonusAt = 3

	// DefaultPageSize applies when the history request names no page size.
	DefaultPageSize = 10
	maxPageSize     = 50

	// DefaultLeaderboardLimit applies when the leaderboard request names no
	// limit; it is also the hard cap.
	DefaultLeaderboardLimit = 100
)

// Service records finished games and serves stats, history, and the
// leaderboard.
type Service struct {
	repo Repository
}

// NewService creates the game Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// MoveInput is one submitted move.
type MoveInput struct {
	MoveOrder int    `json:"moveOrder"`
	Player    Player `json:"player"`
	Position  int    `json:"position"`
}

// RecordGameInput is a finished game as submitted by the client.
type RecordGameInput struct {
	Result         Result      `json:"result"`
	StartingPlayer Player      `json:"startingPlayer"`
	Moves          []MoveInput `json:"moves"`
}

// RecordedGame is the outcome of recording a game.
type RecordedGame struct {
	Game  Game
	Stats Stats
}

func (in RecordGameInput) validate() error {
	if !in.Result.Valid() {
		return fmt.Errorf("%w: result must be WIN, LOSS, or DRAW", ErrValidation)
	}
	if !in.StartingPlayer.Valid() {
		return fmt.Errorf("%w: startingPlayer must be HUMAN or BOT", ErrValidation)
	}
	if len(in.Moves) == 0 {
		return fmt.Errorf("%w: at least one move is required", ErrValidation)
	}
	if len(in.Moves) > 9 {
		return fmt.Errorf("%w: a game has at most 9 moves", ErrValidation)
	}

	seen := make(map[int]bool, len(in.Moves))
	for _, m := range in.Moves {
		if m.MoveOrder < 1 {
			return fmt.Errorf("%w: moveOrder must be at least 1", ErrValidation)
		}
		if seen[m.MoveOrder] {
			return fmt.Errorf("%w: duplicate moveOrder %d", ErrValidation, m.MoveOrder)
		}
		seen[m.MoveOrder] = true
		if !m.Player.Valid() {
			return fmt.Errorf("%w: move player must be HUMAN or BOT", ErrValidation)
		}
		if m.Position < 0 || m.Position > 8 {
			return fmt.Errorf("%w: position must be between 0 and 8", ErrValidation)
		}
	}
	return nil
}

// RecordGame validates the submission, applies the scoring rules to the
// user's stats, and persists the game with its moves, all in one
// transaction.
func (s *Service) RecordGame(ctx context.Context, userID uuid.UUID, in RecordGameInput) (*RecordedGame, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var recorded RecordedGame
	err := s.repo.Transact(ctx, func(tx Repository) error {
		stats, err := tx.FindStats(ctx, userID)
		if err != nil {
			return fmt.Errorf("find stats: %w", err)
		}
		if stats == nil {
			stats = &Stats{UserID: userID}
		}

		delta := applyResult(stats, in.Result)
		if err := tx.SaveStats(ctx, *stats); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}

		now := time.Now()
		g := Game{
			ID:           uuid.New(),
			UserID:       userID,
			Result:       in.Result,
			StartingSide: in.StartingPlayer,
			ScoreDelta:   delta,
			CreatedAt:    now,
			FinishedAt:   now,
		}
		for _, m := range in.Moves {
			g.Moves = append(g.Moves, Move{
				ID:        uuid.New(),
				GameID:    g.ID,
				MoveOrder: m.MoveOrder,
				Player:    m.Player,
				Position:  m.Position,
			})
		}

		if err := tx.CreateGame(ctx, g); err != nil {
			return fmt.Errorf("create game: %w", err)
		}

		recorded = RecordedGame{Game: g, Stats: *stats}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &recorded, nil
}

// applyResult mutates stats for one game outcome and returns the score
// delta. The third straight win pays a bonus point and restarts the count.
func applyResult(stats *Stats, result Result) int {
	delta := 0
	switch result {
	case ResultWin:
		delta++
		stats.CurrentWinStreak++
		stats.TotalWins++
		if stats.CurrentWinStreak >= winStreakBonusAt {
			delta++
			stats.CurrentWinStreak = 0
		}
	case ResultLoss:
		delta--
		stats.CurrentWinStreak = 0
		stats.TotalLosses++
	case ResultDraw:
		stats.CurrentWinStreak = 0
		stats.TotalDraws++
	}
	stats.Score += delta
	return delta
}

// MyStats returns the user's stats, or the zero sheet when they never
// played.
func (s *Service) MyStats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	stats, err := s.repo.FindStats(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("find stats: %w", err)
	}
	if stats == nil {
		return Stats{UserID: userID}, nil
	}
	return *stats, nil
}

// Leaderboard returns the top stat rows ordered by score descending.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > DefaultLeaderboardLimit {
		limit = DefaultLeaderboardLimit
	}
	return s.repo.TopStats(ctx, limit)
}

// GameForReplay returns one of the user's games with its moves. Games that
// do not exist or belong to someone else are both not found.
func (s *Service) GameForReplay(ctx context.Context, userID, gameID uuid.UUID) (*Game, error) {
	g, err := s.repo.FindGameByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	if g == nil || g.UserID != userID {
		return nil, ErrNotFound
	}
	return g, nil
}

// UserGames returns one page of the user's history, newest first. Page and
// pageSize are clamped rather than rejected.
func (s *Service) UserGames(ctx context.Context, userID uuid.UUID, page, pageSize int) (*GamePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total, err := s.repo.CountGamesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count games: %w", err)
	}

	items, err := s.repo.ListGamesByUser(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	totalPages := int64(1)
	if total > 0 {
		totalPages = (total + int64(pageSize) - 1) / int64(pageSize)
	}

	return &GamePage{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

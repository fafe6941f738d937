package game

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrValidation marks a structurally invalid game submission.
	ErrValidation = errors.New("invalid game")
	// ErrNotFound marks a game the caller cannot see.
	ErrNotFound = errors.New("game not found")
)

// Result is the outcome of a finished game from the human player's side.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
	ResultDraw Result = "DRAW"
)

// Valid reports whether r is one of the three known outcomes.
func (r Result) Valid() bool {
	return r == ResultWin || r == ResultLoss || r == ResultDraw
}

// Player identifies who placed a move.
type Player string

const (
	PlayerHuman Player = "HUMAN"
	PlayerBot   Player = "BOT"
)

// Valid reports whether p is a known player.
func (p Player) Valid() bool {
	return p == PlayerHuman || p == PlayerBot
}

// Move is one placement on the 3x3 board. Position counts cells left to
// right, top to bottom, starting at 0.
type Move struct {
	ID        uuid.UUID `json:"id"`
	GameID    uuid.UUID `json:"gameId"`
	MoveOrder int       `json:"moveOrder"`
	Player    Player    `json:"player"`
	Position  int       `json:"position"`
}

// Game is one finished game with its ordered moves.
type Game struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Result       Result    `json:"result"`
	StartingSide Player    `json:"startingSide"`
	ScoreDelta   int       `json:"scoreDelta"`
	Moves        []Move    `json:"moves"`
	CreatedAt    time.Time `json:"createdAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// Stats is a user's accumulated score sheet. The zero value is what a user
// who never played looks like.
type Stats struct {
	UserID           uuid.UUID `json:"userId"`
	Score            int       `json:"score"`
	CurrentWinStreak int       `json:"currentWinStreak"`
	TotalWins        int       `json:"totalWins"`
	TotalLosses      int       `json:"totalLosses"`
	TotalDraws       int       `json:"totalDraws"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// UserSummary is the public slice of a user shown on the leaderboard.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	LastName string    `json:"lastName"`
	Picture  string    `json:"picture"`
}

// LeaderboardEntry pairs a stat row with its owner.
type LeaderboardEntry struct {
	UserID      uuid.UUID   `json:"userId"`
	Score       int         `json:"score"`
	TotalWins   int         `json:"totalWins"`
	TotalLosses int         `json:"totalLosses"`
	TotalDraws  int         `json:"totalDraws"`
	User        UserSummary `json:"user"`
}

// Pagination describes one page of a user's game history.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
}

// GamePage is a page of games plus its pagination block.
type GamePage struct {
	Items      []Game     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

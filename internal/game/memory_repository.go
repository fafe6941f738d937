package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserLookup resolves a user id to its leaderboard summary. The ok result is
// false when the user does not exist.
type UserLookup func(ctx context.Context, id uuid.UUID) (UserSummary, bool)

// MemoryRepository is an in-memory Repository for local development and
// tests.
type MemoryRepository struct {
	mu    sync.Mutex
	st    *memoryState
	users UserLookup
}

type memoryState struct {
	stats map[uuid.UUID]Stats
	games map[uuid.UUID]Game
}

// NewMemoryRepository creates an empty MemoryRepository. users may be nil,
// in which case leaderboard entries carry empty user summaries.
func NewMemoryRepository(users UserLookup) *MemoryRepository {
	return &MemoryRepository{st: newMemoryState(), users: users}
}

func newMemoryState() *memoryState {
	return &memoryState{
		stats: make(map[uuid.UUID]Stats),
		games: make(map[uuid.UUID]Game),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.stats {
		c.stats[k] = v
	}
	for k, v := range s.games {
		c.games[k] = v
	}
	return c
}

// Transact holds the repository lock for the duration of fn and rolls the
// state back if fn returns an error.
func (r *MemoryRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.st.clone()
	if err := fn(&memoryTx{st: r.st, users: r.users}); err != nil {
		r.st = snapshot
		return err
	}
	return nil
}

func (r *MemoryRepository) FindStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.findStats(userID), nil
}

func (r *MemoryRepository) SaveStats(ctx context.Context, stats Stats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.saveStats(stats)
	return nil
}

func (r *MemoryRepository) TopStats(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.topStats(ctx, limit, r.users), nil
}

func (r *MemoryRepository) CreateGame(ctx context.Context, game Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.games[game.ID] = game
	return nil
}

func (r *MemoryRepository) FindGameByID(ctx context.Context, id uuid.UUID) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.findGameByID(id), nil
}

func (r *MemoryRepository) ListGamesByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.listGamesByUser(userID, offset, limit), nil
}

func (r *MemoryRepository) CountGamesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.countGamesByUser(userID), nil
}

// memoryTx is the view handed to Transact callbacks while the outer lock is
// held.
type memoryTx struct {
	st    *memoryState
	users UserLookup
}

func (t *memoryTx) Transact(ctx context.Context, fn func(Repository) error) error {
	return fn(t)
}

func (t *memoryTx) FindStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	return t.st.findStats(userID), nil
}

func (t *memoryTx) SaveStats(ctx context.Context, stats Stats) error {
	t.st.saveStats(stats)
	return nil
}

func (t *memoryTx) TopStats(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	return t.st.topStats(ctx, limit, t.users), nil
}

func (t *memoryTx) CreateGame(ctx context.Context, game Game) error {
	t.st.games[game.ID] = game
	return nil
}

func (t *memoryTx) FindGameByID(ctx context.Context, id uuid.UUID) (*Game, error) {
	return t.st.findGameByID(id), nil
}

func (t *memoryTx) ListGamesByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Game, error) {
	return t.st.listGamesByUser(userID, offset, limit), nil
}

func (t *memoryTx) CountGamesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return t.st.countGamesByUser(userID), nil
}

func (s *memoryState) findStats(userID uuid.UUID) *Stats {
	if stats, ok := s.stats[userID]; ok {
		return &stats
	}
	return nil
}

func (s *memoryState) saveStats(stats Stats) {
	now := time.Now()
	if existing, ok := s.stats[stats.UserID]; ok {
		stats.CreatedAt = existing.CreatedAt
	} else {
		stats.CreatedAt = now
	}
	stats.UpdatedAt = now
	s.stats[stats.UserID] = stats
}

func (s *memoryState) topStats(ctx context.Context, limit int, users UserLookup) []LeaderboardEntry {
	all := make([]Stats, 0, len(s.stats))
	for _, stats := range s.stats {
		all = append(all, stats)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	if len(all) > limit {
		all = all[:limit]
	}

	entries := make([]LeaderboardEntry, 0, len(all))
	for _, stats := range all {
		entry := LeaderboardEntry{
			UserID:      stats.UserID,
			Score:       stats.Score,
			TotalWins:   stats.TotalWins,
			TotalLosses: stats.TotalLosses,
			TotalDraws:  stats.TotalDraws,
		}
		if users != nil {
			if summary, ok := users(ctx, stats.UserID); ok {
				entry.User = summary
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func (s *memoryState) findGameByID(id uuid.UUID) *Game {
	if g, ok := s.games[id]; ok {
		g.Moves = sortedMoves(g.Moves)
		return &g
	}
	return nil
}

func (s *memoryState) listGamesByUser(userID uuid.UUID, offset, limit int) []Game {
	all := make([]Game, 0)
	for _, g := range s.games {
		if g.UserID == userID {
			g.Moves = sortedMoves(g.Moves)
			all = append(all, g)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []Game{}
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *memoryState) countGamesByUser(userID uuid.UUID) int64 {
	var count int64
	for _, g := range s.games {
		if g.UserID == userID {
			count++
		}
	}
	return count
}

func sortedMoves(moves []Move) []Move {
	sorted := make([]Move, len(moves))
	copy(sorted, moves)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MoveOrder < sorted[j].MoveOrder })
	return sorted
}

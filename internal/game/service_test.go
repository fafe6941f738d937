package game

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func recordInput(result Result) RecordGameInput {
	return RecordGameInput{
		Result:         result,
		StartingPlayer: PlayerHuman,
		Moves: []MoveInput{
			{MoveOrder: 1, Player: PlayerHuman, Position: 4},
			{MoveOrder: 2, Player: PlayerBot, Position: 0},
			{MoveOrder: 3, Player: PlayerHuman, Position: 8},
		},
	}
}

func TestRecordGameWinScoring(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	userID := uuid.New()

	recorded, err := svc.RecordGame(context.Background(), userID, recordInput(ResultWin))
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if recorded.Game.ScoreDelta != 1 {
		t.Fatalf("expected delta 1, got %d", recorded.Game.ScoreDelta)
	}
	if recorded.Stats.Score != 1 || recorded.Stats.CurrentWinStreak != 1 || recorded.Stats.TotalWins != 1 {
		t.Fatalf("unexpected stats: %+v", recorded.Stats)
	}
	if len(recorded.Game.Moves) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(recorded.Game.Moves))
	}
}

func TestRecordGameThirdWinPaysBonus(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	userID := uuid.New()

	var last *RecordedGame
	for i := 0; i < 3; i++ {
		recorded, err := svc.RecordGame(context.Background(), userID, recordInput(ResultWin))
		if err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
		last = recorded
	}

	// 1 + 1 + (1 + bonus 1) and the streak starts over.
	if last.Game.ScoreDelta != 2 {
		t.Fatalf("expected delta 2 on third straight win, got %d", last.Game.ScoreDelta)
	}
	if last.Stats.Score != 4 {
		t.Fatalf("expected score 4, got %d", last.Stats.Score)
	}
	if last.Stats.CurrentWinStreak != 0 {
		t.Fatalf("expected streak reset after bonus, got %d", last.Stats.CurrentWinStreak)
	}
	if last.Stats.TotalWins != 3 {
		t.Fatalf("expected 3 total wins, got %d", last.Stats.TotalWins)
	}
}

func TestRecordGameLossAndDraw(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	userID := uuid.New()

	if _, err := svc.RecordGame(context.Background(), userID, recordInput(ResultWin)); err != nil {
		t.Fatalf("win failed: %v", err)
	}

	loss, err := svc.RecordGame(context.Background(), userID, recordInput(ResultLoss))
	if err != nil {
		t.Fatalf("loss failed: %v", err)
	}
	if loss.Game.ScoreDelta != -1 || loss.Stats.Score != 0 || loss.Stats.CurrentWinStreak != 0 {
		t.Fatalf("unexpected stats after loss: %+v", loss.Stats)
	}

	if _, err := svc.RecordGame(context.Background(), userID, recordInput(ResultWin)); err != nil {
		t.Fatalf("win failed: %v", err)
	}

	draw, err := svc.RecordGame(context.Background(), userID, recordInput(ResultDraw))
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}
	if draw.Game.ScoreDelta != 0 {
		t.Fatalf("draw must not change the score, got delta %d", draw.Game.ScoreDelta)
	}
	if draw.Stats.Score != 1 || draw.Stats.CurrentWinStreak != 0 || draw.Stats.TotalDraws != 1 {
		t.Fatalf("unexpected stats after draw: %+v", draw.Stats)
	}
}

func TestRecordGameValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	userID := uuid.New()

	cases := map[string]RecordGameInput{
		"bad result": {
			Result: "TIE", StartingPlayer: PlayerHuman,
			Moves: []MoveInput{{MoveOrder: 1, Player: PlayerHuman, Position: 0}},
		},
		"bad starting player": {
			Result: ResultWin, StartingPlayer: "CAT",
			Moves: []MoveInput{{MoveOrder: 1, Player: PlayerHuman, Position: 0}},
		},
		"no moves": {
			Result: ResultWin, StartingPlayer: PlayerHuman,
		},
		"position out of range": {
			Result: ResultWin, StartingPlayer: PlayerHuman,
			Moves: []MoveInput{{MoveOrder: 1, Player: PlayerHuman, Position: 9}},
		},
		"zero move order": {
			Result: ResultWin, StartingPlayer: PlayerHuman,
			Moves: []MoveInput{{MoveOrder: 0, Player: PlayerHuman, Position: 0}},
		},
		"duplicate move order": {
			Result: ResultWin, StartingPlayer: PlayerHuman,
			Moves: []MoveInput{
				{MoveOrder: 1, Player: PlayerHuman, Position: 0},
				{MoveOrder: 1, Player: PlayerBot, Position: 1},
			},
		},
	}

	for name, in := range cases {
		if _, err := svc.RecordGame(context.Background(), userID, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestMyStatsZeroValueWhenNeverPlayed(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	userID := uuid.New()

	stats, err := svc.MyStats(context.Background(), userID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Score != 0 || stats.TotalWins != 0 || stats.CurrentWinStreak != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	if stats.UserID != userID {
		t.Fatalf("expected stats tagged with the user id")
	}
}

func TestLeaderboardOrderAndClamp(t *testing.T) {
	repo := NewMemoryRepository(func(ctx context.Context, id uuid.UUID) (UserSummary, bool) {
		return UserSummary{ID: id, Name: "player"}, true
	})
	svc := NewService(repo)

	low := uuid.New()
	high := uuid.New()
	if _, err := svc.RecordGame(context.Background(), low, recordInput(ResultLoss)); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.RecordGame(context.Background(), high, recordInput(ResultWin)); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	entries, err := svc.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != high || entries[1].UserID != low {
		t.Fatalf("expected score-descending order")
	}
	if entries[0].User.Name != "player" {
		t.Fatalf("expected user summary attached")
	}

	limited, err := svc.Leaderboard(context.Background(), 1)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d entries", len(limited))
	}
}

func TestReplayOwnerScoped(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	owner := uuid.New()
	stranger := uuid.New()

	recorded, err := svc.RecordGame(context.Background(), owner, recordInput(ResultWin))
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	g, err := svc.GameForReplay(context.Background(), owner, recorded.Game.ID)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(g.Moves) != 3 || g.Moves[0].MoveOrder != 1 {
		t.Fatalf("expected ordered moves, got %+v", g.Moves)
	}

	if _, err := svc.GameForReplay(context.Background(), stranger, recorded.Game.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign game, got %v", err)
	}
	if _, err := svc.GameForReplay(context.Background(), owner, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing game, got %v", err)
	}
}

func TestUserGamesPagination(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	userID := uuid.New()

	for i := 0; i < 12; i++ {
		if _, err := svc.RecordGame(context.Background(), userID, recordInput(ResultDraw)); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
	}

	page, err := svc.UserGames(context.Background(), userID, 1, 5)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(page.Items))
	}
	if page.Pagination.TotalItems != 12 || page.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", page.Pagination)
	}

	last, err := svc.UserGames(context.Background(), userID, 3, 5)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(last.Items) != 2 {
		t.Fatalf("expected 2 items on last page, got %d", len(last.Items))
	}

	// Out-of-range values are clamped, not rejected.
	clamped, err := svc.UserGames(context.Background(), userID, -3, 500)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if clamped.Pagination.Page != 1 || clamped.Pagination.PageSize != 50 {
		t.Fatalf("expected clamped pagination, got %+v", clamped.Pagination)
	}

	empty, err := svc.UserGames(context.Background(), uuid.New(), 1, 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(empty.Items) != 0 || empty.Pagination.TotalPages != 1 {
		t.Fatalf("expected empty page with totalPages 1, got %+v", empty.Pagination)
	}
}

package settings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"noughts/internal/auth"
)

func seedUser(t *testing.T, repo *auth.MemoryRepository) auth.User {
	t.Helper()

	user, err := repo.CreateUser(context.Background(), auth.User{
		ID:       uuid.New(),
		Email:    "ada@example.com",
		Name:     "Ada",
		LastName: "Lovelace",
		Picture:  "https://example.com/pic.jpg",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestOverviewForUser(t *testing.T) {
	repo := auth.NewMemoryRepository()
	svc := NewService(repo)
	user := seedUser(t, repo)

	first := auth.Account{ID: uuid.New(), UserID: user.ID, Provider: auth.ProviderGoogle, ProviderAccountID: "g-1", Email: "ada@example.com"}
	if err := repo.CreateAccount(context.Background(), first); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second := auth.Account{ID: uuid.New(), UserID: user.ID, Provider: auth.ProviderLine, ProviderAccountID: "U1", Email: ""}
	if err := repo.CreateAccount(context.Background(), second); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	now := time.Now()
	older := auth.Session{ID: uuid.New(), UserID: user.ID, CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(6 * 24 * time.Hour)}
	newer := auth.Session{ID: uuid.New(), UserID: user.ID, CreatedAt: now, ExpiresAt: now.Add(7 * 24 * time.Hour)}
	if err := repo.CreateSession(context.Background(), older, "hash-old"); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := repo.CreateSession(context.Background(), newer, "hash-new"); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	overview, err := svc.OverviewForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}

	if overview.User.Email != "ada@example.com" || overview.User.Name != "Ada" {
		t.Fatalf("unexpected user summary: %+v", overview.User)
	}

	if len(overview.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(overview.Accounts))
	}
	if overview.Accounts[0].Provider != auth.ProviderGoogle || overview.Accounts[1].Provider != auth.ProviderLine {
		t.Fatalf("expected accounts oldest first: %+v", overview.Accounts)
	}

	if len(overview.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(overview.Sessions))
	}
	if overview.Sessions[0].ID != newer.ID {
		t.Fatalf("expected newest session first")
	}
	if !overview.Sessions[0].IsCurrent || overview.Sessions[1].IsCurrent {
		t.Fatalf("only the newest session should be current")
	}
}

func TestOverviewUnknownUser(t *testing.T) {
	svc := NewService(auth.NewMemoryRepository())

	if _, err := svc.OverviewForUser(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected an error for unknown user")
	}
}

func TestUpdateProfilePatchSemantics(t *testing.T) {
	repo := auth.NewMemoryRepository()
	svc := NewService(repo)
	user := seedUser(t, repo)

	name := "Augusta"
	updated, err := svc.UpdateProfile(context.Background(), user.ID, ProfileUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Name != "Augusta" {
		t.Fatalf("expected name updated, got %q", updated.Name)
	}
	if updated.LastName != "Lovelace" {
		t.Fatalf("absent fields must stay untouched, got %q", updated.LastName)
	}
	if updated.Email != "ada@example.com" || updated.Picture != "https://example.com/pic.jpg" {
		t.Fatalf("unexpected summary: %+v", updated)
	}
}

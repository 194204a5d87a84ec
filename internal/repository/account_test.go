package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestAccountTokens(t *testing.T) {
	sqlDB, queries := newTestDB(t)
	repo := NewAccountRepository(sqlDB, queries, zerolog.Nop())
	ctx := context.Background()

	seedAccount(t, repo, "u1")
	if err := repo.AddToken(ctx, "u1", "secret-token"); err != nil {
		t.Fatalf("AddToken: %v", err)
	}

	userID, err := repo.GetUserIDByToken(ctx, "secret-token")
	if err != nil || userID != "u1" {
		t.Errorf("GetUserIDByToken = %q, %v", userID, err)
	}
	if _, err := repo.GetUserIDByToken(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown token err = %v, want ErrNotFound", err)
	}

	var stored string
	if err := sqlDB.QueryRow(`SELECT token_hash FROM account_tokens`).Scan(&stored); err != nil {
		t.Fatalf("select token: %v", err)
	}
	if stored == "secret-token" {
		t.Error("token stored in plain text")
	}
}

func TestListForPolling_LeastRecentlyPolledFirst(t *testing.T) {
	sqlDB, queries := newTestDB(t)
	repo := NewAccountRepository(sqlDB, queries, zerolog.Nop())
	ctx := context.Background()

	for _, id := range []string{"u1", "u2", "u3"} {
		seedAccount(t, repo, id)
	}
	if err := repo.RecordPoll(ctx, "u1", true, "g1"); err != nil {
		t.Fatalf("RecordPoll: %v", err)
	}

	got, err := repo.ListForPolling(ctx, 2)
	if err != nil {
		t.Fatalf("ListForPolling: %v", err)
	}
	if len(got) != 2 || got[0].UserID != "u2" || got[1].UserID != "u3" {
		t.Errorf("ListForPolling = %+v", got)
	}
	if got[0].LastPolledAt != nil {
		t.Error("never polled account has LastPolledAt")
	}

	account, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !account.IsInGame || account.LastKnownGameID != "g1" || account.LastPolledAt == nil {
		t.Errorf("account = %+v", account)
	}

	if err := repo.RecordPoll(ctx, "u1", false, ""); err != nil {
		t.Fatalf("RecordPoll: %v", err)
	}
	account, _ = repo.Get(ctx, "u1")
	if account.IsInGame || account.LastKnownGameID != "g1" {
		t.Errorf("empty game id should keep last known game, got %+v", account)
	}

	if _, err := repo.Get(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nobody) = %v, want ErrNotFound", err)
	}
}

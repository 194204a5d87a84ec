package api

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingLookup struct {
	calls int
	game  *ActiveGame
	err   error
}

func (l *countingLookup) GetActiveGame(ctx context.Context, platform, puuid string) (*ActiveGame, error) {
	l.calls++
	return l.game, l.err
}

func TestLiveGameCache_HitWithinTTL(t *testing.T) {
	next := &countingLookup{game: &ActiveGame{GameID: 1}}
	cache := NewLiveGameCache(next, 30*time.Second)
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := cache.GetActiveGame(context.Background(), "na1", "p1"); err != nil {
			t.Fatalf("GetActiveGame: %v", err)
		}
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}

	now = now.Add(31 * time.Second)
	if _, err := cache.GetActiveGame(context.Background(), "na1", "p1"); err != nil {
		t.Fatalf("GetActiveGame: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("calls after expiry = %d, want 2", next.calls)
	}
}

func TestLiveGameCache_CachesNotFound(t *testing.T) {
	next := &countingLookup{err: &StatusError{Endpoint: endpointActiveGame, Code: 404}}
	cache := NewLiveGameCache(next, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetActiveGame(context.Background(), "na1", "p1"); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}
}

func TestLiveGameCache_DoesNotCacheFailures(t *testing.T) {
	next := &countingLookup{err: errors.New("connection reset")}
	cache := NewLiveGameCache(next, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetActiveGame(context.Background(), "na1", "p1"); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}

	next.err = &StatusError{Endpoint: endpointActiveGame, Code: 429}
	_, _ = cache.GetActiveGame(context.Background(), "na1", "p1")
	_, _ = cache.GetActiveGame(context.Background(), "na1", "p1")
	if next.calls != 4 {
		t.Errorf("rate limited responses should not be cached, calls = %d", next.calls)
	}
}

func TestLiveGameCache_Invalidate(t *testing.T) {
	next := &countingLookup{game: &ActiveGame{GameID: 1}}
	cache := NewLiveGameCache(next, time.Minute)

	_, _ = cache.GetActiveGame(context.Background(), "na1", "p1")
	cache.Invalidate("na1", "p1")
	_, _ = cache.GetActiveGame(context.Background(), "na1", "p1")

	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}
}

package service

import (
	"context"
	"testing"
	"time"

	"lp-tracker/internal/api"
	"lp-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type fakeHistory struct {
	ids     []string
	matches map[string]*api.MatchResponse
	idsErr  error
}

func (h *fakeHistory) GetMatchIDs(ctx context.Context, platform, puuid string, count int) ([]string, error) {
	return h.ids, h.idsErr
}

func (h *fakeHistory) GetMatch(ctx context.Context, platform, matchID string) (*api.MatchResponse, error) {
	m, ok := h.matches[matchID]
	if !ok {
		return nil, &api.StatusError{Endpoint: "match", Code: 404}
	}
	return m, nil
}

func matchResponse(id, puuid string, start time.Time, seconds int64, win bool) *api.MatchResponse {
	return &api.MatchResponse{
		Metadata: api.MatchMetadata{MatchID: id},
		Info: api.MatchInfo{
			GameStartTimestamp: start.UnixMilli(),
			GameDuration:       seconds,
			QueueID:            420,
			Participants:       []api.MatchParticipant{{PUUID: puuid, Win: win}},
		},
	}
}

func TestMatchSync_StoresMissingMatches(t *testing.T) {
	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	history := &fakeHistory{
		ids: []string{"NA1_3", "NA1_2", "NA1_1"},
		matches: map[string]*api.MatchResponse{
			"NA1_3": matchResponse("NA1_3", "puuid-u1", start.Add(time.Hour), 1800, true),
			"NA1_2": matchResponse("NA1_2", "someone-else", start, 1500, true),
		},
	}
	store := &fakeMatches{matches: []domain.Match{{MatchID: "NA1_1", UserID: "u1"}}}
	svc := NewMatchSyncService(history, store, zerolog.Nop())

	n, err := svc.Sync(context.Background(), domain.Job{UserID: "u1", Puuid: "puuid-u1", PlatformRegion: "na1"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 1 {
		t.Fatalf("stored %d matches, want 1", n)
	}

	got := store.matches[1]
	if got.MatchID != "NA1_3" || !got.Win || got.Duration != 30*time.Minute || !got.StartedAt.Equal(start.Add(time.Hour)) {
		t.Errorf("stored match = %+v", got)
	}
}

func TestMatchSync_PropagatesRateLimit(t *testing.T) {
	history := &fakeHistory{idsErr: rateLimited(0)}
	svc := NewMatchSyncService(history, &fakeMatches{}, zerolog.Nop())

	_, err := svc.Sync(context.Background(), domain.Job{UserID: "u1", Puuid: "p"})
	if !api.IsRateLimited(err) {
		t.Errorf("err = %v, want rate limited", err)
	}
}

func TestMatchSync_FetchFailure(t *testing.T) {
	history := &fakeHistory{ids: []string{"NA1_9"}, matches: map[string]*api.MatchResponse{}}
	store := &fakeMatches{}
	svc := NewMatchSyncService(history, store, zerolog.Nop())

	if _, err := svc.Sync(context.Background(), domain.Job{UserID: "u1", Puuid: "p"}); err == nil {
		t.Fatal("expected error when a match cannot be fetched")
	}
	if len(store.matches) != 0 {
		t.Errorf("partial results stored: %+v", store.matches)
	}
}

func TestGameIDFromMatchID(t *testing.T) {
	if got := GameIDFromMatchID("EUW1_7012345678"); got != "7012345678" {
		t.Errorf("got %q", got)
	}
	if got := GameIDFromMatchID("123"); got != "123" {
		t.Errorf("got %q", got)
	}
}

package service

import (
	"context"
	"lp-tracker/internal/api"
	"lp-tracker/internal/domain"
	"time"
)

// The services depend on these narrow views of the repositories and the Riot
// client so they can run against fakes.

type JobQueue interface {
	Enqueue(ctx context.Context, job domain.Job) (*domain.Job, bool, error)
	Claim(ctx context.Context, id string) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	Latest(ctx context.Context, userID, gameID string, action domain.JobAction) (*domain.Job, error)
}

type WorkQueue interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
	ClaimBatch(ctx context.Context, limit int) ([]domain.Job, error)
	Complete(ctx context.Context, id, result string) error
	Fail(ctx context.Context, id, errMsg string) error
	Requeue(ctx context.Context, id string, delay time.Duration, reason string) error
	Release(ctx context.Context, ids []string) (int64, error)
}

type SnapshotStore interface {
	Insert(ctx context.Context, snapshot *domain.RankSnapshot) (bool, error)
	GetByGame(ctx context.Context, userID, gameID, queueType string) ([]domain.RankSnapshot, error)
	ListSince(ctx context.Context, userID, queueType string, since time.Time) ([]domain.RankSnapshot, error)
	HasPreGame(ctx context.Context, userID, gameID string) (bool, error)
	ListGameEndCandidates(ctx context.Context, minAge, maxAge time.Duration, limit int) ([]domain.GameEndCandidate, error)
}

type AccountStore interface {
	Get(ctx context.Context, userID string) (*domain.TrackedAccount, error)
	ListForPolling(ctx context.Context, limit int) ([]domain.TrackedAccount, error)
	RecordPoll(ctx context.Context, userID string, inGame bool, gameID string) error
}

type MatchStore interface {
	UpsertBatch(ctx context.Context, matches []domain.Match) error
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Match, error)
	Exists(ctx context.Context, matchID, userID string) (bool, error)
}

type RankedLookup interface {
	GetLeagueEntries(ctx context.Context, platform, puuid string) ([]api.LeagueEntry, error)
}

type MatchHistory interface {
	GetMatchIDs(ctx context.Context, platform, puuid string, count int) ([]string, error)
	GetMatch(ctx context.Context, platform, matchID string) (*api.MatchResponse, error)
}

// MatchSyncer pulls recent match history for the account of a sync_matches
// job and reports how many matches were stored.
type MatchSyncer interface {
	Sync(ctx context.Context, job domain.Job) (int, error)
}

// JobRunner runs a single claimed job inline, outside a worker batch.
type JobRunner interface {
	RunJob(ctx context.Context, job domain.Job) bool
}

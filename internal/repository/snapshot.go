package repository

import (
	"context"
	"database/sql"
	"fmt"
	"lp-tracker/internal/db"
	"lp-tracker/internal/domain"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type SnapshotRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
	now     func() time.Time
}

func NewSnapshotRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
		now:     time.Now,
	}
}

// Insert writes an immutable snapshot. It reports false when a pre/post
// snapshot for the same game and queue already exists.
func (r *SnapshotRepository) Insert(ctx context.Context, snapshot *domain.RankSnapshot) (bool, error) {
	if snapshot.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return false, fmt.Errorf("failed to generate snapshot id: %w", err)
		}
		snapshot.ID = id
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = r.now()
	}

	n, err := r.queries.InsertRankSnapshot(ctx, db.InsertRankSnapshotParams{
		ID:           snapshot.ID,
		UserID:       snapshot.UserID,
		Puuid:        snapshot.Puuid,
		GameID:       snapshot.GameID,
		SnapshotType: string(snapshot.SnapshotType),
		QueueType:    snapshot.QueueType,
		Tier:         snapshot.Tier,
		Division:     snapshot.Division,
		LeaguePoints: int64(snapshot.LeaguePoints),
		Wins:         int64(snapshot.Wins),
		Losses:       int64(snapshot.Losses),
		CreatedAt:    toMillis(snapshot.CreatedAt),
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if n == 0 {
		r.logger.Debug().
			Str("user_id", snapshot.UserID).
			Str("game_id", snapshot.GameID).
			Str("snapshot_type", string(snapshot.SnapshotType)).
			Msg("snapshot already recorded for game")
	}
	return n > 0, nil
}

func (r *SnapshotRepository) GetByGame(ctx context.Context, userID, gameID, queueType string) ([]domain.RankSnapshot, error) {
	rows, err := r.queries.GetSnapshotsByGame(ctx, db.GetSnapshotsByGameParams{
		UserID:    userID,
		GameID:    gameID,
		QueueType: queueType,
	})
	if err != nil {
		return nil, err
	}
	return toDomainSnapshots(rows), nil
}

// ListSince returns game-tagged snapshots created at or after since, oldest first.
func (r *SnapshotRepository) ListSince(ctx context.Context, userID, queueType string, since time.Time) ([]domain.RankSnapshot, error) {
	rows, err := r.queries.ListSnapshotsSince(ctx, db.ListSnapshotsSinceParams{
		UserID:    userID,
		QueueType: queueType,
		Since:     toMillis(since),
	})
	if err != nil {
		return nil, err
	}
	return toDomainSnapshots(rows), nil
}

func (r *SnapshotRepository) HasPreGame(ctx context.Context, userID, gameID string) (bool, error) {
	return r.queries.HasPreGameSnapshot(ctx, db.HasPreGameSnapshotParams{
		UserID: userID,
		GameID: gameID,
	})
}

// ListGameEndCandidates returns open games whose pre-game snapshot is between
// minAge and maxAge old.
func (r *SnapshotRepository) ListGameEndCandidates(ctx context.Context, minAge, maxAge time.Duration, limit int) ([]domain.GameEndCandidate, error) {
	now := r.now()
	rows, err := r.queries.ListGameEndCandidates(ctx, db.ListGameEndCandidatesParams{
		CreatedAfter:  toMillis(now.Add(-maxAge)),
		CreatedBefore: toMillis(now.Add(-minAge)),
		Limit:         int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list game end candidates: %w", err)
	}

	candidates := make([]domain.GameEndCandidate, len(rows))
	for i, row := range rows {
		candidates[i] = domain.GameEndCandidate{
			UserID:         row.UserID,
			GameID:         row.GameID,
			Puuid:          row.Puuid,
			PlatformRegion: row.PlatformRegion,
			SnapshotAt:     fromMillis(row.StartedAt),
		}
	}
	return candidates, nil
}

func toDomainSnapshots(rows []db.RankSnapshot) []domain.RankSnapshot {
	out := make([]domain.RankSnapshot, len(rows))
	for i, row := range rows {
		out[i] = domain.RankSnapshot{
			ID:           row.ID,
			UserID:       row.UserID,
			Puuid:        row.Puuid,
			GameID:       row.GameID,
			SnapshotType: domain.SnapshotType(row.SnapshotType),
			QueueType:    row.QueueType,
			Tier:         row.Tier,
			Division:     row.Division,
			LeaguePoints: int(row.LeaguePoints),
			Wins:         int(row.Wins),
			Losses:       int(row.Losses),
			CreatedAt:    fromMillis(row.CreatedAt),
		}
	}
	return out
}

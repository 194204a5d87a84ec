package repository

import (
	"context"
	"database/sql"
	"fmt"
	"lp-tracker/internal/db"
	"lp-tracker/internal/domain"
	"time"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *MatchRepository) UpsertBatch(ctx context.Context, matches []domain.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	now := toMillis(time.Now())

	for _, m := range matches {
		err := qtx.UpsertMatch(ctx, db.UpsertMatchParams{
			MatchID:         m.MatchID,
			UserID:          m.UserID,
			Puuid:           m.Puuid,
			QueueID:         int64(m.QueueID),
			StartedAt:       toMillis(m.StartedAt),
			DurationSeconds: int64(m.Duration / time.Second),
			Win:             m.Win,
			Remake:          m.Remake,
			CreatedAt:       now,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert match %s: %w", m.MatchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches: %w", err)
	}

	r.logger.Debug().Int("count", len(matches)).Str("user_id", matches[0].UserID).Msg("matches stored")
	return nil
}

// ListRecent returns the newest matches of a user, most recent first.
func (r *MatchRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Match, error) {
	rows, err := r.queries.ListRecentMatches(ctx, db.ListRecentMatchesParams{
		UserID: userID,
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, err
	}

	matches := make([]domain.Match, len(rows))
	for i, row := range rows {
		matches[i] = domain.Match{
			MatchID:   row.MatchID,
			UserID:    row.UserID,
			Puuid:     row.Puuid,
			QueueID:   int(row.QueueID),
			StartedAt: fromMillis(row.StartedAt),
			Duration:  time.Duration(row.DurationSeconds) * time.Second,
			Win:       row.Win,
			Remake:    row.Remake,
			CreatedAt: fromMillis(row.CreatedAt),
		}
	}
	return matches, nil
}

func (r *MatchRepository) Exists(ctx context.Context, matchID, userID string) (bool, error) {
	return r.queries.MatchExists(ctx, matchID, userID)
}

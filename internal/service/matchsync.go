package service

import (
	"context"
	"fmt"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/domain"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MatchSyncService stores a compact record of each recent match the account
// played. Only matches not yet stored are fetched.
type MatchSyncService struct {
	history MatchHistory
	matches MatchStore
	logger  zerolog.Logger
}

func NewMatchSyncService(history MatchHistory, matches MatchStore, logger zerolog.Logger) *MatchSyncService {
	return &MatchSyncService{
		history: history,
		matches: matches,
		logger:  logger.With().Str("component", "match_sync").Logger(),
	}
}

func (s *MatchSyncService) Sync(ctx context.Context, job domain.Job) (int, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	ids, err := s.history.GetMatchIDs(apiCtx, job.PlatformRegion, job.Puuid, constants.MatchSyncCount)
	if err != nil {
		return 0, wrapLookupError("match id lookup failed", err)
	}

	var missing []string
	for _, id := range ids {
		exists, err := s.matches.Exists(ctx, id, job.UserID)
		if err != nil {
			return 0, &storageError{err: err}
		}
		if !exists {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		s.logger.Debug().Str("user_id", job.UserID).Msg("match history already up to date")
		return 0, nil
	}

	results := make([]*domain.Match, len(missing))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MatchSyncFanOut)

	for i, matchID := range missing {
		g.Go(func() error {
			mCtx, mCancel := context.WithTimeout(gCtx, constants.ExternalAPITimeout)
			defer mCancel()

			resp, err := s.history.GetMatch(mCtx, job.PlatformRegion, matchID)
			if err != nil {
				return wrapLookupError(fmt.Sprintf("match %s lookup failed", matchID), err)
			}
			p, ok := resp.Participant(job.Puuid)
			if !ok {
				s.logger.Warn().Str("match_id", matchID).Str("puuid", job.Puuid).Msg("account missing from match participants")
				return nil
			}
			results[i] = &domain.Match{
				MatchID:   matchID,
				UserID:    job.UserID,
				Puuid:     job.Puuid,
				QueueID:   resp.Info.QueueID,
				StartedAt: time.UnixMilli(resp.Info.GameStartTimestamp).UTC(),
				Duration:  time.Duration(resp.Info.GameDuration) * time.Second,
				Win:       p.Win,
				Remake:    p.GameEndedInEarlySurrender,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	matches := make([]domain.Match, 0, len(results))
	for _, m := range results {
		if m != nil {
			matches = append(matches, *m)
		}
	}

	if err := s.matches.UpsertBatch(ctx, matches); err != nil {
		return 0, &storageError{err: err}
	}

	s.logger.Info().
		Str("user_id", job.UserID).
		Int("fetched", len(missing)).
		Int("stored", len(matches)).
		Msg("match history synced")
	return len(matches), nil
}

package service

import (
	"context"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/metrics"
	"time"
)

const (
	sourceGameEnd   = "detector_game_end"
	sourceGameStart = "detector_game_start"
	sourceAPI       = "api"
)

func enqueue(ctx context.Context, queue JobQueue, job domain.Job, source string) (*domain.Job, bool, error) {
	j, created, err := queue.Enqueue(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.JobsEnqueued.WithLabelValues(string(job.Action), source).Inc()
	}
	return j, created, nil
}

// matchSyncJob builds the delayed history sync that follows a finished game.
func matchSyncJob(userID, puuid, platform, gameID string, availableAt time.Time) domain.Job {
	return domain.Job{
		UserID:         userID,
		Puuid:          puuid,
		PlatformRegion: platform,
		Action:         domain.ActionSyncMatches,
		GameID:         gameID,
		Priority:       constants.PriorityBackground,
		AvailableAt:    availableAt,
	}
}

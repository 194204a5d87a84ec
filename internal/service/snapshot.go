package service

import (
	"context"
	"errors"
	"fmt"
	"lp-tracker/internal/config"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/rank"
	"lp-tracker/internal/repository"
	"time"

	"github.com/rs/zerolog"
)

type SnapshotRequest struct {
	Type     domain.SnapshotType
	GameID   string
	Priority *int
}

type SnapshotEnqueueResult struct {
	Job     *domain.Job
	Created bool
	// Delta is set for post_game requests. The post snapshot is taken before
	// returning, so it is complete whenever the pre snapshot exists.
	Delta *rank.Delta
}

type GameSnapshots struct {
	GameID    string
	QueueType string
	Pre       *domain.RankSnapshot
	Post      *domain.RankSnapshot
	Delta     rank.Delta
}

// SnapshotService backs the on-demand snapshot API used by the desktop client
// when it detects a game boundary before the server-side detector does.
type SnapshotService struct {
	queue     JobQueue
	runner    JobRunner
	snapshots SnapshotStore
	accounts  AccountStore
	cfg       *config.Config
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSnapshotService(queue JobQueue, runner JobRunner, snapshots SnapshotStore, accounts AccountStore, cfg *config.Config, logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		queue:     queue,
		runner:    runner,
		snapshots: snapshots,
		accounts:  accounts,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *SnapshotService) Request(ctx context.Context, userID string, req SnapshotRequest) (*SnapshotEnqueueResult, error) {
	action, priority, err := resolveRequest(req)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	job, created, err := enqueue(ctx, s.queue, domain.Job{
		UserID:         account.UserID,
		Puuid:          account.Puuid,
		PlatformRegion: account.PlatformRegion,
		Action:         action,
		GameID:         req.GameID,
		Priority:       priority,
	}, sourceAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue snapshot job: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("job_id", job.ID).
		Str("snapshot_type", string(req.Type)).
		Str("game_id", req.GameID).
		Bool("created", created).
		Msg("snapshot requested")

	if req.Type != domain.SnapshotPostGame {
		return &SnapshotEnqueueResult{Job: job, Created: created}, nil
	}

	job = s.runNow(ctx, job)
	result := &SnapshotEnqueueResult{Job: job, Created: created}

	sync := matchSyncJob(account.UserID, account.Puuid, account.PlatformRegion, req.GameID, s.now().Add(s.cfg.MatchSyncDelay))
	if _, _, err := enqueue(ctx, s.queue, sync, sourceAPI); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("game_id", req.GameID).Msg("failed to queue match sync")
	}

	game, err := s.GetGame(ctx, userID, req.GameID, "")
	if err != nil && !errors.Is(err, ErrGameNotFound) {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("game_id", req.GameID).Msg("failed to compute delta")
		return result, nil
	}
	if game != nil {
		result.Delta = &game.Delta
	} else {
		result.Delta = &rank.Delta{}
	}
	return result, nil
}

// runNow takes the post-game snapshot inline so the response can carry the
// delta. A job already claimed by a worker run is left to that run.
func (s *SnapshotService) runNow(ctx context.Context, job *domain.Job) *domain.Job {
	log := s.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()

	claimed, err := s.queue.Claim(ctx, job.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return job
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to claim post-game job, leaving it queued")
		return job
	}

	if !s.runner.RunJob(ctx, *claimed) {
		log.Info().Msg("inline post-game snapshot did not complete")
	}

	// the worker writes the final state detached from ctx
	stateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
	defer cancel()
	current, err := s.queue.Get(stateCtx, job.ID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to reload post-game job")
		return claimed
	}
	return current
}

func resolveRequest(req SnapshotRequest) (domain.JobAction, int, error) {
	var action domain.JobAction
	priority := constants.PriorityUrgent

	switch req.Type {
	case domain.SnapshotPreGame:
		action = domain.ActionSnapshotStart
		priority = constants.PriorityGameStart
	case domain.SnapshotPostGame:
		action = domain.ActionSnapshotEnd
	case domain.SnapshotManual:
		action = domain.ActionSnapshotManual
	default:
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSnapshotType, req.Type)
	}

	if req.Type != domain.SnapshotManual && req.GameID == "" {
		return "", 0, ErrMissingGameID
	}

	if req.Priority != nil {
		if *req.Priority < constants.PriorityBackground || *req.Priority > constants.PriorityUrgent {
			return "", 0, ErrInvalidPriority
		}
		priority = *req.Priority
	}
	return action, priority, nil
}

// GetGame pairs the pre and post snapshots of one game. An empty queueType
// selects the first configured snapshot queue.
func (s *SnapshotService) GetGame(ctx context.Context, userID, gameID, queueType string) (*GameSnapshots, error) {
	if gameID == "" {
		return nil, ErrMissingGameID
	}
	if queueType == "" {
		queueType = s.defaultQueue()
	}

	snaps, err := s.snapshots.GetByGame(ctx, userID, gameID, queueType)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	game := &GameSnapshots{GameID: gameID, QueueType: queueType}
	for i := range snaps {
		switch snaps[i].SnapshotType {
		case domain.SnapshotPreGame:
			if game.Pre == nil {
				game.Pre = &snaps[i]
			}
		case domain.SnapshotPostGame:
			if game.Post == nil {
				game.Post = &snaps[i]
			}
		}
	}
	if game.Pre == nil && game.Post == nil {
		return nil, ErrGameNotFound
	}

	game.Delta = rank.Compare(game.Pre, game.Post)
	return game, nil
}

func (s *SnapshotService) defaultQueue() string {
	if len(s.cfg.SnapshotQueueTypes) > 0 {
		return s.cfg.SnapshotQueueTypes[0]
	}
	return "RANKED_SOLO_5x5"
}

package service

import (
	"context"
	"errors"
	"fmt"
	"lp-tracker/internal/api"
	"lp-tracker/internal/config"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/metrics"
	"lp-tracker/internal/repository"
	"time"

	"github.com/rs/zerolog"
)

type PassSummary struct {
	Candidates int `json:"candidates"`
	Checked    int `json:"checked"`
	Enqueued   int `json:"enqueued"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type DetectorSummary struct {
	GameEnd        PassSummary   `json:"gameEnd"`
	GameStart      PassSummary   `json:"gameStart"`
	BudgetExceeded bool          `json:"budgetExceeded"`
	Duration       time.Duration `json:"durationNs"`
}

// Detector finds games that started or ended since the last run and queues
// the matching snapshot jobs. Pass A (game end) runs before Pass B (game
// start) so urgent end jobs are queued first.
type Detector struct {
	queue     JobQueue
	snapshots SnapshotStore
	accounts  AccountStore
	live      api.ActiveGameLookup
	cfg       *config.Config
	queueIDs  map[int]bool
	logger    zerolog.Logger
	now       func() time.Time
}

func NewDetector(queue JobQueue, snapshots SnapshotStore, accounts AccountStore, live api.ActiveGameLookup, cfg *config.Config, logger zerolog.Logger) *Detector {
	queueIDs := make(map[int]bool, len(cfg.DetectorQueueIDs))
	for _, id := range cfg.DetectorQueueIDs {
		queueIDs[id] = true
	}
	return &Detector{
		queue:     queue,
		snapshots: snapshots,
		accounts:  accounts,
		live:      live,
		cfg:       cfg,
		queueIDs:  queueIDs,
		logger:    logger.With().Str("component", "detector").Logger(),
		now:       time.Now,
	}
}

// Run executes both passes. The run stops early, without error, once ctx is
// done; per-account failures are counted in the summary.
func (d *Detector) Run(ctx context.Context) (*DetectorSummary, error) {
	start := time.Now()
	summary := &DetectorSummary{}
	defer func() {
		summary.Duration = time.Since(start)
		metrics.RunDuration.WithLabelValues("detector").Observe(summary.Duration.Seconds())
	}()

	if err := d.detectGameEnds(ctx, summary); err != nil {
		return summary, err
	}
	if summary.BudgetExceeded {
		d.logSummary(summary)
		return summary, nil
	}
	if err := d.detectGameStarts(ctx, summary); err != nil {
		return summary, err
	}

	d.logSummary(summary)
	return summary, nil
}

func (d *Detector) detectGameEnds(ctx context.Context, summary *DetectorSummary) error {
	candidates, err := d.snapshots.ListGameEndCandidates(ctx, constants.GameEndMinAge, constants.GameEndMaxAge, constants.GameEndCandidateLimit)
	if err != nil {
		return fmt.Errorf("failed to list game end candidates: %w", err)
	}

	pass := &summary.GameEnd
	pass.Candidates = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			summary.BudgetExceeded = true
			return nil
		}

		log := d.logger.With().Str("user_id", c.UserID).Str("game_id", c.GameID).Logger()

		game, err := d.live.GetActiveGame(ctx, c.PlatformRegion, c.Puuid)
		if err != nil && !api.IsNotFound(err) {
			log.Warn().Err(err).Msg("live lookup failed")
			pass.Failed++
			continue
		}
		pass.Checked++

		if game != nil && game.ID() == c.GameID {
			pass.Skipped++
			continue
		}

		created, err := d.enqueueGameEnd(ctx, c)
		if err != nil {
			log.Error().Err(err).Msg("failed to enqueue game end")
			pass.Failed++
			continue
		}
		if !created {
			pass.Skipped++
			continue
		}
		pass.Enqueued++

		log.Info().Bool("new_game_active", game != nil).Msg("game ended, post-game snapshot queued")
	}
	return nil
}

func (d *Detector) enqueueGameEnd(ctx context.Context, c domain.GameEndCandidate) (bool, error) {
	_, created, err := enqueue(ctx, d.queue, domain.Job{
		UserID:         c.UserID,
		Puuid:          c.Puuid,
		PlatformRegion: c.PlatformRegion,
		Action:         domain.ActionSnapshotEnd,
		GameID:         c.GameID,
		Priority:       constants.PriorityUrgent,
	}, sourceGameEnd)
	if err != nil {
		return false, err
	}

	sync := matchSyncJob(c.UserID, c.Puuid, c.PlatformRegion, c.GameID, d.now().Add(d.cfg.MatchSyncDelay))
	if _, _, err := enqueue(ctx, d.queue, sync, sourceGameEnd); err != nil {
		d.logger.Warn().Err(err).Str("user_id", c.UserID).Str("game_id", c.GameID).Msg("failed to queue match sync")
	}
	return created, nil
}

func (d *Detector) detectGameStarts(ctx context.Context, summary *DetectorSummary) error {
	accounts, err := d.accounts.ListForPolling(ctx, d.cfg.DetectorAccountBatch)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	pass := &summary.GameStart
	pass.Candidates = len(accounts)

	for _, account := range accounts {
		if ctx.Err() != nil {
			summary.BudgetExceeded = true
			return nil
		}
		d.pollAccount(ctx, account, pass)
	}
	return nil
}

func (d *Detector) pollAccount(ctx context.Context, account domain.TrackedAccount, pass *PassSummary) {
	log := d.logger.With().Str("user_id", account.UserID).Str("puuid", account.Puuid).Logger()

	game, err := d.live.GetActiveGame(ctx, account.PlatformRegion, account.Puuid)
	if err != nil && !api.IsNotFound(err) {
		log.Warn().Err(err).Msg("live lookup failed")
		pass.Failed++
		// rotate the account to the back of the polling order anyway
		if err := d.accounts.RecordPoll(ctx, account.UserID, account.IsInGame, ""); err != nil {
			log.Warn().Err(err).Msg("failed to record poll")
		}
		return
	}
	pass.Checked++

	if game == nil {
		if err := d.accounts.RecordPoll(ctx, account.UserID, false, ""); err != nil {
			log.Warn().Err(err).Msg("failed to record poll")
		}
		pass.Skipped++
		return
	}

	gameID := game.ID()
	log = log.With().Str("game_id", gameID).Logger()

	if err := d.accounts.RecordPoll(ctx, account.UserID, true, gameID); err != nil {
		log.Warn().Err(err).Msg("failed to record poll")
	}

	if !d.queueIDs[game.GameQueueConfigID] {
		log.Debug().Int("queue_id", game.GameQueueConfigID).Msg("untracked queue")
		pass.Skipped++
		return
	}

	has, err := d.snapshots.HasPreGame(ctx, account.UserID, gameID)
	if err != nil {
		log.Error().Err(err).Msg("failed to check pre-game snapshot")
		pass.Failed++
		return
	}
	if has {
		pass.Skipped++
		return
	}

	// a completed start job without a snapshot means the player is unranked
	// in the tracked queues; looking again during the same game cannot change that
	last, err := d.queue.Latest(ctx, account.UserID, gameID, domain.ActionSnapshotStart)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error().Err(err).Msg("failed to load previous start job")
		pass.Failed++
		return
	}
	if last != nil && last.Status == domain.JobCompleted {
		pass.Skipped++
		return
	}

	_, created, err := enqueue(ctx, d.queue, domain.Job{
		UserID:         account.UserID,
		Puuid:          account.Puuid,
		PlatformRegion: account.PlatformRegion,
		Action:         domain.ActionSnapshotStart,
		GameID:         gameID,
		Priority:       constants.PriorityGameStart,
	}, sourceGameStart)
	if err != nil {
		log.Error().Err(err).Msg("failed to enqueue game start")
		pass.Failed++
		return
	}
	if !created {
		pass.Skipped++
		return
	}
	pass.Enqueued++
	log.Info().Msg("game started, pre-game snapshot queued")
}

func (d *Detector) logSummary(s *DetectorSummary) {
	d.logger.Info().
		Int("end_candidates", s.GameEnd.Candidates).
		Int("end_enqueued", s.GameEnd.Enqueued).
		Int("end_failed", s.GameEnd.Failed).
		Int("start_candidates", s.GameStart.Candidates).
		Int("start_enqueued", s.GameStart.Enqueued).
		Int("start_failed", s.GameStart.Failed).
		Bool("budget_exceeded", s.BudgetExceeded).
		Msg("detector run finished")
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lp-tracker/internal/api"
	"lp-tracker/internal/config"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/metrics"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type WorkerSummary struct {
	Claimed        int           `json:"claimed"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	Requeued       int           `json:"requeued"`
	Released       int           `json:"released"`
	StaleRequeued  int           `json:"staleRequeued"`
	Errors         int           `json:"errors"`
	BudgetExceeded bool          `json:"budgetExceeded"`
	Duration       time.Duration `json:"durationNs"`
}

type outcome string

const (
	outcomeCompleted outcome = "completed"
	outcomeFailed    outcome = "failed"
	outcomeRequeued  outcome = "requeued"
	outcomeReleased  outcome = "released"
	outcomeError     outcome = "error"
)

// Worker drains the job queue in priority order. Jobs run sequentially with a
// fixed delay between them to stay under the Riot per-second limits.
type Worker struct {
	queue     WorkQueue
	snapshots SnapshotStore
	ranked    RankedLookup
	live      api.ActiveGameLookup
	syncer    MatchSyncer
	cfg       *config.Config
	queues    map[string]bool
	logger    zerolog.Logger
}

func NewWorker(queue WorkQueue, snapshots SnapshotStore, ranked RankedLookup, live api.ActiveGameLookup, syncer MatchSyncer, cfg *config.Config, logger zerolog.Logger) *Worker {
	queues := make(map[string]bool, len(cfg.SnapshotQueueTypes))
	for _, q := range cfg.SnapshotQueueTypes {
		queues[q] = true
	}
	return &Worker{
		queue:     queue,
		snapshots: snapshots,
		ranked:    ranked,
		live:      live,
		syncer:    syncer,
		cfg:       cfg,
		queues:    queues,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Run processes one batch. Claimed jobs that were not started before ctx is
// done are released back to pending. The returned error wraps
// ErrRunIncomplete when a job transition could not be stored.
func (w *Worker) Run(ctx context.Context) (*WorkerSummary, error) {
	start := time.Now()
	summary := &WorkerSummary{}
	defer func() {
		summary.Duration = time.Since(start)
		metrics.RunDuration.WithLabelValues("worker").Observe(summary.Duration.Seconds())
	}()

	stale, err := w.queue.RequeueStale(ctx, w.cfg.StaleJobAfter)
	if err != nil {
		w.logger.Error().Err(err).Msg("stale job sweep failed")
		summary.Errors++
	} else if stale > 0 {
		summary.StaleRequeued = int(stale)
		metrics.StaleJobsRequeued.Add(float64(stale))
	}

	jobs, err := w.queue.ClaimBatch(ctx, w.cfg.WorkerBatchSize)
	if err != nil {
		return summary, fmt.Errorf("failed to claim jobs: %w", err)
	}
	summary.Claimed = len(jobs)

	limiter := rate.NewLimiter(rate.Every(w.cfg.WorkerJobDelay), 1)

	for i, job := range jobs {
		if ctx.Err() != nil || limiter.Wait(ctx) != nil {
			summary.BudgetExceeded = true
			w.release(ctx, jobs[i:], summary)
			break
		}

		switch w.process(ctx, job) {
		case outcomeCompleted:
			summary.Completed++
		case outcomeFailed:
			summary.Failed++
		case outcomeRequeued:
			summary.Requeued++
		case outcomeReleased:
			summary.Released++
			summary.BudgetExceeded = true
		case outcomeError:
			summary.Errors++
		}
	}

	w.logger.Info().
		Int("claimed", summary.Claimed).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("requeued", summary.Requeued).
		Int("released", summary.Released).
		Int("stale_requeued", summary.StaleRequeued).
		Int("errors", summary.Errors).
		Bool("budget_exceeded", summary.BudgetExceeded).
		Msg("worker run finished")

	if summary.Errors > 0 {
		return summary, fmt.Errorf("%w: %d errors", ErrRunIncomplete, summary.Errors)
	}
	return summary, nil
}

// RunJob processes one job the caller has already claimed and reports whether
// it completed.
func (w *Worker) RunJob(ctx context.Context, job domain.Job) bool {
	return w.process(ctx, job) == outcomeCompleted
}

func (w *Worker) release(ctx context.Context, jobs []domain.Job, summary *WorkerSummary) {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}

	// the run context is already done at this point
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
	defer cancel()

	n, err := w.queue.Release(releaseCtx, ids)
	if err != nil {
		w.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to release unprocessed jobs")
		summary.Errors++
		return
	}
	summary.Released += int(n)
	w.logger.Info().Int64("count", n).Msg("run budget exceeded, released remaining jobs")
}

func (w *Worker) process(ctx context.Context, job domain.Job) outcome {
	log := w.logger.With().
		Str("job_id", job.ID).
		Str("action", string(job.Action)).
		Str("user_id", job.UserID).
		Str("game_id", job.GameID).
		Int("retry_count", job.RetryCount).
		Logger()

	var (
		result any
		err    error
	)
	switch job.Action {
	case domain.ActionCheckActive:
		result, err = w.checkActive(ctx, job)
	case domain.ActionSnapshotStart, domain.ActionSnapshotEnd, domain.ActionSnapshotManual:
		result, err = w.snapshot(ctx, job)
	case domain.ActionSyncMatches:
		result, err = w.syncMatches(ctx, job)
	default:
		err = fmt.Errorf("unknown action %q", job.Action)
	}

	o := w.finish(ctx, log, job, result, err)
	metrics.JobsProcessed.WithLabelValues(string(job.Action), string(o)).Inc()
	return o
}

// finish records the terminal or retry state of a job. The state write runs
// detached from ctx so a budget that expires during the external call does
// not strand the job in processing.
func (w *Worker) finish(runCtx context.Context, log zerolog.Logger, job domain.Job, result any, jobErr error) outcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), constants.DatabaseTimeout)
	defer cancel()

	if jobErr != nil && runCtx.Err() != nil {
		// the failure came from the run budget, not from the job
		if _, err := w.queue.Release(ctx, []string{job.ID}); err != nil {
			log.Error().Err(err).Msg("failed to release interrupted job")
			return outcomeError
		}
		log.Info().Err(jobErr).Msg("run budget exceeded mid-job, job released")
		return outcomeReleased
	}

	if jobErr == nil {
		body, err := json.Marshal(result)
		if err != nil {
			jobErr = fmt.Errorf("failed to encode result: %w", err)
		} else if err := w.queue.Complete(ctx, job.ID, string(body)); err != nil {
			log.Error().Err(err).Msg("failed to complete job")
			return outcomeError
		} else {
			log.Debug().RawJSON("result", body).Msg("job completed")
			return outcomeCompleted
		}
	}

	if api.IsRateLimited(jobErr) {
		return w.retry(ctx, log, job, jobErr)
	}

	var storage *storageError
	failed := outcomeFailed
	if errors.As(jobErr, &storage) {
		log.Error().Err(jobErr).Msg("storage error while processing job")
		failed = outcomeError
	} else {
		log.Warn().Err(jobErr).Msg("job failed")
	}

	if err := w.queue.Fail(ctx, job.ID, jobErr.Error()); err != nil {
		log.Error().Err(err).Msg("failed to mark job failed")
		return outcomeError
	}
	return failed
}

func (w *Worker) retry(ctx context.Context, log zerolog.Logger, job domain.Job, cause error) outcome {
	if job.RetryCount >= w.cfg.MaxRateLimitRetries {
		log.Warn().Int("max_retries", w.cfg.MaxRateLimitRetries).Msg("rate limit retries exhausted")
		if err := w.queue.Fail(ctx, job.ID, "rate limit retries exhausted"); err != nil {
			log.Error().Err(err).Msg("failed to mark job failed")
			return outcomeError
		}
		return outcomeFailed
	}

	delay := Backoff(job.RetryCount)
	var se *api.StatusError
	if errors.As(cause, &se) && se.RetryAfter > delay {
		delay = se.RetryAfter
	}

	if err := w.queue.Requeue(ctx, job.ID, delay, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to requeue job")
		return outcomeError
	}
	log.Info().Dur("delay", delay).Msg("rate limited, job requeued")
	return outcomeRequeued
}

// Backoff is the requeue delay after retries earlier rate-limit responses.
func Backoff(retries int) time.Duration {
	delay := constants.RateLimitBackoff
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= constants.RateLimitMaxBackoff {
			return constants.RateLimitMaxBackoff
		}
	}
	return delay
}

type activeResult struct {
	InGame bool   `json:"inGame"`
	GameID string `json:"gameId,omitempty"`
}

func (w *Worker) checkActive(ctx context.Context, job domain.Job) (any, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	game, err := w.live.GetActiveGame(apiCtx, job.PlatformRegion, job.Puuid)
	if api.IsNotFound(err) {
		return activeResult{InGame: false}, nil
	}
	if err != nil {
		return nil, wrapLookupError("live lookup failed", err)
	}
	return activeResult{InGame: true, GameID: game.ID()}, nil
}

type snapshotResult struct {
	Ranked    bool            `json:"ranked"`
	Snapshots []snapshotEntry `json:"snapshots,omitempty"`
}

type snapshotEntry struct {
	ID           string `json:"id"`
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Division     string `json:"division,omitempty"`
	LeaguePoints int    `json:"leaguePoints"`
	Duplicate    bool   `json:"duplicate,omitempty"`
}

func (w *Worker) snapshot(ctx context.Context, job domain.Job) (any, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	entries, err := w.ranked.GetLeagueEntries(apiCtx, job.PlatformRegion, job.Puuid)
	if err != nil {
		return nil, wrapLookupError("ranked lookup failed", err)
	}

	result := snapshotResult{}
	for _, e := range entries {
		if !w.queues[e.QueueType] {
			continue
		}
		result.Ranked = true

		snap := &domain.RankSnapshot{
			UserID:       job.UserID,
			Puuid:        job.Puuid,
			GameID:       job.GameID,
			SnapshotType: job.Action.SnapshotType(),
			QueueType:    e.QueueType,
			Tier:         e.Tier,
			Division:     division(e),
			LeaguePoints: e.LeaguePoints,
			Wins:         e.Wins,
			Losses:       e.Losses,
		}
		inserted, err := w.snapshots.Insert(ctx, snap)
		if err != nil {
			return nil, &storageError{err: err}
		}
		result.Snapshots = append(result.Snapshots, snapshotEntry{
			ID:           snap.ID,
			QueueType:    snap.QueueType,
			Tier:         snap.Tier,
			Division:     snap.Division,
			LeaguePoints: snap.LeaguePoints,
			Duplicate:    !inserted,
		})
	}
	return result, nil
}

func (w *Worker) syncMatches(ctx context.Context, job domain.Job) (any, error) {
	n, err := w.syncer.Sync(ctx, job)
	if err != nil {
		return nil, err
	}
	return map[string]int{"synced": n}, nil
}

// division is empty for apex tiers, which report "I" as their rank.
func division(e api.LeagueEntry) string {
	switch e.Tier {
	case "MASTER", "GRANDMASTER", "CHALLENGER":
		return ""
	}
	return e.Rank
}

type storageError struct {
	err error
}

func (e *storageError) Error() string { return "storage error: " + e.err.Error() }

func (e *storageError) Unwrap() error { return e.err }

type lookupError struct {
	op  string
	err error
}

func (e *lookupError) Error() string {
	if code := api.StatusCode(e.err); code != 0 {
		return fmt.Sprintf("%s: status %d", e.op, code)
	}
	return e.op + ": " + e.err.Error()
}

func (e *lookupError) Unwrap() error { return e.err }

func wrapLookupError(op string, err error) error {
	return &lookupError{op: op, err: err}
}

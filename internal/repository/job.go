package repository

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"lp-tracker/internal/db"
	"lp-tracker/internal/domain"
	"slices"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// JobRepository is the durable work queue. At most one non-terminal job exists
// per (user, game, action); the uq_jobs_active index enforces it.
type JobRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
	now     func() time.Time
}

func NewJobRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *JobRepository {
	return &JobRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
		now:     time.Now,
	}
}

// Enqueue inserts job unless a pending or processing job with the same user,
// game and action exists, in which case that job is returned with created
// set to false. A zero AvailableAt means immediately.
func (r *JobRepository) Enqueue(ctx context.Context, job domain.Job) (*domain.Job, bool, error) {
	now := r.now()
	if job.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate job id: %w", err)
		}
		job.ID = id
	}
	if job.AvailableAt.IsZero() {
		job.AvailableAt = now
	}

	// the existing job can reach a terminal state between the insert and the
	// lookup; a second insert then succeeds
	for attempt := 0; attempt < 2; attempt++ {
		n, err := r.queries.InsertJob(ctx, db.InsertJobParams{
			ID:             job.ID,
			UserID:         job.UserID,
			Puuid:          job.Puuid,
			PlatformRegion: job.PlatformRegion,
			Action:         string(job.Action),
			GameID:         job.GameID,
			Priority:       int64(job.Priority),
			CreatedAt:      toMillis(now),
			AvailableAt:    toMillis(job.AvailableAt),
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to insert job: %w", err)
		}

		if n > 0 {
			created, err := r.Get(ctx, job.ID)
			if err != nil {
				return nil, false, err
			}
			r.logger.Debug().
				Str("job_id", created.ID).
				Str("user_id", created.UserID).
				Str("action", string(created.Action)).
				Str("game_id", created.GameID).
				Int("priority", created.Priority).
				Msg("job enqueued")
			return created, true, nil
		}

		existing, err := r.queries.GetActiveJob(ctx, db.GetActiveJobParams{
			UserID: job.UserID,
			GameID: job.GameID,
			Action: string(job.Action),
		})
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to load existing job: %w", err)
		}
		dup := toDomainJob(existing)
		return &dup, false, nil
	}

	return nil, false, fmt.Errorf("failed to enqueue job for user %s: conflicting insert", job.UserID)
}

func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	row, err := r.queries.GetJob(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	job := toDomainJob(row)
	return &job, nil
}

// ClaimBatch moves up to limit available pending jobs to processing in one
// statement and returns them by priority, highest first, then by age.
func (r *JobRepository) ClaimBatch(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := r.queries.ClaimJobs(ctx, db.ClaimJobsParams{
		Now:   toMillis(r.now()),
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}

	jobs := make([]domain.Job, len(rows))
	for i, row := range rows {
		jobs[i] = toDomainJob(row)
	}
	slices.SortFunc(jobs, func(a, b domain.Job) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs, nil
}

// Claim moves one pending job to processing. ErrNotFound means the job is not
// pending, usually because a worker run claimed it first.
func (r *JobRepository) Claim(ctx context.Context, id string) (*domain.Job, error) {
	row, err := r.queries.ClaimJob(ctx, db.ClaimJobParams{ID: id, Now: toMillis(r.now())})
	if err != nil {
		return nil, wrapNotFound(err)
	}
	job := toDomainJob(row)
	return &job, nil
}

// Latest returns the most recently created job for user, game and action in
// any status.
func (r *JobRepository) Latest(ctx context.Context, userID, gameID string, action domain.JobAction) (*domain.Job, error) {
	row, err := r.queries.GetLatestJob(ctx, db.GetLatestJobParams{
		UserID: userID,
		GameID: gameID,
		Action: string(action),
	})
	if err != nil {
		return nil, wrapNotFound(err)
	}
	job := toDomainJob(row)
	return &job, nil
}

// Complete, Fail and Requeue only apply to processing jobs; a job that was
// swept back to pending in the meantime reports ErrNotFound.
func (r *JobRepository) Complete(ctx context.Context, id, result string) error {
	n, err := r.queries.CompleteJob(ctx, db.CompleteJobParams{
		ID:          id,
		Result:      result,
		ProcessedAt: toMillis(r.now()),
	})
	return checkUpdated(n, err, "complete", id)
}

func (r *JobRepository) Fail(ctx context.Context, id, errMsg string) error {
	n, err := r.queries.FailJob(ctx, db.FailJobParams{
		ID:           id,
		ErrorMessage: errMsg,
		ProcessedAt:  toMillis(r.now()),
	})
	return checkUpdated(n, err, "fail", id)
}

// Requeue returns a job to pending after delay and counts it as a retry.
func (r *JobRepository) Requeue(ctx context.Context, id string, delay time.Duration, reason string) error {
	n, err := r.queries.RequeueJob(ctx, db.RequeueJobParams{
		ID:           id,
		AvailableAt:  toMillis(r.now().Add(delay)),
		ErrorMessage: reason,
	})
	return checkUpdated(n, err, "requeue", id)
}

// Release hands claimed jobs that were never started back to the queue
// without counting a retry.
func (r *JobRepository) Release(ctx context.Context, ids []string) (int64, error) {
	n, err := r.queries.ReleaseJobs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to release jobs: %w", err)
	}
	return n, nil
}

// RequeueStale recovers jobs left in processing by a run that died, counting
// a retry for each.
func (r *JobRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := r.now()
	n, err := r.queries.RequeueStaleJobs(ctx, db.RequeueStaleJobsParams{
		Now:           toMillis(now),
		ClaimedBefore: toMillis(now.Add(-olderThan)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}
	if n > 0 {
		r.logger.Warn().Int64("count", n).Dur("older_than", olderThan).Msg("requeued stale processing jobs")
	}
	return n, nil
}

func (r *JobRepository) Counts(ctx context.Context) (map[domain.JobStatus]int64, error) {
	raw, err := r.queries.CountJobsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	counts := make(map[domain.JobStatus]int64, len(raw))
	for status, n := range raw {
		counts[domain.JobStatus(status)] = n
	}
	return counts, nil
}

func checkUpdated(n int64, err error, op, id string) error {
	if err != nil {
		return fmt.Errorf("failed to %s job %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to %s job %s: %w", op, id, ErrNotFound)
	}
	return nil
}

func toDomainJob(row db.Job) domain.Job {
	return domain.Job{
		ID:             row.ID,
		UserID:         row.UserID,
		Puuid:          row.Puuid,
		PlatformRegion: row.PlatformRegion,
		Action:         domain.JobAction(row.Action),
		GameID:         row.GameID,
		Priority:       int(row.Priority),
		Status:         domain.JobStatus(row.Status),
		RetryCount:     int(row.RetryCount),
		Result:         row.Result,
		ErrorMessage:   row.ErrorMessage,
		CreatedAt:      fromMillis(row.CreatedAt),
		AvailableAt:    fromMillis(row.AvailableAt),
		ClaimedAt:      fromNullMillis(row.ClaimedAt),
		ProcessedAt:    fromNullMillis(row.ProcessedAt),
	}
}

package db

import (
	"context"
	"database/sql"
	"strings"
)

const jobColumns = `
    id, user_id, puuid, platform_region, action, game_id, priority, status,
    retry_count, result, error_message, created_at, available_at, claimed_at, processed_at
`

func scanJob(row interface{ Scan(...interface{}) error }) (Job, error) {
	var i Job
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Puuid,
		&i.PlatformRegion,
		&i.Action,
		&i.GameID,
		&i.Priority,
		&i.Status,
		&i.RetryCount,
		&i.Result,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.AvailableAt,
		&i.ClaimedAt,
		&i.ProcessedAt,
	)
	return i, err
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()
	var items []Job
	for rows.Next() {
		i, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// The partial unique index uq_jobs_active turns a duplicate non-terminal job
// into a no-op.
const insertJob = `
INSERT INTO jobs (
    id, user_id, puuid, platform_region, action, game_id, priority, status,
    retry_count, created_at, available_at
) VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)
ON CONFLICT DO NOTHING
`

type InsertJobParams struct {
	ID             string
	UserID         string
	Puuid          string
	PlatformRegion string
	Action         string
	GameID         string
	Priority       int64
	CreatedAt      int64
	AvailableAt    int64
}

func (q *Queries) InsertJob(ctx context.Context, arg InsertJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertJob,
		arg.ID,
		arg.UserID,
		arg.Puuid,
		arg.PlatformRegion,
		arg.Action,
		arg.GameID,
		arg.Priority,
		arg.CreatedAt,
		arg.AvailableAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getJob = `SELECT` + jobColumns + `FROM jobs WHERE id = ?`

func (q *Queries) GetJob(ctx context.Context, id string) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getJob, id))
}

const getActiveJob = `SELECT` + jobColumns + `FROM jobs
WHERE user_id = ? AND game_id = ? AND action = ? AND status IN ('pending', 'processing')
LIMIT 1
`

type GetActiveJobParams struct {
	UserID string
	GameID string
	Action string
}

func (q *Queries) GetActiveJob(ctx context.Context, arg GetActiveJobParams) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getActiveJob, arg.UserID, arg.GameID, arg.Action))
}

// RETURNING does not preserve the subquery order; callers sort the batch.
const claimJobs = `
UPDATE jobs
SET status = 'processing', claimed_at = ?
WHERE id IN (
    SELECT id FROM jobs
    WHERE status = 'pending' AND available_at <= ?
    ORDER BY priority DESC, created_at ASC
    LIMIT ?
)
RETURNING` + jobColumns

type ClaimJobsParams struct {
	Now   int64
	Limit int64
}

func (q *Queries) ClaimJobs(ctx context.Context, arg ClaimJobsParams) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, claimJobs, arg.Now, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

// claimJob takes one specific job out of pending; no row means another
// claimer got there first or the job is not pending.
const claimJob = `
UPDATE jobs
SET status = 'processing', claimed_at = ?
WHERE id = ? AND status = 'pending'
RETURNING` + jobColumns

type ClaimJobParams struct {
	ID  string
	Now int64
}

func (q *Queries) ClaimJob(ctx context.Context, arg ClaimJobParams) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, claimJob, arg.Now, arg.ID))
}

const getLatestJob = `SELECT` + jobColumns + `FROM jobs
WHERE user_id = ? AND game_id = ? AND action = ?
ORDER BY created_at DESC, id DESC
LIMIT 1
`

type GetLatestJobParams struct {
	UserID string
	GameID string
	Action string
}

func (q *Queries) GetLatestJob(ctx context.Context, arg GetLatestJobParams) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getLatestJob, arg.UserID, arg.GameID, arg.Action))
}

const completeJob = `
UPDATE jobs
SET status = 'completed', result = ?, error_message = '', processed_at = ?
WHERE id = ? AND status = 'processing'
`

type CompleteJobParams struct {
	ID          string
	Result      string
	ProcessedAt int64
}

func (q *Queries) CompleteJob(ctx context.Context, arg CompleteJobParams) (int64, error) {
	return q.execRows(ctx, completeJob, arg.Result, arg.ProcessedAt, arg.ID)
}

const failJob = `
UPDATE jobs
SET status = 'failed', error_message = ?, processed_at = ?
WHERE id = ? AND status = 'processing'
`

type FailJobParams struct {
	ID           string
	ErrorMessage string
	ProcessedAt  int64
}

func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) (int64, error) {
	return q.execRows(ctx, failJob, arg.ErrorMessage, arg.ProcessedAt, arg.ID)
}

const requeueJob = `
UPDATE jobs
SET status = 'pending', retry_count = retry_count + 1, available_at = ?, claimed_at = NULL, error_message = ?
WHERE id = ? AND status = 'processing'
`

type RequeueJobParams struct {
	ID           string
	AvailableAt  int64
	ErrorMessage string
}

func (q *Queries) RequeueJob(ctx context.Context, arg RequeueJobParams) (int64, error) {
	return q.execRows(ctx, requeueJob, arg.AvailableAt, arg.ErrorMessage, arg.ID)
}

const releaseJobs = `
UPDATE jobs
SET status = 'pending', claimed_at = NULL
WHERE status = 'processing' AND id IN (/*SLICE:ids*/?)
`

func (q *Queries) ReleaseJobs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := strings.Replace(releaseJobs, "/*SLICE:ids*/?", strings.Repeat(",?", len(ids))[1:], 1)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return q.execRows(ctx, query, args...)
}

const requeueStaleJobs = `
UPDATE jobs
SET status = 'pending', retry_count = retry_count + 1, claimed_at = NULL, available_at = ?,
    error_message = 'requeued after processing timeout'
WHERE status = 'processing' AND claimed_at < ?
`

type RequeueStaleJobsParams struct {
	Now           int64
	ClaimedBefore int64
}

func (q *Queries) RequeueStaleJobs(ctx context.Context, arg RequeueStaleJobsParams) (int64, error) {
	return q.execRows(ctx, requeueStaleJobs, arg.Now, arg.ClaimedBefore)
}

const countJobsByStatus = `
SELECT status, COUNT(*) FROM jobs GROUP BY status
`

func (q *Queries) CountJobsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, countJobsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (q *Queries) execRows(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package db

import (
	"context"
)

const insertRankSnapshot = `
INSERT INTO rank_snapshots (
    id, user_id, puuid, game_id, snapshot_type, queue_type,
    tier, division, league_points, wins, losses, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING
`

type InsertRankSnapshotParams struct {
	ID           string
	UserID       string
	Puuid        string
	GameID       string
	SnapshotType string
	QueueType    string
	Tier         string
	Division     string
	LeaguePoints int64
	Wins         int64
	Losses       int64
	CreatedAt    int64
}

// InsertRankSnapshot reports the number of rows written; 0 means a pre/post
// snapshot for the same game and queue already existed.
func (q *Queries) InsertRankSnapshot(ctx context.Context, arg InsertRankSnapshotParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertRankSnapshot,
		arg.ID,
		arg.UserID,
		arg.Puuid,
		arg.GameID,
		arg.SnapshotType,
		arg.QueueType,
		arg.Tier,
		arg.Division,
		arg.LeaguePoints,
		arg.Wins,
		arg.Losses,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const snapshotColumns = `
    id, user_id, puuid, game_id, snapshot_type, queue_type,
    tier, division, league_points, wins, losses, created_at
FROM rank_snapshots
`

const getSnapshotsByGame = `SELECT` + snapshotColumns + `
WHERE user_id = ? AND game_id = ? AND queue_type = ?
ORDER BY created_at ASC
`

type GetSnapshotsByGameParams struct {
	UserID    string
	GameID    string
	QueueType string
}

func (q *Queries) GetSnapshotsByGame(ctx context.Context, arg GetSnapshotsByGameParams) ([]RankSnapshot, error) {
	return q.listSnapshots(ctx, getSnapshotsByGame, arg.UserID, arg.GameID, arg.QueueType)
}

const listSnapshotsSince = `SELECT` + snapshotColumns + `
WHERE user_id = ? AND queue_type = ? AND created_at >= ? AND game_id != ''
ORDER BY created_at ASC
`

type ListSnapshotsSinceParams struct {
	UserID    string
	QueueType string
	Since     int64
}

func (q *Queries) ListSnapshotsSince(ctx context.Context, arg ListSnapshotsSinceParams) ([]RankSnapshot, error) {
	return q.listSnapshots(ctx, listSnapshotsSince, arg.UserID, arg.QueueType, arg.Since)
}

func (q *Queries) listSnapshots(ctx context.Context, query string, args ...interface{}) ([]RankSnapshot, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RankSnapshot
	for rows.Next() {
		var i RankSnapshot
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Puuid,
			&i.GameID,
			&i.SnapshotType,
			&i.QueueType,
			&i.Tier,
			&i.Division,
			&i.LeaguePoints,
			&i.Wins,
			&i.Losses,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const hasPreGameSnapshot = `
SELECT EXISTS (
    SELECT 1 FROM rank_snapshots
    WHERE user_id = ? AND game_id = ? AND snapshot_type = 'pre_game'
)
`

type HasPreGameSnapshotParams struct {
	UserID string
	GameID string
}

func (q *Queries) HasPreGameSnapshot(ctx context.Context, arg HasPreGameSnapshotParams) (bool, error) {
	row := q.db.QueryRowContext(ctx, hasPreGameSnapshot, arg.UserID, arg.GameID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// A game is a Pass A candidate while its pre-game snapshot is inside the age
// window, it has no post-game snapshot and no end job is already queued.
const listGameEndCandidates = `
SELECT
    s.user_id,
    s.game_id,
    a.puuid,
    a.platform_region,
    MIN(s.created_at) AS started_at
FROM rank_snapshots s
JOIN tracked_accounts a ON a.user_id = s.user_id
WHERE s.snapshot_type = 'pre_game'
  AND s.game_id != ''
  AND s.created_at >= ?
  AND s.created_at <= ?
  AND NOT EXISTS (
      SELECT 1 FROM rank_snapshots post
      WHERE post.user_id = s.user_id
        AND post.game_id = s.game_id
        AND post.snapshot_type = 'post_game'
  )
  AND NOT EXISTS (
      SELECT 1 FROM jobs j
      WHERE j.user_id = s.user_id
        AND j.game_id = s.game_id
        AND j.action = 'snapshot_lp_end'
        AND j.status IN ('pending', 'processing')
  )
GROUP BY s.user_id, s.game_id, a.puuid, a.platform_region
ORDER BY started_at ASC
LIMIT ?
`

type ListGameEndCandidatesParams struct {
	CreatedAfter  int64
	CreatedBefore int64
	Limit         int64
}

type GameEndCandidate struct {
	UserID         string
	GameID         string
	Puuid          string
	PlatformRegion string
	StartedAt      int64
}

func (q *Queries) ListGameEndCandidates(ctx context.Context, arg ListGameEndCandidatesParams) ([]GameEndCandidate, error) {
	rows, err := q.db.QueryContext(ctx, listGameEndCandidates, arg.CreatedAfter, arg.CreatedBefore, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GameEndCandidate
	for rows.Next() {
		var i GameEndCandidate
		if err := rows.Scan(
			&i.UserID,
			&i.GameID,
			&i.Puuid,
			&i.PlatformRegion,
			&i.StartedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

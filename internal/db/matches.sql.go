package db

import (
	"context"
)

const upsertMatch = `
INSERT INTO matches (
    match_id, user_id, puuid, queue_id, started_at, duration_seconds, win, remake, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id, user_id) DO UPDATE SET
    queue_id = excluded.queue_id,
    started_at = excluded.started_at,
    duration_seconds = excluded.duration_seconds,
    win = excluded.win,
    remake = excluded.remake
`

type UpsertMatchParams struct {
	MatchID         string
	UserID          string
	Puuid           string
	QueueID         int64
	StartedAt       int64
	DurationSeconds int64
	Win             bool
	Remake          bool
	CreatedAt       int64
}

func (q *Queries) UpsertMatch(ctx context.Context, arg UpsertMatchParams) error {
	_, err := q.db.ExecContext(ctx, upsertMatch,
		arg.MatchID,
		arg.UserID,
		arg.Puuid,
		arg.QueueID,
		arg.StartedAt,
		arg.DurationSeconds,
		arg.Win,
		arg.Remake,
		arg.CreatedAt,
	)
	return err
}

const listRecentMatches = `
SELECT match_id, user_id, puuid, queue_id, started_at, duration_seconds, win, remake, created_at
FROM matches
WHERE user_id = ?
ORDER BY started_at DESC
LIMIT ?
`

type ListRecentMatchesParams struct {
	UserID string
	Limit  int64
}

func (q *Queries) ListRecentMatches(ctx context.Context, arg ListRecentMatchesParams) ([]Match, error) {
	rows, err := q.db.QueryContext(ctx, listRecentMatches, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Match
	for rows.Next() {
		var i Match
		if err := rows.Scan(
			&i.MatchID,
			&i.UserID,
			&i.Puuid,
			&i.QueueID,
			&i.StartedAt,
			&i.DurationSeconds,
			&i.Win,
			&i.Remake,
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

const matchExists = `
SELECT EXISTS (SELECT 1 FROM matches WHERE match_id = ? AND user_id = ?)
`

func (q *Queries) MatchExists(ctx context.Context, matchID, userID string) (bool, error) {
	row := q.db.QueryRowContext(ctx, matchExists, matchID, userID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

package db

import (
	"context"
)

const insertTrackedAccount = `
INSERT INTO tracked_accounts (user_id, puuid, platform_region, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    puuid = excluded.puuid,
    platform_region = excluded.platform_region
`

type InsertTrackedAccountParams struct {
	UserID         string
	Puuid          string
	PlatformRegion string
	CreatedAt      int64
}

func (q *Queries) InsertTrackedAccount(ctx context.Context, arg InsertTrackedAccountParams) error {
	_, err := q.db.ExecContext(ctx, insertTrackedAccount,
		arg.UserID,
		arg.Puuid,
		arg.PlatformRegion,
		arg.CreatedAt,
	)
	return err
}

const insertAccountToken = `
INSERT INTO account_tokens (token_hash, user_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT (token_hash) DO NOTHING
`

type InsertAccountTokenParams struct {
	TokenHash string
	UserID    string
	CreatedAt int64
}

func (q *Queries) InsertAccountToken(ctx context.Context, arg InsertAccountTokenParams) error {
	_, err := q.db.ExecContext(ctx, insertAccountToken, arg.TokenHash, arg.UserID, arg.CreatedAt)
	return err
}

const getUserIDByTokenHash = `
SELECT user_id FROM account_tokens WHERE token_hash = ?
`

func (q *Queries) GetUserIDByTokenHash(ctx context.Context, tokenHash string) (string, error) {
	row := q.db.QueryRowContext(ctx, getUserIDByTokenHash, tokenHash)
	var userID string
	err := row.Scan(&userID)
	return userID, err
}

const accountColumns = `
    a.user_id,
    a.puuid,
    a.platform_region,
    COALESCE(p.is_in_game, 0),
    COALESCE(p.last_known_game_id, ''),
    p.last_polled_at
FROM tracked_accounts a
LEFT JOIN account_poll_state p ON p.user_id = a.user_id
`

const getTrackedAccount = `SELECT` + accountColumns + `WHERE a.user_id = ?`

func (q *Queries) GetTrackedAccount(ctx context.Context, userID string) (TrackedAccount, error) {
	row := q.db.QueryRowContext(ctx, getTrackedAccount, userID)
	var i TrackedAccount
	err := row.Scan(
		&i.UserID,
		&i.Puuid,
		&i.PlatformRegion,
		&i.IsInGame,
		&i.LastKnownGameID,
		&i.LastPolledAt,
	)
	return i, err
}

// least recently polled first; never-polled accounts sort before everything else
const listAccountsForPolling = `SELECT` + accountColumns + `
ORDER BY COALESCE(p.last_polled_at, 0) ASC, a.user_id ASC
LIMIT ?
`

func (q *Queries) ListAccountsForPolling(ctx context.Context, limit int64) ([]TrackedAccount, error) {
	rows, err := q.db.QueryContext(ctx, listAccountsForPolling, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrackedAccount
	for rows.Next() {
		var i TrackedAccount
		if err := rows.Scan(
			&i.UserID,
			&i.Puuid,
			&i.PlatformRegion,
			&i.IsInGame,
			&i.LastKnownGameID,
			&i.LastPolledAt,
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

const upsertPollState = `
INSERT INTO account_poll_state (user_id, is_in_game, last_known_game_id, last_polled_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    is_in_game = excluded.is_in_game,
    last_known_game_id = CASE WHEN excluded.last_known_game_id != '' THEN excluded.last_known_game_id ELSE account_poll_state.last_known_game_id END,
    last_polled_at = excluded.last_polled_at
`

type UpsertPollStateParams struct {
	UserID          string
	IsInGame        bool
	LastKnownGameID string
	LastPolledAt    int64
}

func (q *Queries) UpsertPollState(ctx context.Context, arg UpsertPollStateParams) error {
	_, err := q.db.ExecContext(ctx, upsertPollState,
		arg.UserID,
		arg.IsInGame,
		arg.LastKnownGameID,
		arg.LastPolledAt,
	)
	return err
}

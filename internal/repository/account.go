package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"lp-tracker/internal/db"
	"lp-tracker/internal/domain"
	"time"

	"github.com/rs/zerolog"
)

// AccountRepository reads linked accounts and owns the detector poll state.
// tracked_accounts itself is written by account linking; Create exists for
// seeding and tests.
type AccountRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewAccountRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *AccountRepository) Get(ctx context.Context, userID string) (*domain.TrackedAccount, error) {
	row, err := r.queries.GetTrackedAccount(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	account := toDomainAccount(row)
	return &account, nil
}

// GetUserIDByToken resolves an account bearer token. Tokens are stored hashed.
func (r *AccountRepository) GetUserIDByToken(ctx context.Context, token string) (string, error) {
	userID, err := r.queries.GetUserIDByTokenHash(ctx, hashToken(token))
	if err != nil {
		return "", wrapNotFound(err)
	}
	return userID, nil
}

func (r *AccountRepository) ListForPolling(ctx context.Context, limit int) ([]domain.TrackedAccount, error) {
	rows, err := r.queries.ListAccountsForPolling(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for polling: %w", err)
	}

	accounts := make([]domain.TrackedAccount, len(rows))
	for i, row := range rows {
		accounts[i] = toDomainAccount(row)
	}
	return accounts, nil
}

// RecordPoll stores the outcome of a live lookup. An empty gameID keeps the
// previously known game.
func (r *AccountRepository) RecordPoll(ctx context.Context, userID string, inGame bool, gameID string) error {
	err := r.queries.UpsertPollState(ctx, db.UpsertPollStateParams{
		UserID:          userID,
		IsInGame:        inGame,
		LastKnownGameID: gameID,
		LastPolledAt:    toMillis(time.Now()),
	})
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to record poll state")
		return fmt.Errorf("failed to record poll state: %w", err)
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.TrackedAccount) error {
	return r.queries.InsertTrackedAccount(ctx, db.InsertTrackedAccountParams{
		UserID:         account.UserID,
		Puuid:          account.Puuid,
		PlatformRegion: account.PlatformRegion,
		CreatedAt:      toMillis(time.Now()),
	})
}

func (r *AccountRepository) AddToken(ctx context.Context, userID, token string) error {
	return r.queries.InsertAccountToken(ctx, db.InsertAccountTokenParams{
		TokenHash: hashToken(token),
		UserID:    userID,
		CreatedAt: toMillis(time.Now()),
	})
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func toDomainAccount(row db.TrackedAccount) domain.TrackedAccount {
	return domain.TrackedAccount{
		UserID:          row.UserID,
		Puuid:           row.Puuid,
		PlatformRegion:  row.PlatformRegion,
		LastKnownGameID: row.LastKnownGameID,
		IsInGame:        row.IsInGame,
		LastPolledAt:    fromNullMillis(row.LastPolledAt),
	}
}

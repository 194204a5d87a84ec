package db

import "database/sql"

type TrackedAccount struct {
	UserID          string
	Puuid           string
	PlatformRegion  string
	IsInGame        bool
	LastKnownGameID string
	LastPolledAt    sql.NullInt64
}

type RankSnapshot struct {
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

type Job struct {
	ID             string
	UserID         string
	Puuid          string
	PlatformRegion string
	Action         string
	GameID         string
	Priority       int64
	Status         string
	RetryCount     int64
	Result         string
	ErrorMessage   string
	CreatedAt      int64
	AvailableAt    int64
	ClaimedAt      sql.NullInt64
	ProcessedAt    sql.NullInt64
}

type Match struct {
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

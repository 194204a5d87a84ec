package domain

import (
	"time"
)

type SnapshotType string

const (
	SnapshotPreGame  SnapshotType = "pre_game"
	SnapshotPostGame SnapshotType = "post_game"
	SnapshotManual   SnapshotType = "manual"
)

func (t SnapshotType) Valid() bool {
	switch t {
	case SnapshotPreGame, SnapshotPostGame, SnapshotManual:
		return true
	}
	return false
}

type JobAction string

const (
	ActionSnapshotStart  JobAction = "snapshot_lp_start"
	ActionSnapshotEnd    JobAction = "snapshot_lp_end"
	ActionSnapshotManual JobAction = "snapshot_lp_manual"
	ActionCheckActive    JobAction = "check_active"
	ActionSyncMatches    JobAction = "sync_matches"
)

// SnapshotType returns the snapshot tag written by a snapshot action, or "" for
// actions that do not write snapshots.
func (a JobAction) SnapshotType() SnapshotType {
	switch a {
	case ActionSnapshotStart:
		return SnapshotPreGame
	case ActionSnapshotEnd:
		return SnapshotPostGame
	case ActionSnapshotManual:
		return SnapshotManual
	}
	return ""
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type TrackedAccount struct {
	UserID          string
	Puuid           string
	PlatformRegion  string
	LastKnownGameID string
	IsInGame        bool
	LastPolledAt    *time.Time
}

type RankSnapshot struct {
	ID           string // nanoid
	UserID       string
	Puuid        string
	GameID       string // empty when not tied to a game
	SnapshotType SnapshotType
	QueueType    string
	Tier         string
	Division     string // empty for apex tiers
	LeaguePoints int
	Wins         int
	Losses       int
	CreatedAt    time.Time
}

type Job struct {
	ID             string // nanoid
	UserID         string
	Puuid          string
	PlatformRegion string
	Action         JobAction
	GameID         string
	Priority       int
	Status         JobStatus
	RetryCount     int
	Result         string // JSON
	ErrorMessage   string
	CreatedAt      time.Time
	AvailableAt    time.Time
	ClaimedAt      *time.Time
	ProcessedAt    *time.Time
}

// Match is the compact per-account record written by match history sync.
type Match struct {
	MatchID   string
	UserID    string
	Puuid     string
	QueueID   int
	StartedAt time.Time
	Duration  time.Duration
	Win       bool
	Remake    bool
	CreatedAt time.Time
}

// GameEndCandidate is a game with a pre-game snapshot that has not been closed
// by a post-game snapshot or a queued end job.
type GameEndCandidate struct {
	UserID         string
	GameID         string
	Puuid          string
	PlatformRegion string
	SnapshotAt     time.Time
}

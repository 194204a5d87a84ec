package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

// Pass A only looks at pre-game snapshots inside this age window.
const (
	GameEndMinAge = 15 * time.Minute
	GameEndMaxAge = 3 * time.Hour
)

const (
	PriorityBackground = 0
	PriorityGameStart  = 1
	PriorityUrgent     = 2
)

const (
	RateLimitBackoff    = 30 * time.Second
	RateLimitMaxBackoff = 10 * time.Minute
)

const (
	MatchSyncCount       = 20
	MatchSyncFanOut      = 4
	SessionMatchLookback = 50
)

const (
	GameEndCandidateLimit = 100
	// snapshots of a session's first game may predate its match start time
	SnapshotPairingSlack = 1 * time.Hour
)

package service

import (
	"context"
	"fmt"
	"lp-tracker/internal/config"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/rank"
	"lp-tracker/internal/session"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Bucket struct {
	session.Summary
	// LPChange sums the deltas of games in the bucket that have both a pre
	// and a post snapshot; LPGames counts those games.
	LPChange int
	LPGames  int
	Matches  []domain.Match
}

type SessionStats struct {
	Session    Bucket
	Today      Bucket
	WinStreak  int
	LossStreak int
}

type StatsService struct {
	matches   MatchStore
	snapshots SnapshotStore
	cfg       *config.Config
	logger    zerolog.Logger
	now       func() time.Time
}

func NewStatsService(matches MatchStore, snapshots SnapshotStore, cfg *config.Config, logger zerolog.Logger) *StatsService {
	return &StatsService{
		matches:   matches,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Session builds the current-session and today view of a user. A zero gap
// uses the configured session gap.
func (s *StatsService) Session(ctx context.Context, userID string, tzOffset, gap time.Duration) (*SessionStats, error) {
	if gap <= 0 {
		gap = s.cfg.SessionGap
	}

	recent, err := s.matches.ListRecent(ctx, userID, constants.SessionMatchLookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}
	played := session.Filter(recent, s.cfg.MinMatchDuration, s.cfg.RemakeMaxDuration)

	now := s.now()
	current := session.CurrentSession(played, gap)
	today := session.Today(played, tzOffset, now)

	since := session.LocalMidnight(now, tzOffset)
	if n := len(current); n > 0 && current[n-1].StartedAt.Before(since) {
		since = current[n-1].StartedAt
	}

	deltas, err := s.gameDeltas(ctx, userID, since.Add(-constants.SnapshotPairingSlack))
	if err != nil {
		return nil, err
	}

	stats := &SessionStats{
		Session:    bucket(current, deltas),
		Today:      bucket(today, deltas),
		WinStreak:  session.WinStreak(played),
		LossStreak: session.LossStreak(played),
	}

	s.logger.Debug().
		Str("user_id", userID).
		Int("session_games", stats.Session.Games).
		Int("today_games", stats.Today.Games).
		Msg("session stats computed")
	return stats, nil
}

// gameDeltas returns the LP change of every completed pre/post pair since,
// keyed by game id.
func (s *StatsService) gameDeltas(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	queue := "RANKED_SOLO_5x5"
	if len(s.cfg.SnapshotQueueTypes) > 0 {
		queue = s.cfg.SnapshotQueueTypes[0]
	}

	snaps, err := s.snapshots.ListSince(ctx, userID, queue, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	pre := make(map[string]*domain.RankSnapshot)
	post := make(map[string]*domain.RankSnapshot)
	for i := range snaps {
		switch snaps[i].SnapshotType {
		case domain.SnapshotPreGame:
			pre[snaps[i].GameID] = &snaps[i]
		case domain.SnapshotPostGame:
			post[snaps[i].GameID] = &snaps[i]
		}
	}

	deltas := make(map[string]int)
	for gameID, p := range pre {
		d := rank.Compare(p, post[gameID])
		if d.HasCompleteData {
			deltas[gameID] = *d.LPChange
		}
	}
	return deltas, nil
}

func bucket(matches []domain.Match, deltas map[string]int) Bucket {
	b := Bucket{Summary: session.Summarize(matches), Matches: matches}
	for _, m := range matches {
		if d, ok := deltas[GameIDFromMatchID(m.MatchID)]; ok {
			b.LPChange += d
			b.LPGames++
		}
	}
	return b
}

// GameIDFromMatchID strips the platform prefix of a match-v5 id, so
// "NA1_5123456789" becomes the spectator game id "5123456789".
func GameIDFromMatchID(matchID string) string {
	if i := strings.IndexByte(matchID, '_'); i >= 0 {
		return matchID[i+1:]
	}
	return matchID
}

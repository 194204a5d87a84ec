// Package session groups an account's recent matches into play sessions and
// computes streaks over them. All functions take matches in any order and
// return them most recent first.
package session

import (
	"slices"
	"time"

	"lp-tracker/internal/domain"
)

// Filter drops matches shorter than minDuration and early-surrender remakes
// shorter than remakeMaxDuration.
func Filter(matches []domain.Match, minDuration, remakeMaxDuration time.Duration) []domain.Match {
	out := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if m.Duration < minDuration {
			continue
		}
		if m.Remake && m.Duration < remakeMaxDuration {
			continue
		}
		out = append(out, m)
	}
	return newestFirst(out)
}

// CurrentSession walks back from the most recent match and keeps matches while
// the gap between consecutive start times stays within gap.
func CurrentSession(matches []domain.Match, gap time.Duration) []domain.Match {
	sorted := newestFirst(matches)
	if len(sorted) == 0 {
		return sorted
	}
	end := 1
	for end < len(sorted) {
		if sorted[end-1].StartedAt.Sub(sorted[end].StartedAt) > gap {
			break
		}
		end++
	}
	return sorted[:end]
}

// Today keeps matches started at or after local midnight, where local time is
// UTC shifted by tzOffset.
func Today(matches []domain.Match, tzOffset time.Duration, now time.Time) []domain.Match {
	midnight := LocalMidnight(now, tzOffset)
	out := make([]domain.Match, 0, len(matches))
	for _, m := range newestFirst(matches) {
		if !m.StartedAt.Before(midnight) {
			out = append(out, m)
		}
	}
	return out
}

func LocalMidnight(now time.Time, tzOffset time.Duration) time.Time {
	loc := time.FixedZone("", int(tzOffset.Seconds()))
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func WinStreak(matches []domain.Match) int {
	return streak(matches, true)
}

func LossStreak(matches []domain.Match) int {
	return streak(matches, false)
}

func streak(matches []domain.Match, win bool) int {
	n := 0
	for _, m := range newestFirst(matches) {
		if m.Win != win {
			break
		}
		n++
	}
	return n
}

type Summary struct {
	Games   int     `json:"games"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"winRate"`
}

func Summarize(matches []domain.Match) Summary {
	s := Summary{Games: len(matches)}
	for _, m := range matches {
		if m.Win {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.Games > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Games)
	}
	return s
}

func newestFirst(matches []domain.Match) []domain.Match {
	sorted := slices.Clone(matches)
	slices.SortStableFunc(sorted, func(a, b domain.Match) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return sorted
}

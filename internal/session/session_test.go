package session

import (
	"testing"
	"time"

	"lp-tracker/internal/domain"
)

var base = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func match(id string, startedAgo time.Duration, win bool) domain.Match {
	return domain.Match{
		MatchID:   id,
		StartedAt: base.Add(-startedAgo),
		Duration:  30 * time.Minute,
		Win:       win,
	}
}

func ids(matches []domain.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.MatchID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCurrentSession(t *testing.T) {
	matches := []domain.Match{
		match("m1", 0, true),
		match("m2", 30*time.Minute, true),
		match("m3", 90*time.Minute, false),
		match("m4", 4*time.Hour, true),
	}

	got := ids(CurrentSession(matches, 2*time.Hour))
	if want := []string{"m1", "m2", "m3"}; !equal(got, want) {
		t.Errorf("CurrentSession = %v, want %v", got, want)
	}
}

func TestCurrentSession_UnorderedInput(t *testing.T) {
	matches := []domain.Match{
		match("m4", 4*time.Hour, true),
		match("m2", 30*time.Minute, true),
		match("m1", 0, true),
		match("m3", 90*time.Minute, false),
	}

	got := ids(CurrentSession(matches, 2*time.Hour))
	if want := []string{"m1", "m2", "m3"}; !equal(got, want) {
		t.Errorf("CurrentSession = %v, want %v", got, want)
	}
}

func TestCurrentSession_Edges(t *testing.T) {
	if got := CurrentSession(nil, time.Hour); len(got) != 0 {
		t.Errorf("empty input returned %v", ids(got))
	}

	exact := []domain.Match{match("a", 0, true), match("b", 2*time.Hour, false)}
	if got := ids(CurrentSession(exact, 2*time.Hour)); !equal(got, []string{"a", "b"}) {
		t.Errorf("gap equal to threshold should stay in session, got %v", got)
	}
}

func TestStreaks(t *testing.T) {
	matches := []domain.Match{
		match("m1", 0, true),
		match("m2", time.Hour, true),
		match("m3", 2*time.Hour, false),
		match("m4", 3*time.Hour, true),
	}

	if got := WinStreak(matches); got != 2 {
		t.Errorf("WinStreak = %d, want 2", got)
	}
	if got := LossStreak(matches); got != 0 {
		t.Errorf("LossStreak = %d, want 0", got)
	}

	losing := []domain.Match{match("a", 0, false), match("b", time.Hour, false), match("c", 2*time.Hour, true)}
	if got := LossStreak(losing); got != 2 {
		t.Errorf("LossStreak = %d, want 2", got)
	}
}

func TestToday(t *testing.T) {
	// 20:00 UTC is 15:00 at UTC-5, so local midnight is 05:00 UTC and
	// last-night (04:00 UTC) belongs to the previous local day
	offset := -5 * time.Hour
	matches := []domain.Match{
		match("afternoon", time.Hour, true),
		match("morning", 14*time.Hour, false),
		match("last-night", 16*time.Hour, true),
		match("at-midnight", 15*time.Hour, true),
	}

	got := ids(Today(matches, offset, base))
	if want := []string{"afternoon", "morning", "at-midnight"}; !equal(got, want) {
		t.Errorf("Today = %v, want %v", got, want)
	}
}

func TestLocalMidnight(t *testing.T) {
	got := LocalMidnight(base, 9*time.Hour) // 05:00 next day in UTC+9
	want := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("LocalMidnight = %v, want %v", got.UTC(), want)
	}
}

func TestFilter(t *testing.T) {
	short := match("short", 0, true)
	short.Duration = 3 * time.Minute

	remake := match("remake", time.Hour, false)
	remake.Duration = 7 * time.Minute
	remake.Remake = true

	lateSurrender := match("late-surrender", 2*time.Hour, false)
	lateSurrender.Duration = 16 * time.Minute
	lateSurrender.Remake = true

	normal := match("normal", 3*time.Hour, true)

	got := ids(Filter([]domain.Match{normal, short, remake, lateSurrender}, 5*time.Minute, 10*time.Minute))
	if want := []string{"late-surrender", "normal"}; !equal(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]domain.Match{match("a", 0, true), match("b", time.Hour, false), match("c", 2*time.Hour, true), match("d", 3*time.Hour, true)})
	if s.Games != 4 || s.Wins != 3 || s.Losses != 1 {
		t.Errorf("Summarize = %+v", s)
	}
	if s.WinRate != 0.75 {
		t.Errorf("WinRate = %v, want 0.75", s.WinRate)
	}

	if empty := Summarize(nil); empty.WinRate != 0 || empty.Games != 0 {
		t.Errorf("empty Summarize = %+v", empty)
	}
}

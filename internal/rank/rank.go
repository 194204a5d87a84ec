// Package rank maps ranked-ladder standings onto a single integer scale and
// diffs before/after snapshots of a game.
package rank

import (
	"strings"

	"lp-tracker/internal/domain"
)

// ApexBase is the absolute value of Diamond I at 100 LP, where Master starts.
// Apex tiers share one continuous LP scale on top of it.
const ApexBase = 2800

const (
	pointsPerDivision = 100
	pointsPerTier     = 400
	masterIndex       = 7
)

// TierOrder follows the ladder from lowest to highest.
var TierOrder = map[string]int{
	"IRON":        0,
	"BRONZE":      1,
	"SILVER":      2,
	"GOLD":        3,
	"PLATINUM":    4,
	"EMERALD":     5,
	"DIAMOND":     6,
	"MASTER":      7,
	"GRANDMASTER": 8,
	"CHALLENGER":  9,
}

// DivisionOrder has IV as the lowest division inside a tier.
var DivisionOrder = map[string]int{
	"IV":  0,
	"III": 1,
	"II":  2,
	"I":   3,
}

func TierIndex(tier string) (int, bool) {
	idx, ok := TierOrder[strings.ToUpper(strings.TrimSpace(tier))]
	return idx, ok
}

func DivisionIndex(division string) (int, bool) {
	idx, ok := DivisionOrder[strings.ToUpper(strings.TrimSpace(division))]
	return idx, ok
}

func IsApex(tier string) bool {
	idx, ok := TierIndex(tier)
	return ok && idx >= masterIndex
}

// Absolute returns the ladder position of a standing. Unknown tiers, and
// unknown divisions below Master, degrade to the raw LP value.
func Absolute(tier, division string, leaguePoints int) int {
	tierIdx, ok := TierIndex(tier)
	if !ok {
		return leaguePoints
	}
	if tierIdx >= masterIndex {
		return ApexBase + leaguePoints
	}
	divIdx, ok := DivisionIndex(division)
	if !ok {
		return leaguePoints
	}
	return tierIdx*pointsPerTier + divIdx*pointsPerDivision + leaguePoints
}

type Delta struct {
	HasCompleteData bool `json:"hasCompleteData"`
	LPChange        *int `json:"lpChange"`
	Promoted        bool `json:"promoted"`
	Demoted         bool `json:"demoted"`
}

// Compare diffs the pre-game and post-game snapshots of one game. A missing
// post snapshot is reported as incomplete, never as a zero change.
func Compare(pre, post *domain.RankSnapshot) Delta {
	if pre == nil || post == nil {
		return Delta{}
	}

	change := Absolute(post.Tier, post.Division, post.LeaguePoints) -
		Absolute(pre.Tier, pre.Division, pre.LeaguePoints)

	return Delta{
		HasCompleteData: true,
		LPChange:        &change,
		Promoted:        climbed(pre, post),
		Demoted:         climbed(post, pre),
	}
}

// climbed reports whether to is a higher tier, or a higher division of the
// same tier, than from.
func climbed(from, to *domain.RankSnapshot) bool {
	fromTier, okFrom := TierIndex(from.Tier)
	toTier, okTo := TierIndex(to.Tier)
	if !okFrom || !okTo {
		return false
	}
	if toTier != fromTier {
		return toTier > fromTier
	}
	fromDiv, okFrom := DivisionIndex(from.Division)
	toDiv, okTo := DivisionIndex(to.Division)
	if !okFrom || !okTo {
		return false
	}
	return toDiv > fromDiv
}

package rank

import (
	"testing"

	"lp-tracker/internal/domain"
)

func snap(tier, division string, lp int) *domain.RankSnapshot {
	return &domain.RankSnapshot{Tier: tier, Division: division, LeaguePoints: lp}
}

func TestAbsolute(t *testing.T) {
	tests := []struct {
		name     string
		tier     string
		division string
		lp       int
		want     int
	}{
		{"Iron IV 0", "IRON", "IV", 0, 0},
		{"Iron I 50", "IRON", "I", 50, 350},
		{"Gold II 90", "GOLD", "II", 90, 1490},
		{"Platinum IV 0", "PLATINUM", "IV", 0, 1600},
		{"Diamond I 100", "DIAMOND", "I", 100, 2800},
		{"Master 0", "MASTER", "", 0, 2800},
		{"Grandmaster 350", "GRANDMASTER", "", 350, 3150},
		{"Challenger ignores division", "CHALLENGER", "I", 1200, 4000},
		{"lowercase tier", "gold", "ii", 90, 1490},
		{"unknown tier", "WOOD", "IV", 42, 42},
		{"empty tier", "", "", 17, 17},
		{"unknown division", "GOLD", "V", 33, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Absolute(tt.tier, tt.division, tt.lp); got != tt.want {
				t.Errorf("Absolute(%q, %q, %d) = %d, want %d", tt.tier, tt.division, tt.lp, got, tt.want)
			}
		})
	}
}

func TestAbsolute_NoGapsAtBoundaries(t *testing.T) {
	tiers := []string{"IRON", "BRONZE", "SILVER", "GOLD", "PLATINUM", "EMERALD", "DIAMOND"}
	divisions := []string{"IV", "III", "II", "I"}

	for ti, tier := range tiers {
		for di, div := range divisions {
			for lp := 0; lp < 100; lp++ {
				if Absolute(tier, div, lp+1) <= Absolute(tier, div, lp) {
					t.Fatalf("%s %s not increasing at %d LP", tier, div, lp)
				}
			}
			if di+1 < len(divisions) {
				if Absolute(tier, div, 100) != Absolute(tier, divisions[di+1], 0) {
					t.Errorf("gap between %s %s and %s %s", tier, div, tier, divisions[di+1])
				}
			}
		}
		if ti+1 < len(tiers) {
			if Absolute(tier, "I", 100) != Absolute(tiers[ti+1], "IV", 0) {
				t.Errorf("gap between %s I and %s IV", tier, tiers[ti+1])
			}
		}
	}

	if Absolute("GOLD", "I", 100) != Absolute("PLATINUM", "IV", 0) {
		t.Error("Gold I 100 should equal Platinum IV 0")
	}
}

func TestAbsolute_ApexContinuity(t *testing.T) {
	diamond := Absolute("DIAMOND", "I", 100)
	master := Absolute("MASTER", "", 0)
	if diamond != ApexBase || master != ApexBase {
		t.Errorf("Diamond I 100 = %d, Master 0 = %d, want both %d", diamond, master, ApexBase)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		pre      *domain.RankSnapshot
		post     *domain.RankSnapshot
		change   int
		promoted bool
		demoted  bool
	}{
		{"win inside division", snap("GOLD", "II", 40), snap("GOLD", "II", 62), 22, false, false},
		{"division up", snap("GOLD", "II", 90), snap("GOLD", "I", 10), 20, true, false},
		{"division up to 0 LP", snap("GOLD", "II", 90), snap("GOLD", "I", 0), 10, true, false},
		{"tier up", snap("GOLD", "I", 85), snap("PLATINUM", "IV", 5), 20, true, false},
		{"demotion", snap("PLATINUM", "IV", 10), snap("GOLD", "I", 75), -35, false, true},
		{"division down", snap("SILVER", "III", 0), snap("SILVER", "IV", 80), -20, false, true},
		{"into master", snap("DIAMOND", "I", 90), snap("MASTER", "", 12), 22, true, false},
		{"apex gain", snap("GRANDMASTER", "", 300), snap("GRANDMASTER", "", 320), 20, false, false},
		{"apex drop", snap("CHALLENGER", "", 1000), snap("GRANDMASTER", "", 980), -20, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.pre, tt.post)
			if !got.HasCompleteData {
				t.Fatal("expected complete data")
			}
			if got.LPChange == nil || *got.LPChange != tt.change {
				t.Errorf("LPChange = %v, want %d", got.LPChange, tt.change)
			}
			if got.Promoted != tt.promoted {
				t.Errorf("Promoted = %v, want %v", got.Promoted, tt.promoted)
			}
			if got.Demoted != tt.demoted {
				t.Errorf("Demoted = %v, want %v", got.Demoted, tt.demoted)
			}
		})
	}
}

func TestCompare_Incomplete(t *testing.T) {
	got := Compare(snap("GOLD", "II", 40), nil)
	if got.HasCompleteData {
		t.Error("expected incomplete data without post snapshot")
	}
	if got.LPChange != nil {
		t.Errorf("LPChange = %d, want nil", *got.LPChange)
	}
	if got.Promoted || got.Demoted {
		t.Error("incomplete delta should not report promotion or demotion")
	}
}

func TestIsApex(t *testing.T) {
	for tier, want := range map[string]bool{
		"DIAMOND": false, "MASTER": true, "GRANDMASTER": true, "CHALLENGER": true, "UNKNOWN": false,
	} {
		if got := IsApex(tier); got != want {
			t.Errorf("IsApex(%q) = %v, want %v", tier, got, want)
		}
	}
}

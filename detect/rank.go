package detect

import (
	"fmt"

	"github.com/riftwatch/smurfwatch/internal/util"
	"github.com/riftwatch/smurfwatch/store"
)

const (
	rankProgressionMinSnapshots = 2
	// League points climbed per day that a dedicated non-smurf rarely
	// sustains across a whole snapshot span.
	rankProgressionSuspiciousLP = 15.0
	rankProgressionScaleLP      = 30.0

	rankDiscrepancyMinMatches = 5
	rankDiscrepancyThreshold  = 1.5
)

var tierOrder = map[string]int{
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

var divisionOrder = map[string]int{
	"IV":  0,
	"III": 1,
	"II":  2,
	"I":   3,
}

// Average KDA a mid-pack player posts at each tier, used as the
// baseline for the discrepancy factor. Rough figures are fine: the
// factor cares about being far above the line, not the line itself.
var tierExpectedKDA = map[string]float64{
	"IRON":        1.8,
	"BRONZE":      2.0,
	"SILVER":      2.2,
	"GOLD":        2.4,
	"PLATINUM":    2.6,
	"EMERALD":     2.8,
	"DIAMOND":     3.0,
	"MASTER":      3.2,
	"GRANDMASTER": 3.4,
	"CHALLENGER":  3.6,
}

// rankValue flattens tier/division/LP into one comparable number.
// Each division is 100 LP, each tier 400.
func rankValue(s *store.RankSnapshot) float64 {
	tier, ok := tierOrder[s.Tier]
	if !ok {
		return 0
	}
	return float64(tier*400+divisionOrder[s.Division]*100) + float64(s.LeaguePoints)
}

// RankProgressionAnalyzer measures climb speed across rank snapshots.
// Smurfs blow through divisions the matchmaker thinks they belong in.
type RankProgressionAnalyzer struct{}

func (RankProgressionAnalyzer) Name() string { return FactorRankProgression }

func (RankProgressionAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Ranks) < rankProgressionMinSnapshots {
		return Factor{}, false
	}

	first := b.Ranks[0]
	last := b.Ranks[len(b.Ranks)-1]
	days := last.CapturedAt.Sub(first.CapturedAt).Hours() / 24
	if days <= 0 {
		return Factor{}, false
	}

	climb := rankValue(last) - rankValue(first)
	lpPerDay := climb / days

	return Factor{
		Name:           FactorRankProgression,
		Value:          lpPerDay,
		Score:          util.Clamp01(lpPerDay / rankProgressionScaleLP),
		MeetsThreshold: lpPerDay >= rankProgressionSuspiciousLP,
		Description: fmt.Sprintf("%.0f LP climbed over %.0f days (%s -> %s)",
			climb, days, first.Tier, last.Tier),
	}, true
}

// RankDiscrepancyAnalyzer compares in-game performance against what
// is normal for the player's current tier. Posting diamond-level
// numbers in silver means the ladder position lags the skill.
type RankDiscrepancyAnalyzer struct{}

func (RankDiscrepancyAnalyzer) Name() string { return FactorRankDiscrepancy }

func (RankDiscrepancyAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Matches) < rankDiscrepancyMinMatches || len(b.Ranks) == 0 {
		return Factor{}, false
	}

	current := b.Ranks[len(b.Ranks)-1]
	expected, ok := tierExpectedKDA[current.Tier]
	if !ok {
		return Factor{}, false
	}

	avg := avgKDAOf(b.Matches)
	ratio := avg / expected

	return Factor{
		Name:           FactorRankDiscrepancy,
		Value:          ratio,
		Score:          util.Clamp01((ratio - 1) / rankDiscrepancyThreshold),
		MeetsThreshold: ratio >= rankDiscrepancyThreshold,
		Description: fmt.Sprintf("KDA %.2f vs %.1f expected at %s",
			avg, expected, current.Tier),
	}, true
}

// Package detect is the smurf-detection scoring pipeline: a set of
// independent factor analyzers whose normalized scores are combined
// into a weighted overall score and confidence tier.
package detect

import (
	"fmt"

	"github.com/riftwatch/smurfwatch/store"
)

// Analyzer names. These are stable identifiers: they key the weight
// configuration and the per-factor score columns.
const (
	FactorWinRate          = "win_rate"
	FactorWinRateTrend     = "win_rate_trend"
	FactorKDA              = "kda"
	FactorAccountLevel     = "account_level"
	FactorRankProgression  = "rank_progression"
	FactorRankDiscrepancy  = "rank_discrepancy"
	FactorPerformanceTrend = "performance_trend"
	FactorConsistency      = "consistency"
	FactorVersatility      = "versatility"
)

// Factor is one analyzer's verdict: the raw metric it measured, a
// normalized score in [0,1], and whether the metric crossed the
// analyzer's own suspicion threshold. Factors are recomputed on every
// run and never persisted individually.
type Factor struct {
	Name           string
	Value          float64
	Score          float64
	MeetsThreshold bool
	Description    string
}

// Bundle is the data one analysis run works from. Matches are newest
// first; rank snapshots oldest first. Analyzers treat the bundle as
// read-only.
type Bundle struct {
	Player  *store.Player
	Matches []*store.MatchRecord
	Ranks   []*store.RankSnapshot
}

// Analyzer computes one detection factor from a bundle. ok=false
// means the analyzer lacked the data to produce a meaningful score;
// the factor is then excluded from aggregation and its score column
// stays null.
type Analyzer interface {
	Name() string
	Analyze(b *Bundle) (f Factor, ok bool)
}

// kdaOf computes one match's kill/death/assist ratio. With zero
// deaths the ratio is kills+assists.
func kdaOf(m *store.MatchRecord) float64 {
	if m.Deaths > 0 {
		return float64(m.Kills+m.Assists) / float64(m.Deaths)
	}
	return float64(m.Kills + m.Assists)
}

func winRateOf(matches []*store.MatchRecord) float64 {
	if len(matches) == 0 {
		return 0
	}
	wins := 0
	for _, m := range matches {
		if m.Win {
			wins++
		}
	}
	return float64(wins) / float64(len(matches))
}

func avgKDAOf(matches []*store.MatchRecord) float64 {
	if len(matches) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range matches {
		sum += kdaOf(m)
	}
	return sum / float64(len(matches))
}

func trendWord(improvement, threshold float64) string {
	switch {
	case improvement > threshold:
		return "improving"
	case improvement < -threshold:
		return "declining"
	default:
		return "stable"
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

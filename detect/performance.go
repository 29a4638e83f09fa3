package detect

import (
	"fmt"
	"math"

	"github.com/riftwatch/smurfwatch/internal/util"
)

const (
	kdaMinMatches = 5

	performanceTrendMinMatches = 20
	performanceTrendThreshold  = 0.2

	consistencyMinMatches = 10
	consistencyMinKDA     = 3.0
	consistencyMaxCV      = 0.5
)

// KDAAnalyzer scores the average kill/death/assist ratio against a
// configurable threshold.
type KDAAnalyzer struct {
	// Threshold is the average KDA considered suspicious, e.g. 4.0.
	Threshold float64
}

func (KDAAnalyzer) Name() string { return FactorKDA }

func (a KDAAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Matches) < kdaMinMatches || a.Threshold <= 0 {
		return Factor{}, false
	}

	avg := avgKDAOf(b.Matches)
	meets := avg >= a.Threshold
	score := 0.0
	if meets {
		score = math.Min(1, avg/a.Threshold)
	}

	return Factor{
		Name:           FactorKDA,
		Value:          avg,
		Score:          score,
		MeetsThreshold: meets,
		Description: fmt.Sprintf("average KDA %.2f over %d matches (threshold %.1f)",
			avg, len(b.Matches), a.Threshold),
	}, true
}

// PerformanceTrendAnalyzer compares average KDA between the newer and
// older halves of the bundle, as relative improvement over the older
// half's level.
type PerformanceTrendAnalyzer struct{}

func (PerformanceTrendAnalyzer) Name() string { return FactorPerformanceTrend }

func (PerformanceTrendAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Matches) < performanceTrendMinMatches {
		return Factor{}, false
	}

	mid := len(b.Matches) / 2
	recent := avgKDAOf(b.Matches[:mid])
	older := avgKDAOf(b.Matches[mid:])

	var relative float64
	if older > 0 {
		relative = (recent - older) / older
	} else if recent > 0 {
		relative = 1
	}

	return Factor{
		Name:           FactorPerformanceTrend,
		Value:          relative,
		Score:          util.Clamp01(relative),
		MeetsThreshold: relative > performanceTrendThreshold,
		Description: fmt.Sprintf("performance %s: KDA %.2f recent vs %.2f older",
			trendWord(relative, performanceTrendThreshold), recent, older),
	}, true
}

// ConsistencyAnalyzer measures how evenly a player performs. New
// players are erratic; smurfs post a high KDA with a low coefficient
// of variation across matches.
type ConsistencyAnalyzer struct{}

func (ConsistencyAnalyzer) Name() string { return FactorConsistency }

func (ConsistencyAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Matches) < consistencyMinMatches {
		return Factor{}, false
	}

	kdas := make([]float64, len(b.Matches))
	for i, m := range b.Matches {
		kdas[i] = kdaOf(m)
	}
	mean := util.Mean(kdas)
	if mean == 0 {
		return Factor{
			Name:        FactorConsistency,
			Description: "zero average KDA",
		}, true
	}

	variance := 0.0
	for _, k := range kdas {
		variance += (k - mean) * (k - mean)
	}
	variance /= float64(len(kdas))
	cv := math.Sqrt(variance) / mean

	meets := cv <= consistencyMaxCV && mean >= consistencyMinKDA
	score := 0.0
	if mean >= consistencyMinKDA {
		score = util.Clamp01(1 - cv)
	}

	return Factor{
		Name:           FactorConsistency,
		Value:          cv,
		Score:          score,
		MeetsThreshold: meets,
		Description: fmt.Sprintf("KDA variation %.2f around mean %.2f",
			cv, mean),
	}, true
}

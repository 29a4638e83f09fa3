package detect

import (
	"fmt"

	"github.com/riftwatch/smurfwatch/internal/util"
)

const (
	winRateMinMatches      = 5
	winRateBaseline        = 0.5
	winRateSuspicious      = 0.65
	winRateTrendMinMatches = 10
	winRateTrendThreshold  = 0.15
)

// WinRateAnalyzer flags overall win rates well above the matchmaking
// baseline. A balanced matchmaker pulls established accounts toward
// 50%; a sustained rate far above it on a young account is the
// classic smurf signature.
type WinRateAnalyzer struct{}

func (WinRateAnalyzer) Name() string { return FactorWinRate }

func (WinRateAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Matches) < winRateMinMatches {
		return Factor{}, false
	}

	wr := winRateOf(b.Matches)
	return Factor{
		Name:           FactorWinRate,
		Value:          wr,
		Score:          util.Clamp01((wr - winRateBaseline) / (1 - winRateBaseline)),
		MeetsThreshold: wr >= winRateSuspicious,
		Description: fmt.Sprintf("win rate %s over %d matches",
			pct(wr), len(b.Matches)),
	}, true
}

// WinRateTrendAnalyzer compares the newer half of the bundle against
// the older half. A genuinely new player improves slowly; a smurf's
// win rate is high from the start or jumps once placement settles.
type WinRateTrendAnalyzer struct{}

func (WinRateTrendAnalyzer) Name() string { return FactorWinRateTrend }

func (WinRateTrendAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Matches) < winRateTrendMinMatches {
		return Factor{}, false
	}

	mid := len(b.Matches) / 2
	recent := winRateOf(b.Matches[:mid]) // newest-first ordering
	older := winRateOf(b.Matches[mid:])
	improvement := recent - older

	return Factor{
		Name:           FactorWinRateTrend,
		Value:          improvement,
		Score:          util.Clamp01(improvement / 0.5),
		MeetsThreshold: improvement > winRateTrendThreshold,
		Description: fmt.Sprintf("win rate %s: %s recent vs %s older",
			trendWord(improvement, winRateTrendThreshold), pct(recent), pct(older)),
	}, true
}

package detect

import (
	"fmt"

	"github.com/riftwatch/smurfwatch/internal/util"
)

const (
	versatilityMinMatches   = 10
	versatilityMinWinRate   = 0.55
	versatilityChampionPool = 8.0
)

// VersatilityAnalyzer looks at how wide a winning champion pool is.
// New players grind one or two champions while learning; an account
// that wins across many champions from the start was not learning
// them here.
type VersatilityAnalyzer struct{}

func (VersatilityAnalyzer) Name() string { return FactorVersatility }

func (VersatilityAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if len(b.Matches) < versatilityMinMatches {
		return Factor{}, false
	}

	champions := make(map[string]bool)
	for _, m := range b.Matches {
		if m.Champion != "" {
			champions[m.Champion] = true
		}
	}
	distinct := len(champions)
	wr := winRateOf(b.Matches)

	score := 0.0
	if wr >= versatilityMinWinRate {
		score = util.Clamp01(float64(distinct) / versatilityChampionPool)
	}

	return Factor{
		Name:           FactorVersatility,
		Value:          float64(distinct),
		Score:          score,
		MeetsThreshold: distinct >= 5 && wr >= versatilityMinWinRate,
		Description: fmt.Sprintf("%d champions across %d matches at %s win rate",
			distinct, len(b.Matches), pct(wr)),
	}, true
}

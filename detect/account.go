package detect

import (
	"fmt"

	"github.com/riftwatch/smurfwatch/internal/util"
)

const (
	// accountLevelCeiling is where account age stops carrying signal:
	// at this level and beyond the factor scores zero.
	accountLevelCeiling    = 100
	accountLevelSuspicious = 40
)

// AccountLevelAnalyzer scores how young the account is. Strong play
// on a low-level account is suspicious on its own; combined with the
// performance factors it is the strongest single discriminator.
type AccountLevelAnalyzer struct{}

func (AccountLevelAnalyzer) Name() string { return FactorAccountLevel }

func (AccountLevelAnalyzer) Analyze(b *Bundle) (Factor, bool) {
	if b.Player == nil || b.Player.AccountLevel <= 0 {
		return Factor{}, false
	}

	level := float64(b.Player.AccountLevel)
	return Factor{
		Name:           FactorAccountLevel,
		Value:          level,
		Score:          util.Clamp01(1 - level/accountLevelCeiling),
		MeetsThreshold: level <= accountLevelSuspicious,
		Description:    fmt.Sprintf("account level %d", b.Player.AccountLevel),
	}, true
}

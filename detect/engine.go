package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riftwatch/smurfwatch/errors"
	"github.com/riftwatch/smurfwatch/store"
)

const (
	ConfidenceHigh             = "high"
	ConfidenceMedium           = "medium"
	ConfidenceLow              = "low"
	ConfidenceNone             = "none"
	ConfidenceInsufficientData = "insufficient_data"
)

// bundleMatchLimit caps how much history one analysis loads.
const bundleMatchLimit = 100

const rankedSoloQueue = "RANKED_SOLO_5x5"

// Settings are the tunable knobs of the scoring pipeline. They can be
// swapped at runtime via UpdateSettings, which the config watcher
// calls on file change.
type Settings struct {
	// Weights maps factor names to their share of the overall score.
	// The engine normalizes by the total weight of the factors that
	// actually ran, so they need not sum to exactly 1.
	Weights map[string]float64
	// MinGames is the sample size below which the verdict is
	// insufficient_data regardless of score.
	MinGames int
	// Freshness is how long a persisted analysis satisfies new
	// requests without recomputation.
	Freshness time.Duration
	// KDAThreshold is the average KDA the kda factor flags at.
	KDAThreshold float64
	// HighThreshold, MediumThreshold and LowThreshold are the
	// descending score cutoffs for the confidence tiers.
	HighThreshold   float64
	MediumThreshold float64
	LowThreshold    float64
}

// Engine runs the analyzer set over a player's stored history and
// persists the aggregate verdict. One engine is constructed at
// process start and shared; all methods are safe for concurrent use.
type Engine struct {
	players  *store.PlayerStore
	matches  *store.MatchStore
	ranks    *store.RankStore
	analyses *store.AnalysisStore
	logger   *zap.SugaredLogger

	mu       sync.RWMutex
	settings Settings

	timeNow func() time.Time
}

// NewEngine creates a detection engine over the given stores.
func NewEngine(
	players *store.PlayerStore,
	matches *store.MatchStore,
	ranks *store.RankStore,
	analyses *store.AnalysisStore,
	settings Settings,
	logger *zap.SugaredLogger,
) *Engine {
	return &Engine{
		players:  players,
		matches:  matches,
		ranks:    ranks,
		analyses: analyses,
		settings: settings,
		logger:   logger,
		timeNow:  time.Now,
	}
}

// UpdateSettings swaps the scoring knobs. In-flight analyses finish
// with the settings they started with.
func (e *Engine) UpdateSettings(s Settings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.logger.Infow("Detection settings updated",
		"min_games", s.MinGames,
		"freshness", s.Freshness,
		"weights", s.Weights)
}

// Settings returns a snapshot of the current scoring knobs.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// analyzers builds the analyzer set for one run from a settings
// snapshot.
func analyzers(s Settings) []Analyzer {
	return []Analyzer{
		WinRateAnalyzer{},
		WinRateTrendAnalyzer{},
		KDAAnalyzer{Threshold: s.KDAThreshold},
		AccountLevelAnalyzer{},
		RankProgressionAnalyzer{},
		RankDiscrepancyAnalyzer{},
		PerformanceTrendAnalyzer{},
		ConsistencyAnalyzer{},
		VersatilityAnalyzer{},
	}
}

// Analyze scores one player. Unless force is set, a persisted
// analysis younger than the freshness window is returned as-is with
// zero analyzer invocations.
func (e *Engine) Analyze(ctx context.Context, puuid string, force bool) (*store.PlayerAnalysis, error) {
	settings := e.Settings()
	now := e.timeNow()

	if !force {
		cached, err := e.analyses.LatestSince(ctx, puuid, now.Add(-settings.Freshness))
		if err == nil {
			e.logger.Debugw("Analysis cache hit", "puuid", puuid, "analysis_id", cached.ID)
			return cached, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	player, err := e.players.Get(ctx, puuid)
	if err != nil {
		return nil, err
	}
	matches, err := e.matches.RecentForPlayer(ctx, puuid, bundleMatchLimit)
	if err != nil {
		return nil, err
	}
	ranks, err := e.ranks.ForPlayer(ctx, puuid, rankedSoloQueue, bundleMatchLimit)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{Player: player, Matches: matches, Ranks: ranks}
	factors := e.runAnalyzers(settings, bundle)

	analysis := e.aggregate(settings, puuid, len(matches), factors)
	if err := e.analyses.Insert(ctx, analysis); err != nil {
		return nil, err
	}

	e.logger.Infow("Player analyzed",
		"puuid", puuid,
		"score", analysis.OverallScore,
		"confidence", analysis.Confidence,
		"is_smurf", analysis.IsSmurf,
		"sample_size", analysis.SampleSize,
		"factors", len(factors))
	return analysis, nil
}

// runAnalyzers runs each analyzer, converting panics into zero-score
// factors so one bad analyzer cannot abort the run.
func (e *Engine) runAnalyzers(settings Settings, bundle *Bundle) []Factor {
	var factors []Factor
	for _, a := range analyzers(settings) {
		if f, ok := e.runOne(a, bundle); ok {
			factors = append(factors, f)
		}
	}
	return factors
}

func (e *Engine) runOne(a Analyzer, bundle *Bundle) (f Factor, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("Analyzer panicked, scoring zero",
				"analyzer", a.Name(),
				"panic", r)
			f = Factor{
				Name:        a.Name(),
				Description: fmt.Sprintf("analyzer error: %v", r),
			}
			ok = true
		}
	}()
	return a.Analyze(bundle)
}

// aggregate combines factor scores into the persisted verdict.
func (e *Engine) aggregate(settings Settings, puuid string, sampleSize int, factors []Factor) *store.PlayerAnalysis {
	var weighted, totalWeight float64
	for _, f := range factors {
		w := settings.Weights[f.Name]
		weighted += f.Score * w
		totalWeight += w
	}

	score := 0.0
	if totalWeight > 0 {
		score = weighted / totalWeight
	}
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	confidence := e.tier(settings, score, sampleSize)

	analysis := &store.PlayerAnalysis{
		PUUID:        puuid,
		OverallScore: score,
		Confidence:   confidence,
		IsSmurf:      confidence != ConfidenceNone && confidence != ConfidenceInsufficientData,
		SampleSize:   sampleSize,
		CreatedAt:    e.timeNow(),
	}
	for _, f := range factors {
		s := f.Score
		switch f.Name {
		case FactorWinRate:
			analysis.WinRateScore = &s
		case FactorWinRateTrend:
			analysis.WinRateTrendScore = &s
		case FactorKDA:
			analysis.KDAScore = &s
		case FactorAccountLevel:
			analysis.AccountLevelScore = &s
		case FactorRankProgression:
			analysis.RankProgressionScore = &s
		case FactorRankDiscrepancy:
			analysis.RankDiscrepancyScore = &s
		case FactorPerformanceTrend:
			analysis.PerformanceTrendScore = &s
		case FactorConsistency:
			analysis.ConsistencyScore = &s
		case FactorVersatility:
			analysis.VersatilityScore = &s
		}
	}
	return analysis
}

// tier maps (score, sample size) to a confidence tier.
func (e *Engine) tier(settings Settings, score float64, sampleSize int) string {
	if sampleSize < settings.MinGames {
		return ConfidenceInsufficientData
	}
	switch {
	case score >= settings.HighThreshold:
		return ConfidenceHigh
	case score >= settings.MediumThreshold:
		return ConfidenceMedium
	case score >= settings.LowThreshold:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

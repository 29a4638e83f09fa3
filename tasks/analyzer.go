package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/riftwatch/smurfwatch/jobs"
)

type analyzerPayload struct {
	PlayersPerRun int
	MinGames      int
}

func decodeAnalyzerPayload(raw json.RawMessage) (analyzerPayload, error) {
	var keys struct {
		PlayersPerRun *int `json:"players_per_run"`
		MinGames      *int `json:"min_games"`
	}
	if err := decodePayload(raw, &keys); err != nil {
		return analyzerPayload{}, err
	}

	var p analyzerPayload
	var err error
	if p.PlayersPerRun, err = requirePositive("players_per_run", keys.PlayersPerRun); err != nil {
		return analyzerPayload{}, err
	}
	if p.MinGames, err = requirePositive("min_games", keys.MinGames); err != nil {
		return analyzerPayload{}, err
	}
	return p, nil
}

// Analyzer runs the detection engine over players that have enough
// match data and no fresh analysis. It makes no API calls; its work
// is purely local scoring.
type Analyzer struct {
	deps    Deps
	payload analyzerPayload
}

func (a *Analyzer) Type() jobs.JobType { return jobs.JobTypeAnalyzer }

func (a *Analyzer) Execute(ctx context.Context, rec *jobs.Recorder) jobs.Outcome {
	var c jobs.Counters

	freshness := a.deps.Engine.Settings().Freshness
	cutoff := time.Now().Add(-freshness)
	players, err := a.deps.Players.NeedingAnalysis(ctx, a.payload.MinGames, cutoff, a.payload.PlayersPerRun)
	if err != nil {
		return jobs.Failed(err, c)
	}
	rec.Logf("analyzing %d players (min %d games)", len(players), a.payload.MinGames)

	flagged := 0
	for _, p := range players {
		if ctx.Err() != nil {
			return jobs.Failed(ctx.Err(), c)
		}

		analysis, err := a.deps.Engine.Analyze(ctx, p.PUUID, false)
		if err != nil {
			rec.Logf("player %s: analysis failed: %v", p.PUUID, err)
			continue
		}
		c.RecordsCreated++
		if analysis.IsSmurf {
			flagged++
			rec.Logf("player %s flagged: score %.2f confidence %s",
				p.PUUID, analysis.OverallScore, analysis.Confidence)
		}
	}

	rec.Logf("flagged %d of %d analyzed players", flagged, c.RecordsCreated)
	return jobs.Success(c)
}

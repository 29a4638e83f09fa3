package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/riftwatch/smurfwatch/jobs"
	"github.com/riftwatch/smurfwatch/riot"
	"github.com/riftwatch/smurfwatch/store"
)

type matchFetcherPayload struct {
	DiscoveredPerRun       int
	MatchesPerPlayerRun    int
	TargetMatchesPerPlayer int
}

func decodeMatchFetcherPayload(raw json.RawMessage) (matchFetcherPayload, error) {
	var keys struct {
		DiscoveredPerRun       *int `json:"discovered_players_per_run"`
		MatchesPerPlayerRun    *int `json:"matches_per_player_per_run"`
		TargetMatchesPerPlayer *int `json:"target_matches_per_player"`
	}
	if err := decodePayload(raw, &keys); err != nil {
		return matchFetcherPayload{}, err
	}

	var p matchFetcherPayload
	var err error
	if p.DiscoveredPerRun, err = requirePositive("discovered_players_per_run", keys.DiscoveredPerRun); err != nil {
		return matchFetcherPayload{}, err
	}
	if p.MatchesPerPlayerRun, err = requirePositive("matches_per_player_per_run", keys.MatchesPerPlayerRun); err != nil {
		return matchFetcherPayload{}, err
	}
	if p.TargetMatchesPerPlayer, err = requirePositive("target_matches_per_player", keys.TargetMatchesPerPlayer); err != nil {
		return matchFetcherPayload{}, err
	}
	return p, nil
}

// MatchFetcher pulls match history for players below their match
// target: tracked players first, then a bounded batch of discovered
// players. Every match participant it has not seen before becomes a
// discovered player.
type MatchFetcher struct {
	deps    Deps
	payload matchFetcherPayload
}

func (f *MatchFetcher) Type() jobs.JobType { return jobs.JobTypeMatchFetcher }

func (f *MatchFetcher) Execute(ctx context.Context, rec *jobs.Recorder) jobs.Outcome {
	requestsBefore := f.deps.Client.Requests()
	var c jobs.Counters
	counters := func() jobs.Counters {
		c.APIRequests = int(f.deps.Client.Requests() - requestsBefore)
		return c
	}

	tracked, err := f.deps.Players.BelowMatchTarget(ctx, true, f.payload.TargetMatchesPerPlayer, f.payload.DiscoveredPerRun)
	if err != nil {
		return jobs.Failed(err, counters())
	}
	discovered, err := f.deps.Players.BelowMatchTarget(ctx, false, f.payload.TargetMatchesPerPlayer, f.payload.DiscoveredPerRun)
	if err != nil {
		return jobs.Failed(err, counters())
	}
	rec.Logf("fetching matches for %d tracked and %d discovered players", len(tracked), len(discovered))

	for _, p := range append(tracked, discovered...) {
		if ctx.Err() != nil {
			return jobs.Failed(ctx.Err(), counters())
		}
		if outcome, done := f.fetchFor(ctx, rec, p, &c); done {
			outcome.Counters = counters()
			return outcome
		}
	}

	return jobs.Success(counters())
}

// fetchFor pulls up to the per-run budget of new matches for one
// player.
func (f *MatchFetcher) fetchFor(ctx context.Context, rec *jobs.Recorder, p *store.Player, c *jobs.Counters) (jobs.Outcome, bool) {
	ids, err := f.deps.Client.GetMatchIDs(ctx, p.PUUID, 0, f.payload.MatchesPerPlayerRun)
	if outcome, done := classify(rec, err, p.PUUID); done {
		return outcome, true
	} else if err != nil {
		return jobs.Outcome{}, false
	}

	fetched := 0
	for _, id := range ids {
		seen, err := f.deps.Matches.HasMatch(ctx, id, p.PUUID)
		if err != nil {
			return jobs.Failed(err, *c), true
		}
		if seen {
			continue
		}

		match, err := f.deps.Client.GetMatch(ctx, id)
		if outcome, done := classify(rec, err, p.PUUID); done {
			return outcome, true
		} else if err != nil {
			continue
		}

		if outcome, done := f.record(ctx, p, match, c); done {
			return outcome, true
		}
		fetched++
	}
	if fetched > 0 {
		rec.Logf("player %s: %d new matches", p.PUUID, fetched)
	}

	if err := f.deps.Players.MarkFetched(ctx, p.PUUID, time.Now()); err != nil {
		return jobs.Failed(err, *c), true
	}
	return jobs.Outcome{}, false
}

// record stores the player's own line of the match and registers
// every unseen participant as a discovered player.
func (f *MatchFetcher) record(ctx context.Context, p *store.Player, match *riot.Match, c *jobs.Counters) (jobs.Outcome, bool) {
	playedAt := time.UnixMilli(match.Info.GameCreation)

	for _, part := range match.Info.Participants {
		if part.PUUID == p.PUUID {
			created, err := f.deps.Matches.Insert(ctx, &store.MatchRecord{
				MatchID:       match.Metadata.MatchID,
				PUUID:         p.PUUID,
				QueueID:       match.Info.QueueID,
				Champion:      part.ChampionName,
				Role:          part.TeamPosition,
				Win:           part.Win,
				Kills:         part.Kills,
				Deaths:        part.Deaths,
				Assists:       part.Assists,
				CreepScore:    part.TotalMinionsKilled + part.NeutralMinionsKilled,
				VisionScore:   part.VisionScore,
				GameDurationS: match.Info.GameDuration,
				PlayedAt:      playedAt,
			})
			if err != nil {
				return jobs.Failed(err, *c), true
			}
			if created {
				c.RecordsCreated++
			}
			continue
		}

		// Participant discovery: unseen co-players enter the table
		// untracked and become analysis candidates later.
		if _, err := f.deps.Players.Get(ctx, part.PUUID); err == nil {
			continue
		}
		if err := f.deps.Players.Upsert(ctx, &store.Player{
			PUUID:    part.PUUID,
			GameName: part.RiotIDGameName,
			TagLine:  part.RiotIDTagline,
			Region:   p.Region,
		}); err != nil {
			return jobs.Failed(err, *c), true
		}
		c.RecordsCreated++
	}
	return jobs.Outcome{}, false
}

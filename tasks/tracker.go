package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/riftwatch/smurfwatch/jobs"
	"github.com/riftwatch/smurfwatch/riot"
	"github.com/riftwatch/smurfwatch/store"
)

type trackerPayload struct {
	PlayersPerRun int
}

func decodeTrackerPayload(raw json.RawMessage) (trackerPayload, error) {
	var keys struct {
		PlayersPerRun *int `json:"players_per_run"`
	}
	if err := decodePayload(raw, &keys); err != nil {
		return trackerPayload{}, err
	}
	perRun, err := requirePositive("players_per_run", keys.PlayersPerRun)
	if err != nil {
		return trackerPayload{}, err
	}
	return trackerPayload{PlayersPerRun: perRun}, nil
}

// TrackerUpdater refreshes identity, account level and ranked
// standing for tracked players, least recently refreshed first.
type TrackerUpdater struct {
	deps    Deps
	payload trackerPayload
}

func (t *TrackerUpdater) Type() jobs.JobType { return jobs.JobTypeTrackerUpdater }

func (t *TrackerUpdater) Execute(ctx context.Context, rec *jobs.Recorder) jobs.Outcome {
	requestsBefore := t.deps.Client.Requests()
	var c jobs.Counters
	counters := func() jobs.Counters {
		c.APIRequests = int(t.deps.Client.Requests() - requestsBefore)
		return c
	}

	players, err := t.deps.Players.Tracked(ctx, t.payload.PlayersPerRun)
	if err != nil {
		return jobs.Failed(err, counters())
	}
	rec.Logf("refreshing %d tracked players", len(players))

	for _, p := range players {
		if ctx.Err() != nil {
			return jobs.Failed(ctx.Err(), counters())
		}

		outcome, done := t.refresh(ctx, rec, p, &c)
		if done {
			outcome.Counters = counters()
			return outcome
		}
	}

	return jobs.Success(counters())
}

// refresh updates one player. done=true means the whole run must end
// with the returned outcome.
func (t *TrackerUpdater) refresh(ctx context.Context, rec *jobs.Recorder, p *store.Player, c *jobs.Counters) (jobs.Outcome, bool) {
	account, err := t.deps.Client.GetAccountByPUUID(ctx, p.PUUID)
	if outcome, done := classify(rec, err, p.PUUID); done {
		return outcome, true
	} else if err != nil {
		return jobs.Outcome{}, false
	}

	summoner, err := t.deps.Client.GetSummonerByPUUID(ctx, p.PUUID)
	if outcome, done := classify(rec, err, p.PUUID); done {
		return outcome, true
	} else if err != nil {
		return jobs.Outcome{}, false
	}

	p.GameName = account.GameName
	p.TagLine = account.TagLine
	p.SummonerID = summoner.ID
	p.AccountLevel = summoner.SummonerLevel
	p.ProfileIconID = summoner.ProfileIconID
	if err := t.deps.Players.Upsert(ctx, p); err != nil {
		return jobs.Failed(err, *c), true
	}
	c.RecordsUpdated++

	entries, err := t.deps.Client.GetLeagueEntriesByPUUID(ctx, p.PUUID)
	if outcome, done := classify(rec, err, p.PUUID); done {
		return outcome, true
	} else if err == nil {
		for _, entry := range entries {
			if err := t.deps.Ranks.Insert(ctx, &store.RankSnapshot{
				PUUID:        p.PUUID,
				QueueType:    entry.QueueType,
				Tier:         entry.Tier,
				Division:     entry.Rank,
				LeaguePoints: entry.LeaguePoints,
				Wins:         entry.Wins,
				Losses:       entry.Losses,
			}); err != nil {
				return jobs.Failed(err, *c), true
			}
			c.RecordsCreated++
		}
	}

	if err := t.deps.Players.MarkFetched(ctx, p.PUUID, time.Now()); err != nil {
		return jobs.Failed(err, *c), true
	}
	return jobs.Outcome{}, false
}

// classify maps an API error to run control: rate limits end the run
// as partial success, auth errors are always fatal, not-found and
// transient errors skip the current player.
func classify(rec *jobs.Recorder, err error, puuid string) (jobs.Outcome, bool) {
	if err == nil {
		return jobs.Outcome{}, false
	}
	if rl, ok := riot.IsRateLimited(err); ok {
		rec.Logf("rate limited, checkpointing (retry after %s)", rl.RetryAfter)
		return jobs.RateLimited(rl.RetryAfter, jobs.Counters{}), true
	}
	if riot.IsAuthError(err) {
		rec.Logf("fatal: %v", err)
		return jobs.Failed(err, jobs.Counters{}), true
	}
	if riot.IsNotFound(err) {
		rec.Logf("player %s not found, skipping", puuid)
		return jobs.Outcome{}, false
	}
	rec.Logf("player %s: %v, skipping", puuid, err)
	return jobs.Outcome{}, false
}

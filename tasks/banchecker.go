package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/riftwatch/smurfwatch/jobs"
	"github.com/riftwatch/smurfwatch/riot"
)

type banCheckerPayload struct {
	BanCheckDays    int
	MaxChecksPerRun int
}

func decodeBanCheckerPayload(raw json.RawMessage) (banCheckerPayload, error) {
	var keys struct {
		BanCheckDays    *int `json:"ban_check_days"`
		MaxChecksPerRun *int `json:"max_checks_per_run"`
	}
	if err := decodePayload(raw, &keys); err != nil {
		return banCheckerPayload{}, err
	}

	var p banCheckerPayload
	var err error
	if p.BanCheckDays, err = requirePositive("ban_check_days", keys.BanCheckDays); err != nil {
		return banCheckerPayload{}, err
	}
	if p.MaxChecksPerRun, err = requirePositive("max_checks_per_run", keys.MaxChecksPerRun); err != nil {
		return banCheckerPayload{}, err
	}
	return p, nil
}

// BanChecker re-checks flagged players against the API. A summoner
// lookup returning not-found means the account is gone — banned or
// deleted — which is the outcome the flag predicted.
type BanChecker struct {
	deps    Deps
	payload banCheckerPayload
}

func (b *BanChecker) Type() jobs.JobType { return jobs.JobTypeBanChecker }

func (b *BanChecker) Execute(ctx context.Context, rec *jobs.Recorder) jobs.Outcome {
	requestsBefore := b.deps.Client.Requests()
	var c jobs.Counters
	counters := func() jobs.Counters {
		c.APIRequests = int(b.deps.Client.Requests() - requestsBefore)
		return c
	}

	cutoff := time.Now().Add(-time.Duration(b.payload.BanCheckDays) * 24 * time.Hour)
	players, err := b.deps.Players.FlaggedForBanCheck(ctx, cutoff, b.payload.MaxChecksPerRun)
	if err != nil {
		return jobs.Failed(err, counters())
	}
	rec.Logf("checking %d flagged players", len(players))

	banned := 0
	for _, p := range players {
		if ctx.Err() != nil {
			return jobs.Failed(ctx.Err(), counters())
		}

		_, err := b.deps.Client.GetSummonerByPUUID(ctx, p.PUUID)
		isGone := riot.IsNotFound(err)
		if err != nil && !isGone {
			if outcome, done := classify(rec, err, p.PUUID); done {
				outcome.Counters = counters()
				return outcome
			}
			continue
		}

		if err := b.deps.Players.MarkBanChecked(ctx, p.PUUID, isGone, time.Now()); err != nil {
			return jobs.Failed(err, counters())
		}
		c.RecordsUpdated++
		if isGone {
			banned++
			rec.Logf("player %s is gone, marking banned", p.PUUID)
		}
	}

	rec.Logf("confirmed %d bans out of %d checks", banned, c.RecordsUpdated)
	return jobs.Success(counters())
}

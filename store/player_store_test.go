package store

import (
	"context"
	"testing"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
	smtest "github.com/riftwatch/smurfwatch/internal/testing"
)

func seedPlayer(t *testing.T, s *PlayerStore, puuid string, tracked bool) *Player {
	t.Helper()
	p := &Player{
		PUUID:        puuid,
		GameName:     "Player" + puuid,
		TagLine:      "EUW",
		Region:       "euw1",
		AccountLevel: 50,
		Tracked:      tracked,
	}
	if err := s.Upsert(context.Background(), p); err != nil {
		t.Fatalf("seed player %s: %v", puuid, err)
	}
	return p
}

func TestPlayerUpsertAndGet(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	s := NewPlayerStore(conn)
	ctx := context.Background()

	seedPlayer(t, s, "p1", true)

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GameName != "Playerp1" || !got.Tracked {
		t.Errorf("unexpected player %+v", got)
	}

	// Second upsert refreshes identity but keeps tracked/banned state
	if err := s.Upsert(ctx, &Player{
		PUUID: "p1", GameName: "Renamed", TagLine: "EUW", Region: "euw1",
		AccountLevel: 51,
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err = s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get after upsert: %v", err)
	}
	if got.GameName != "Renamed" {
		t.Errorf("expected rename applied, got %q", got.GameName)
	}
	if !got.Tracked {
		t.Error("upsert must not reset the tracked flag")
	}
	if got.AccountLevel != 51 {
		t.Errorf("expected account level 51, got %d", got.AccountLevel)
	}
}

func TestPlayerGetNotFound(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	s := NewPlayerStore(conn)

	_, err := s.Get(context.Background(), "missing")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTrackedOrdering(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	s := NewPlayerStore(conn)
	ctx := context.Background()

	seedPlayer(t, s, "never-fetched", true)
	seedPlayer(t, s, "stale", true)
	seedPlayer(t, s, "fresh", true)
	seedPlayer(t, s, "untracked", false)

	now := time.Now()
	if err := s.MarkFetched(ctx, "stale", now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("MarkFetched: %v", err)
	}
	if err := s.MarkFetched(ctx, "fresh", now); err != nil {
		t.Fatalf("MarkFetched: %v", err)
	}

	players, err := s.Tracked(ctx, 10)
	if err != nil {
		t.Fatalf("Tracked: %v", err)
	}
	if len(players) != 3 {
		t.Fatalf("expected 3 tracked players, got %d", len(players))
	}
	if players[0].PUUID != "never-fetched" || players[1].PUUID != "stale" {
		t.Errorf("expected never-fetched then stale first, got %s, %s",
			players[0].PUUID, players[1].PUUID)
	}
}

func TestBelowMatchTarget(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	players := NewPlayerStore(conn)
	matches := NewMatchStore(conn)
	ctx := context.Background()

	seedPlayer(t, players, "empty", true)
	seedPlayer(t, players, "full", true)
	seedPlayer(t, players, "discovered", false)

	for i := 0; i < 3; i++ {
		if _, err := matches.Insert(ctx, &MatchRecord{
			MatchID: "EUW1_" + string(rune('a'+i)), PUUID: "full",
			QueueID: 420, Champion: "Ahri", Win: true,
			PlayedAt: time.Now(),
		}); err != nil {
			t.Fatalf("insert match: %v", err)
		}
	}

	got, err := players.BelowMatchTarget(ctx, true, 3, 10)
	if err != nil {
		t.Fatalf("BelowMatchTarget: %v", err)
	}
	if len(got) != 1 || got[0].PUUID != "empty" {
		t.Fatalf("expected only the empty tracked player, got %+v", got)
	}

	got, err = players.BelowMatchTarget(ctx, false, 3, 10)
	if err != nil {
		t.Fatalf("BelowMatchTarget untracked: %v", err)
	}
	if len(got) != 1 || got[0].PUUID != "discovered" {
		t.Fatalf("expected only the discovered player, got %+v", got)
	}
}

func TestFlaggedForBanCheck(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	players := NewPlayerStore(conn)
	analyses := NewAnalysisStore(conn)
	ctx := context.Background()
	now := time.Now()

	seedPlayer(t, players, "flagged", true)
	seedPlayer(t, players, "cleared", true)
	seedPlayer(t, players, "recently-checked", true)

	mustInsertAnalysis := func(puuid string, smurf bool, at time.Time) {
		t.Helper()
		if err := analyses.Insert(ctx, &PlayerAnalysis{
			PUUID: puuid, OverallScore: 0.9, Confidence: "high",
			IsSmurf: smurf, SampleSize: 40, CreatedAt: at,
		}); err != nil {
			t.Fatalf("insert analysis: %v", err)
		}
	}

	mustInsertAnalysis("flagged", true, now)
	// Latest analysis wins: an old flag superseded by a clear result
	mustInsertAnalysis("cleared", true, now.Add(-2*time.Hour))
	mustInsertAnalysis("cleared", false, now.Add(-1*time.Hour))
	mustInsertAnalysis("recently-checked", true, now)

	if err := players.MarkBanChecked(ctx, "recently-checked", false, now); err != nil {
		t.Fatalf("MarkBanChecked: %v", err)
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	got, err := players.FlaggedForBanCheck(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("FlaggedForBanCheck: %v", err)
	}
	if len(got) != 1 || got[0].PUUID != "flagged" {
		t.Fatalf("expected only the flagged unchecked player, got %d players", len(got))
	}
}

func TestMarkBanCheckedBanned(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	s := NewPlayerStore(conn)
	ctx := context.Background()

	seedPlayer(t, s, "p1", true)
	if err := s.MarkBanChecked(ctx, "p1", true, time.Now()); err != nil {
		t.Fatalf("MarkBanChecked: %v", err)
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Banned || got.BanCheckedAt == nil {
		t.Errorf("expected banned with check timestamp, got %+v", got)
	}

	// Banned players drop out of every work queue
	if tracked, err := s.Tracked(ctx, 10); err != nil || len(tracked) != 0 {
		t.Errorf("banned player still listed as tracked: %v, %v", tracked, err)
	}
}

func TestNeedingAnalysis(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	players := NewPlayerStore(conn)
	matches := NewMatchStore(conn)
	analyses := NewAnalysisStore(conn)
	ctx := context.Background()
	now := time.Now()

	seedPlayer(t, players, "ready", true)
	seedPlayer(t, players, "thin", true)
	seedPlayer(t, players, "fresh-analysis", true)

	addMatches := func(puuid string, n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			if _, err := matches.Insert(ctx, &MatchRecord{
				MatchID: puuid + "-m" + string(rune('a'+i)), PUUID: puuid,
				QueueID: 420, Champion: "Zed", PlayedAt: now,
			}); err != nil {
				t.Fatalf("insert match: %v", err)
			}
		}
	}
	addMatches("ready", 5)
	addMatches("thin", 2)
	addMatches("fresh-analysis", 5)

	if err := analyses.Insert(ctx, &PlayerAnalysis{
		PUUID: "fresh-analysis", OverallScore: 0.1, Confidence: "none",
		SampleSize: 5, CreatedAt: now,
	}); err != nil {
		t.Fatalf("insert analysis: %v", err)
	}

	got, err := players.NeedingAnalysis(ctx, 5, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("NeedingAnalysis: %v", err)
	}
	if len(got) != 1 || got[0].PUUID != "ready" {
		t.Fatalf("expected only the ready player, got %d players", len(got))
	}
}

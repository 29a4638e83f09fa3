package store

import (
	"context"
	"testing"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
	smtest "github.com/riftwatch/smurfwatch/internal/testing"
	"github.com/riftwatch/smurfwatch/internal/util"
)

func TestAnalysisInsertAndLatest(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	players := NewPlayerStore(conn)
	analyses := NewAnalysisStore(conn)
	ctx := context.Background()
	now := time.Now()

	seedPlayer(t, players, "p1", true)

	old := &PlayerAnalysis{
		PUUID: "p1", OverallScore: 0.3, Confidence: "none",
		SampleSize: 30, CreatedAt: now.Add(-48 * time.Hour),
		WinRateScore: util.Ptr(0.4),
		KDAScore:     util.Ptr(0.2),
	}
	if err := analyses.Insert(ctx, old); err != nil {
		t.Fatalf("Insert old: %v", err)
	}
	if old.ID == "" {
		t.Fatal("Insert should assign an ID")
	}

	fresh := &PlayerAnalysis{
		PUUID: "p1", OverallScore: 0.85, Confidence: "high", IsSmurf: true,
		SampleSize: 42, CreatedAt: now,
		WinRateScore: util.Ptr(0.9),
	}
	if err := analyses.Insert(ctx, fresh); err != nil {
		t.Fatalf("Insert fresh: %v", err)
	}

	got, err := analyses.Latest(ctx, "p1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != fresh.ID || !got.IsSmurf {
		t.Errorf("expected the fresh analysis, got %+v", got)
	}
	if got.WinRateScore == nil || *got.WinRateScore != 0.9 {
		t.Errorf("factor score lost in round trip: %+v", got.WinRateScore)
	}
	if got.KDAScore != nil {
		t.Error("unset factor should stay nil")
	}
}

func TestAnalysisLatestSinceFreshness(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	players := NewPlayerStore(conn)
	analyses := NewAnalysisStore(conn)
	ctx := context.Background()
	now := time.Now()

	seedPlayer(t, players, "p1", true)

	if err := analyses.Insert(ctx, &PlayerAnalysis{
		PUUID: "p1", OverallScore: 0.5, Confidence: "low",
		SampleSize: 30, CreatedAt: now.Add(-30 * time.Hour),
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// 24h window: the 30h-old analysis is stale
	_, err := analyses.LatestSince(ctx, "p1", now.Add(-24*time.Hour))
	if !errors.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for stale analysis, got %v", err)
	}

	// 48h window: same analysis is a cache hit
	got, err := analyses.LatestSince(ctx, "p1", now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("LatestSince 48h: %v", err)
	}
	if got.Confidence != "low" {
		t.Errorf("unexpected analysis %+v", got)
	}
}

func TestAnalysisReviewFlags(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	players := NewPlayerStore(conn)
	analyses := NewAnalysisStore(conn)
	ctx := context.Background()

	seedPlayer(t, players, "p1", true)

	a := &PlayerAnalysis{
		PUUID: "p1", OverallScore: 0.82, Confidence: "high", IsSmurf: true,
		SampleSize: 35,
	}
	if err := analyses.Insert(ctx, a); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := analyses.ReportFalsePositive(ctx, a.ID); err != nil {
		t.Fatalf("ReportFalsePositive: %v", err)
	}
	if err := analyses.MarkManuallyVerified(ctx, a.ID); err != nil {
		t.Fatalf("MarkManuallyVerified: %v", err)
	}

	got, err := analyses.Latest(ctx, "p1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !got.FalsePositiveReported || !got.ManuallyVerified {
		t.Errorf("review flags not persisted: %+v", got)
	}

	if err := analyses.ReportFalsePositive(ctx, "no-such-id"); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound for unknown analysis, got %v", err)
	}
}

func TestRankSnapshotsRoundTrip(t *testing.T) {
	conn := smtest.CreateTestDB(t)
	players := NewPlayerStore(conn)
	ranks := NewRankStore(conn)
	ctx := context.Background()
	now := time.Now()

	seedPlayer(t, players, "p1", true)

	tiers := []string{"SILVER", "GOLD", "PLATINUM"}
	for i, tier := range tiers {
		if err := ranks.Insert(ctx, &RankSnapshot{
			PUUID: "p1", QueueType: "RANKED_SOLO_5x5", Tier: tier,
			Division: "II", LeaguePoints: 40 + i, Wins: 20 + i*10, Losses: 10,
			CapturedAt: now.Add(time.Duration(i) * 24 * time.Hour),
		}); err != nil {
			t.Fatalf("Insert %s: %v", tier, err)
		}
	}

	snaps, err := ranks.ForPlayer(ctx, "p1", "RANKED_SOLO_5x5", 10)
	if err != nil {
		t.Fatalf("ForPlayer: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if snaps[0].Tier != "SILVER" || snaps[2].Tier != "PLATINUM" {
		t.Errorf("expected oldest first, got %s..%s", snaps[0].Tier, snaps[2].Tier)
	}

	latest, err := ranks.Latest(ctx, "p1", "RANKED_SOLO_5x5")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Tier != "PLATINUM" {
		t.Errorf("expected PLATINUM latest, got %s", latest.Tier)
	}

	if _, err := ranks.Latest(ctx, "p1", "RANKED_FLEX_SR"); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound for empty queue, got %v", err)
	}
}

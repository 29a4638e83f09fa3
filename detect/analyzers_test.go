package detect

import (
	"testing"
	"time"

	"github.com/riftwatch/smurfwatch/store"
)

// makeMatches builds n matches newest-first. build is called with the
// index (0 = newest) to fill in stats.
func makeMatches(n int, build func(i int, m *store.MatchRecord)) []*store.MatchRecord {
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	matches := make([]*store.MatchRecord, n)
	for i := 0; i < n; i++ {
		m := &store.MatchRecord{
			MatchID:  "M",
			PUUID:    "p",
			QueueID:  420,
			Champion: "Ahri",
			PlayedAt: base.Add(-time.Duration(i) * time.Hour),
		}
		build(i, m)
		matches[i] = m
	}
	return matches
}

func TestKDAOf(t *testing.T) {
	cases := []struct {
		kills, deaths, assists int
		want                   float64
	}{
		{10, 0, 5, 15.0},
		{10, 2, 4, 7.0},
		{0, 5, 0, 0.0},
		{3, 1, 3, 6.0},
	}
	for _, tc := range cases {
		m := &store.MatchRecord{Kills: tc.kills, Deaths: tc.deaths, Assists: tc.assists}
		if got := kdaOf(m); got != tc.want {
			t.Errorf("kdaOf(%d/%d/%d) = %v, want %v", tc.kills, tc.deaths, tc.assists, got, tc.want)
		}
	}
}

func TestKDAAnalyzer(t *testing.T) {
	a := KDAAnalyzer{Threshold: 4.0}

	// Average KDA 7.0, above threshold
	matches := makeMatches(6, func(i int, m *store.MatchRecord) {
		m.Kills, m.Deaths, m.Assists = 10, 2, 4
	})
	f, ok := a.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if f.Value != 7.0 {
		t.Errorf("expected average KDA 7.0, got %v", f.Value)
	}
	if !f.MeetsThreshold || f.Score != 1.0 {
		t.Errorf("expected threshold met with score 1.0, got meets=%v score=%v", f.MeetsThreshold, f.Score)
	}

	// Below threshold scores zero
	matches = makeMatches(6, func(i int, m *store.MatchRecord) {
		m.Kills, m.Deaths, m.Assists = 2, 4, 2
	})
	f, ok = a.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if f.MeetsThreshold || f.Score != 0 {
		t.Errorf("expected zero score below threshold, got meets=%v score=%v", f.MeetsThreshold, f.Score)
	}
}

func TestKDAAnalyzerInsufficientData(t *testing.T) {
	a := KDAAnalyzer{Threshold: 4.0}
	matches := makeMatches(3, func(i int, m *store.MatchRecord) { m.Kills = 20 })
	if _, ok := a.Analyze(&Bundle{Matches: matches}); ok {
		t.Error("expected analyzer to skip on a 3-match bundle")
	}
}

func TestWinRateTrendImproving(t *testing.T) {
	// Newest 5 all wins, oldest 5 all losses
	matches := makeMatches(10, func(i int, m *store.MatchRecord) {
		m.Win = i < 5
	})

	f, ok := WinRateTrendAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run on a 10-match bundle")
	}
	if f.Value != 1.0 {
		t.Errorf("expected improvement 1.0, got %v", f.Value)
	}
	if !f.MeetsThreshold {
		t.Error("expected improving trend to meet threshold")
	}
	if f.Score != 1.0 {
		t.Errorf("expected score 1.0, got %v", f.Score)
	}
}

func TestWinRateTrendGuard(t *testing.T) {
	matches := makeMatches(9, func(i int, m *store.MatchRecord) { m.Win = true })
	if _, ok := (WinRateTrendAnalyzer{}).Analyze(&Bundle{Matches: matches}); ok {
		t.Error("expected guard to skip bundles under 10 matches")
	}
}

func TestWinRateTrendDeclining(t *testing.T) {
	// Newest 5 all losses, oldest 5 all wins
	matches := makeMatches(10, func(i int, m *store.MatchRecord) {
		m.Win = i >= 5
	})
	f, ok := WinRateTrendAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if f.MeetsThreshold || f.Score != 0 {
		t.Errorf("declining trend should not score, got meets=%v score=%v", f.MeetsThreshold, f.Score)
	}
}

func TestPerformanceTrendGuard(t *testing.T) {
	matches := makeMatches(19, func(i int, m *store.MatchRecord) { m.Kills = 10 })
	if _, ok := (PerformanceTrendAnalyzer{}).Analyze(&Bundle{Matches: matches}); ok {
		t.Error("expected guard to skip bundles under 20 matches")
	}
}

func TestPerformanceTrendRelativeImprovement(t *testing.T) {
	// Older half KDA 2.0, newer half KDA 4.0: +100% relative
	matches := makeMatches(20, func(i int, m *store.MatchRecord) {
		if i < 10 {
			m.Kills, m.Deaths = 8, 2
		} else {
			m.Kills, m.Deaths = 4, 2
		}
	})
	f, ok := PerformanceTrendAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if f.Value != 1.0 {
		t.Errorf("expected relative improvement 1.0, got %v", f.Value)
	}
	if !f.MeetsThreshold {
		t.Error("expected improving performance to meet threshold")
	}
}

func TestWinRateAnalyzer(t *testing.T) {
	matches := makeMatches(20, func(i int, m *store.MatchRecord) {
		m.Win = i%4 != 0 // 75% win rate
	})
	f, ok := WinRateAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if !f.MeetsThreshold {
		t.Errorf("75%% win rate should meet threshold: %+v", f)
	}
	if f.Score <= 0 || f.Score > 1 {
		t.Errorf("score out of range: %v", f.Score)
	}
}

func TestAccountLevelAnalyzer(t *testing.T) {
	f, ok := AccountLevelAnalyzer{}.Analyze(&Bundle{
		Player: &store.Player{AccountLevel: 30},
	})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if !f.MeetsThreshold {
		t.Error("level 30 should be suspicious")
	}
	if f.Score != 0.7 {
		t.Errorf("expected score 0.7 at level 30, got %v", f.Score)
	}

	f, ok = AccountLevelAnalyzer{}.Analyze(&Bundle{
		Player: &store.Player{AccountLevel: 500},
	})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if f.MeetsThreshold || f.Score != 0 {
		t.Errorf("veteran account should score zero, got %+v", f)
	}

	if _, ok := (AccountLevelAnalyzer{}).Analyze(&Bundle{Player: &store.Player{}}); ok {
		t.Error("expected skip when account level is unknown")
	}
}

func TestRankProgressionAnalyzer(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bundle := &Bundle{
		Ranks: []*store.RankSnapshot{
			{Tier: "SILVER", Division: "IV", LeaguePoints: 0, CapturedAt: base},
			{Tier: "PLATINUM", Division: "IV", LeaguePoints: 0, CapturedAt: base.Add(20 * 24 * time.Hour)},
		},
	}
	f, ok := RankProgressionAnalyzer{}.Analyze(bundle)
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	// Silver IV -> Platinum IV is 800 LP over 20 days = 40 LP/day
	if f.Value != 40 {
		t.Errorf("expected 40 LP/day, got %v", f.Value)
	}
	if !f.MeetsThreshold || f.Score != 1.0 {
		t.Errorf("expected a max-score climb, got %+v", f)
	}

	if _, ok := (RankProgressionAnalyzer{}).Analyze(&Bundle{Ranks: bundle.Ranks[:1]}); ok {
		t.Error("expected skip with a single snapshot")
	}
}

func TestRankDiscrepancyAnalyzer(t *testing.T) {
	matches := makeMatches(10, func(i int, m *store.MatchRecord) {
		m.Kills, m.Deaths, m.Assists = 10, 2, 4 // KDA 7.0
	})
	bundle := &Bundle{
		Matches: matches,
		Ranks: []*store.RankSnapshot{
			{Tier: "SILVER", Division: "II", CapturedAt: time.Now()},
		},
	}
	f, ok := RankDiscrepancyAnalyzer{}.Analyze(bundle)
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	// 7.0 against a 2.2 silver baseline is far past the 1.5x threshold
	if !f.MeetsThreshold || f.Score != 1.0 {
		t.Errorf("expected strong discrepancy, got %+v", f)
	}

	if _, ok := (RankDiscrepancyAnalyzer{}).Analyze(&Bundle{Matches: matches}); ok {
		t.Error("expected skip without a rank snapshot")
	}
}

func TestConsistencyAnalyzer(t *testing.T) {
	// Identical strong matches: zero variance, high mean
	matches := makeMatches(15, func(i int, m *store.MatchRecord) {
		m.Kills, m.Deaths, m.Assists = 8, 2, 4
	})
	f, ok := ConsistencyAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if !f.MeetsThreshold || f.Score != 1.0 {
		t.Errorf("steady high performance should max the factor, got %+v", f)
	}

	// Erratic performance: high variation
	matches = makeMatches(15, func(i int, m *store.MatchRecord) {
		if i%2 == 0 {
			m.Kills, m.Deaths = 20, 1
		} else {
			m.Kills, m.Deaths = 0, 10
		}
	})
	f, ok = ConsistencyAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if f.MeetsThreshold {
		t.Errorf("erratic performance should not meet threshold, got %+v", f)
	}
}

func TestVersatilityAnalyzer(t *testing.T) {
	champions := []string{"Ahri", "Zed", "Jinx", "Lux", "Yasuo", "Thresh", "Vi", "Orianna"}
	matches := makeMatches(16, func(i int, m *store.MatchRecord) {
		m.Champion = champions[i%len(champions)]
		m.Win = i%4 != 0 // 75%
	})
	f, ok := VersatilityAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if !f.MeetsThreshold || f.Score != 1.0 {
		t.Errorf("8 winning champions should max the factor, got %+v", f)
	}

	// One-trick with a losing record contributes nothing
	matches = makeMatches(16, func(i int, m *store.MatchRecord) {
		m.Champion = "Ahri"
		m.Win = i%2 == 0
	})
	f, ok = VersatilityAnalyzer{}.Analyze(&Bundle{Matches: matches})
	if !ok {
		t.Fatal("expected analyzer to run")
	}
	if f.MeetsThreshold || f.Score != 0 {
		t.Errorf("one-trick at 50%% should score zero, got %+v", f)
	}
}

// Package store is the persistence layer: players, their match and
// rank history, and the analyses produced from them.
package store

import "time"

// Player is one tracked or discovered account. Discovered players
// (tracked=false) enter the table as match participants of tracked
// players and become analysis candidates once enough of their match
// history has been fetched.
type Player struct {
	PUUID         string
	SummonerID    string
	GameName      string
	TagLine       string
	Region        string
	AccountLevel  int64
	ProfileIconID int
	Tracked       bool
	Banned        bool
	BanCheckedAt  *time.Time
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MatchRecord is one player's line in one match, flattened for the
// analyzers. (match_id, puuid) is unique: refetching a match is an
// idempotent no-op.
type MatchRecord struct {
	ID            int64
	MatchID       string
	PUUID         string
	QueueID       int
	Champion      string
	Role          string
	Win           bool
	Kills         int
	Deaths        int
	Assists       int
	CreepScore    int
	VisionScore   int
	GameDurationS int64
	PlayedAt      time.Time
	CreatedAt     time.Time
}

// RankSnapshot is a point-in-time ranked standing, appended whenever
// the tracker refreshes a player. The progression analyzers compare
// snapshots over time.
type RankSnapshot struct {
	ID           int64
	PUUID        string
	QueueType    string
	Tier         string
	Division     string
	LeaguePoints int
	Wins         int
	Losses       int
	CapturedAt   time.Time
}

// PlayerAnalysis is one scoring run over a player's history. Factor
// scores are nullable: an analyzer that lacked data contributes
// nothing rather than zero.
type PlayerAnalysis struct {
	ID           string
	PUUID        string
	OverallScore float64
	Confidence   string
	IsSmurf      bool
	SampleSize   int

	WinRateScore          *float64
	WinRateTrendScore     *float64
	KDAScore              *float64
	AccountLevelScore     *float64
	RankProgressionScore  *float64
	RankDiscrepancyScore  *float64
	PerformanceTrendScore *float64
	ConsistencyScore      *float64
	VersatilityScore      *float64

	FalsePositiveReported bool
	ManuallyVerified      bool
	CreatedAt             time.Time
}

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/riftwatch/smurfwatch/errors"
)

// AnalysisStore reads and writes player analyses. Analyses are
// append-only; review flags are the only mutable columns.
type AnalysisStore struct {
	db *sql.DB
}

// NewAnalysisStore creates an analysis store over an open database.
func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

const analysisColumns = `id, puuid, overall_score, confidence, is_smurf, sample_size,
	win_rate_score, win_rate_trend_score, kda_score, account_level_score,
	rank_progression_score, rank_discrepancy_score, performance_trend_score,
	consistency_score, versatility_score,
	false_positive_reported, manually_verified, created_at`

// Insert writes one analysis, assigning its ID and timestamp if unset.
func (s *AnalysisStore) Insert(ctx context.Context, a *PlayerAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_analyses (id, puuid, overall_score, confidence, is_smurf, sample_size,
			win_rate_score, win_rate_trend_score, kda_score, account_level_score,
			rank_progression_score, rank_discrepancy_score, performance_trend_score,
			consistency_score, versatility_score,
			false_positive_reported, manually_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PUUID, a.OverallScore, a.Confidence, a.IsSmurf, a.SampleSize,
		a.WinRateScore, a.WinRateTrendScore, a.KDAScore, a.AccountLevelScore,
		a.RankProgressionScore, a.RankDiscrepancyScore, a.PerformanceTrendScore,
		a.ConsistencyScore, a.VersatilityScore,
		a.FalsePositiveReported, a.ManuallyVerified, formatTime(a.CreatedAt))
	if err != nil {
		return errors.Wrapf(err, "failed to insert analysis for %s", a.PUUID)
	}
	return nil
}

// Latest returns the newest analysis for a player, or
// errors.ErrNotFound when none exists.
func (s *AnalysisStore) Latest(ctx context.Context, puuid string) (*PlayerAnalysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+` FROM player_analyses
		WHERE puuid = ?
		ORDER BY created_at DESC
		LIMIT 1`, puuid)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "no analysis for %s", puuid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get latest analysis for %s", puuid)
	}
	return a, nil
}

// LatestSince returns the newest analysis created at or after the
// cutoff, or errors.ErrNotFound. The detection engine uses this as
// its freshness cache: a hit means no recomputation.
func (s *AnalysisStore) LatestSince(ctx context.Context, puuid string, cutoff time.Time) (*PlayerAnalysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+` FROM player_analyses
		WHERE puuid = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`, puuid, formatTime(cutoff))
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "no fresh analysis for %s", puuid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get fresh analysis for %s", puuid)
	}
	return a, nil
}

// ForPlayer lists a player's analyses newest first.
func (s *AnalysisStore) ForPlayer(ctx context.Context, puuid string, limit int) ([]*PlayerAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+analysisColumns+` FROM player_analyses
		WHERE puuid = ?
		ORDER BY created_at DESC
		LIMIT ?`, puuid, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list analyses for %s", puuid)
	}
	defer rows.Close()

	var analyses []*PlayerAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan analysis row")
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// ReportFalsePositive flags an analysis as operator-reported wrong.
func (s *AnalysisStore) ReportFalsePositive(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "false_positive_reported")
}

// MarkManuallyVerified flags an analysis as operator-confirmed.
func (s *AnalysisStore) MarkManuallyVerified(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "manually_verified")
}

func (s *AnalysisStore) setFlag(ctx context.Context, id, column string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE player_analyses SET `+column+` = 1 WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update analysis %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "analysis %s", id)
	}
	return nil
}

func scanAnalysis(row rowScanner) (*PlayerAnalysis, error) {
	var (
		a         PlayerAnalysis
		createdAt string
	)
	err := row.Scan(&a.ID, &a.PUUID, &a.OverallScore, &a.Confidence, &a.IsSmurf, &a.SampleSize,
		&a.WinRateScore, &a.WinRateTrendScore, &a.KDAScore, &a.AccountLevelScore,
		&a.RankProgressionScore, &a.RankDiscrepancyScore, &a.PerformanceTrendScore,
		&a.ConsistencyScore, &a.VersatilityScore,
		&a.FalsePositiveReported, &a.ManuallyVerified, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
)

// MatchStore reads and writes flattened per-player match records.
type MatchStore struct {
	db *sql.DB
}

// NewMatchStore creates a match store over an open database.
func NewMatchStore(db *sql.DB) *MatchStore {
	return &MatchStore{db: db}
}

// Insert writes one match record. Returns false without error when
// the (match_id, puuid) pair already exists.
func (s *MatchStore) Insert(ctx context.Context, m *MatchRecord) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO match_records (match_id, puuid, queue_id, champion, role, win,
			kills, deaths, assists, creep_score, vision_score,
			game_duration_s, played_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id, puuid) DO NOTHING`,
		m.MatchID, m.PUUID, m.QueueID, m.Champion, m.Role, m.Win,
		m.Kills, m.Deaths, m.Assists, m.CreepScore, m.VisionScore,
		m.GameDurationS, formatTime(m.PlayedAt), formatTime(m.CreatedAt))
	if err != nil {
		return false, errors.Wrapf(err, "failed to insert match %s for %s", m.MatchID, m.PUUID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n > 0, nil
}

// HasMatch reports whether a record exists for the pair.
func (s *MatchStore) HasMatch(ctx context.Context, matchID, puuid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM match_records WHERE match_id = ? AND puuid = ?`,
		matchID, puuid).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check match existence")
	}
	return true, nil
}

// CountForPlayer returns how many match records a player holds.
func (s *MatchStore) CountForPlayer(ctx context.Context, puuid string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_records WHERE puuid = ?`, puuid).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count matches for %s", puuid)
	}
	return n, nil
}

// RecentForPlayer lists a player's match records newest first. The
// analyzers depend on this ordering for their trend splits.
func (s *MatchStore) RecentForPlayer(ctx context.Context, puuid string, limit int) ([]*MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, puuid, queue_id, champion, role, win,
			kills, deaths, assists, creep_score, vision_score,
			game_duration_s, played_at, created_at
		FROM match_records
		WHERE puuid = ?
		ORDER BY played_at DESC
		LIMIT ?`, puuid, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list matches for %s", puuid)
	}
	defer rows.Close()

	var records []*MatchRecord
	for rows.Next() {
		var (
			m         MatchRecord
			playedAt  string
			createdAt string
		)
		err := rows.Scan(&m.ID, &m.MatchID, &m.PUUID, &m.QueueID, &m.Champion,
			&m.Role, &m.Win, &m.Kills, &m.Deaths, &m.Assists,
			&m.CreepScore, &m.VisionScore, &m.GameDurationS,
			&playedAt, &createdAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan match row")
		}
		m.PlayedAt = parseTime(playedAt)
		m.CreatedAt = parseTime(createdAt)
		records = append(records, &m)
	}
	return records, rows.Err()
}

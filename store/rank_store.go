package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
)

// RankStore reads and writes ranked-standing snapshots.
type RankStore struct {
	db *sql.DB
}

// NewRankStore creates a rank store over an open database.
func NewRankStore(db *sql.DB) *RankStore {
	return &RankStore{db: db}
}

// Insert appends one snapshot.
func (s *RankStore) Insert(ctx context.Context, snap *RankSnapshot) error {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rank_snapshots (puuid, queue_type, tier, division,
			league_points, wins, losses, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.PUUID, snap.QueueType, snap.Tier, snap.Division,
		snap.LeaguePoints, snap.Wins, snap.Losses, formatTime(snap.CapturedAt))
	if err != nil {
		return errors.Wrapf(err, "failed to insert rank snapshot for %s", snap.PUUID)
	}
	return nil
}

// ForPlayer lists a player's snapshots for one queue, oldest first,
// which is the order the progression analyzer walks them in.
func (s *RankStore) ForPlayer(ctx context.Context, puuid, queueType string, limit int) ([]*RankSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, puuid, queue_type, tier, division,
			league_points, wins, losses, captured_at
		FROM rank_snapshots
		WHERE puuid = ? AND queue_type = ?
		ORDER BY captured_at ASC
		LIMIT ?`, puuid, queueType, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list rank snapshots for %s", puuid)
	}
	defer rows.Close()

	var snaps []*RankSnapshot
	for rows.Next() {
		var (
			snap       RankSnapshot
			capturedAt string
		)
		err := rows.Scan(&snap.ID, &snap.PUUID, &snap.QueueType, &snap.Tier,
			&snap.Division, &snap.LeaguePoints, &snap.Wins, &snap.Losses,
			&capturedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan rank snapshot row")
		}
		snap.CapturedAt = parseTime(capturedAt)
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

// Latest returns the most recent snapshot for one queue, or
// errors.ErrNotFound when the player has none.
func (s *RankStore) Latest(ctx context.Context, puuid, queueType string) (*RankSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, puuid, queue_type, tier, division,
			league_points, wins, losses, captured_at
		FROM rank_snapshots
		WHERE puuid = ? AND queue_type = ?
		ORDER BY captured_at DESC
		LIMIT 1`, puuid, queueType)

	var (
		snap       RankSnapshot
		capturedAt string
	)
	err := row.Scan(&snap.ID, &snap.PUUID, &snap.QueueType, &snap.Tier,
		&snap.Division, &snap.LeaguePoints, &snap.Wins, &snap.Losses,
		&capturedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "no rank snapshot for %s %s", puuid, queueType)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get latest rank snapshot for %s", puuid)
	}
	snap.CapturedAt = parseTime(capturedAt)
	return &snap, nil
}

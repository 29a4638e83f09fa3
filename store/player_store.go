package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/riftwatch/smurfwatch/errors"
)

// PlayerStore reads and writes the players table.
type PlayerStore struct {
	db *sql.DB
}

// NewPlayerStore creates a player store over an open database.
func NewPlayerStore(db *sql.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

const playerColumns = `puuid, summoner_id, game_name, tag_line, region,
	account_level, profile_icon_id, tracked, banned,
	ban_checked_at, last_fetched_at, created_at, updated_at`

// Upsert inserts a player or refreshes its identity fields. Tracking
// and ban state are preserved on conflict so a rediscovery never
// untracks or unbans anyone.
func (s *PlayerStore) Upsert(ctx context.Context, p *Player) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (puuid, summoner_id, game_name, tag_line, region,
			account_level, profile_icon_id, tracked, banned,
			ban_checked_at, last_fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(puuid) DO UPDATE SET
			summoner_id = excluded.summoner_id,
			game_name = excluded.game_name,
			tag_line = excluded.tag_line,
			region = excluded.region,
			account_level = excluded.account_level,
			profile_icon_id = excluded.profile_icon_id,
			updated_at = excluded.updated_at`,
		p.PUUID, p.SummonerID, p.GameName, p.TagLine, p.Region,
		p.AccountLevel, p.ProfileIconID, p.Tracked, p.Banned,
		formatTimePtr(p.BanCheckedAt), formatTimePtr(p.LastFetchedAt),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return errors.Wrapf(err, "failed to upsert player %s", p.PUUID)
	}
	return nil
}

// Get fetches one player by PUUID. Returns errors.ErrNotFound when
// the player is unknown.
func (s *PlayerStore) Get(ctx context.Context, puuid string) (*Player, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE puuid = ?`, puuid)
	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "player %s", puuid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get player %s", puuid)
	}
	return p, nil
}

// SetTracked flips the tracking flag for a player.
func (s *PlayerStore) SetTracked(ctx context.Context, puuid string, tracked bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET tracked = ?, updated_at = ? WHERE puuid = ?`,
		tracked, formatTime(time.Now()), puuid)
	if err != nil {
		return errors.Wrapf(err, "failed to set tracked for %s", puuid)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "player %s", puuid)
	}
	return nil
}

// Tracked lists tracked, unbanned players, least recently fetched
// first so stale players get refreshed before fresh ones.
func (s *PlayerStore) Tracked(ctx context.Context, limit int) ([]*Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE tracked = 1 AND banned = 0
		ORDER BY last_fetched_at ASC NULLS FIRST
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tracked players")
	}
	return scanPlayers(rows)
}

// BelowMatchTarget lists players holding fewer than target match
// records, filtered by tracked flag, least recently fetched first.
// The match fetcher drains this list each run.
func (s *PlayerStore) BelowMatchTarget(ctx context.Context, tracked bool, target, limit int) ([]*Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+` FROM players p
		WHERE p.tracked = ? AND p.banned = 0
		  AND (SELECT COUNT(*) FROM match_records m WHERE m.puuid = p.puuid) < ?
		ORDER BY p.last_fetched_at ASC NULLS FIRST
		LIMIT ?`, tracked, target, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list players below match target")
	}
	return scanPlayers(rows)
}

// MarkFetched stamps last_fetched_at after a fetch pass.
func (s *PlayerStore) MarkFetched(ctx context.Context, puuid string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE players SET last_fetched_at = ?, updated_at = ? WHERE puuid = ?`,
		formatTime(at), formatTime(time.Now()), puuid)
	if err != nil {
		return errors.Wrapf(err, "failed to mark player %s fetched", puuid)
	}
	return nil
}

// FlaggedForBanCheck lists players whose most recent analysis flagged
// them, who are not already marked banned, and whose last ban check is
// older than the cutoff (or never happened).
func (s *PlayerStore) FlaggedForBanCheck(ctx context.Context, cutoff time.Time, limit int) ([]*Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+` FROM players p
		WHERE p.banned = 0
		  AND (p.ban_checked_at IS NULL OR p.ban_checked_at < ?)
		  AND EXISTS (
			SELECT 1 FROM player_analyses a
			WHERE a.puuid = p.puuid AND a.is_smurf = 1
			  AND a.created_at = (
				SELECT MAX(a2.created_at) FROM player_analyses a2 WHERE a2.puuid = p.puuid
			  )
		  )
		ORDER BY p.ban_checked_at ASC NULLS FIRST
		LIMIT ?`, formatTime(cutoff), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list players for ban check")
	}
	return scanPlayers(rows)
}

// MarkBanChecked records a ban-check pass and its verdict.
func (s *PlayerStore) MarkBanChecked(ctx context.Context, puuid string, banned bool, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE players SET banned = ?, ban_checked_at = ?, updated_at = ? WHERE puuid = ?`,
		banned, formatTime(at), formatTime(time.Now()), puuid)
	if err != nil {
		return errors.Wrapf(err, "failed to mark player %s ban-checked", puuid)
	}
	return nil
}

// NeedingAnalysis lists players with at least minGames match records
// and no analysis created after the freshness cutoff.
func (s *PlayerStore) NeedingAnalysis(ctx context.Context, minGames int, freshCutoff time.Time, limit int) ([]*Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+` FROM players p
		WHERE p.banned = 0
		  AND (SELECT COUNT(*) FROM match_records m WHERE m.puuid = p.puuid) >= ?
		  AND NOT EXISTS (
			SELECT 1 FROM player_analyses a
			WHERE a.puuid = p.puuid AND a.created_at >= ?
		  )
		ORDER BY p.last_fetched_at DESC
		LIMIT ?`, minGames, formatTime(freshCutoff), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list players needing analysis")
	}
	return scanPlayers(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlayer(row rowScanner) (*Player, error) {
	var (
		p             Player
		summonerID    sql.NullString
		profileIconID sql.NullInt64
		banCheckedAt  sql.NullString
		lastFetchedAt sql.NullString
		createdAt     string
		updatedAt     string
	)
	err := row.Scan(&p.PUUID, &summonerID, &p.GameName, &p.TagLine, &p.Region,
		&p.AccountLevel, &profileIconID, &p.Tracked, &p.Banned,
		&banCheckedAt, &lastFetchedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.SummonerID = summonerID.String
	p.ProfileIconID = int(profileIconID.Int64)
	p.BanCheckedAt = parseTimePtr(banCheckedAt)
	p.LastFetchedAt = parseTimePtr(lastFetchedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func scanPlayers(rows *sql.Rows) ([]*Player, error) {
	defer rows.Close()
	var players []*Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan player row")
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

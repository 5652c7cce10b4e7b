package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mania-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// TrackedPlayerRepository owns the registry of players under
// observation. Chat/admin commands write here directly; the scheduler
// only sees the result at its next snapshot reload.
type TrackedPlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTrackedPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *TrackedPlayerRepository {
	return &TrackedPlayerRepository{db: sqlDB, logger: logger}
}

const trackedPlayerColumns = `user_id, username, country_code, channels, wait,
	global_rank, country_rank, pp,
	prev_global_rank, prev_country_rank, prev_pp,
	unranked_pp,
	session_active, session_started_at, session_pp, session_global_rank, session_country_rank,
	created_at, updated_at`

// List returns the whole registry in tracking order. The scheduler
// reloads this snapshot on every cursor wrap.
func (r *TrackedPlayerRepository) List(ctx context.Context) ([]domain.TrackedPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+trackedPlayerColumns+` FROM tracked_players ORDER BY created_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked players: %w", err)
	}
	defer rows.Close()

	var players []domain.TrackedPlayer
	for rows.Next() {
		player, err := scanTrackedPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *player)
	}
	return players, rows.Err()
}

// ListByChannel returns the players tracked in one channel.
func (r *TrackedPlayerRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.TrackedPlayer, error) {
	players, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := players[:0:0]
	for _, p := range players {
		if p.HasChannel(channelID) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Get returns one registry row, or ErrPlayerNotTracked.
func (r *TrackedPlayerRepository) Get(ctx context.Context, userID int64) (*domain.TrackedPlayer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+trackedPlayerColumns+` FROM tracked_players WHERE user_id = ?`, userID)
	player, err := scanTrackedPlayer(row)
	if err == sql.ErrNoRows {
		return nil, ErrPlayerNotTracked
	}
	if err != nil {
		return nil, err
	}
	return player, nil
}

// Track registers the player in the channel, creating the registry row
// on first track. Tracking an already-tracked (player, channel) pair is
// a no-op. Returns true when the player is new to the registry. Both
// paths are single atomic statements, so concurrent track commands for
// one player cannot drop a channel.
func (r *TrackedPlayerRepository) Track(ctx context.Context, player *domain.TrackedPlayer, channelID string) (bool, error) {
	if player.Wait == 0 {
		player.Wait = 1
	}
	now := time.Now()
	if player.CreatedAt.IsZero() {
		player.CreatedAt = now
	}
	player.UpdatedAt = now

	channels, err := json.Marshal([]string{channelID})
	if err != nil {
		return false, fmt.Errorf("failed to encode channels: %w", err)
	}
	var startedAt any
	if !player.Session.StartedAt.IsZero() {
		startedAt = player.Session.StartedAt
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tracked_players (`+trackedPlayerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		player.UserID, player.Username, player.CountryCode, string(channels), player.Wait,
		player.Stats.GlobalRank, player.Stats.CountryRank, player.Stats.PP,
		player.Prev.GlobalRank, player.Prev.CountryRank, player.Prev.PP,
		player.UnrankedPP,
		player.Session.Active, startedAt,
		player.Session.PP, player.Session.GlobalRank, player.Session.CountryRank,
		player.CreatedAt, player.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert tracked player: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		player.Channels = []string{channelID}
		r.logger.Info().Int64("user_id", player.UserID).Str("channel", channelID).Msg("player tracked")
		return true, nil
	}

	// Already registered: append the channel in place, skipping when it
	// is in the set already.
	res, err = r.db.ExecContext(ctx, `
		UPDATE tracked_players
		SET channels = json_insert(channels, '$[#]', ?), updated_at = ?
		WHERE user_id = ?
		  AND NOT EXISTS (SELECT 1 FROM json_each(channels) WHERE json_each.value = ?)`,
		channelID, now, player.UserID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to add channel: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		r.logger.Info().Int64("user_id", player.UserID).Str("channel", channelID).Msg("channel added to tracked player")
	}
	return false, nil
}

// Untrack removes the channel from the player's set, deleting the row
// when the set empties. Returns true when the pair existed.
func (r *TrackedPlayerRepository) Untrack(ctx context.Context, userID int64, channelID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tracked_players
		SET channels = (SELECT json_group_array(value) FROM json_each(channels) WHERE value <> ?),
		    updated_at = ?
		WHERE user_id = ?
		  AND EXISTS (SELECT 1 FROM json_each(channels) WHERE json_each.value = ?)`,
		channelID, time.Now(), userID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to remove channel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	res, err = r.db.ExecContext(ctx,
		`DELETE FROM tracked_players WHERE user_id = ? AND channels = '[]'`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tracked player: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if deleted == 1 {
		r.logger.Info().Int64("user_id", userID).Msg("player untracked everywhere, removed")
	}
	return true, nil
}

// FlushChannel untracks every player in the channel and returns how
// many were affected.
func (r *TrackedPlayerRepository) FlushChannel(ctx context.Context, channelID string) (int, error) {
	players, err := r.ListByChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}
	for _, p := range players {
		if _, err := r.Untrack(ctx, p.UserID, channelID); err != nil {
			return 0, err
		}
	}
	return len(players), nil
}

// Update persists the mutable polling state: wait counter, stats
// snapshots, and session fields.
func (r *TrackedPlayerRepository) Update(ctx context.Context, player *domain.TrackedPlayer) error {
	var startedAt any
	if !player.Session.StartedAt.IsZero() {
		startedAt = player.Session.StartedAt
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE tracked_players SET
			username = ?, country_code = ?, wait = ?,
			global_rank = ?, country_rank = ?, pp = ?,
			prev_global_rank = ?, prev_country_rank = ?, prev_pp = ?,
			session_active = ?, session_started_at = ?,
			session_pp = ?, session_global_rank = ?, session_country_rank = ?,
			updated_at = ?
		WHERE user_id = ?`,
		player.Username, player.CountryCode, player.Wait,
		player.Stats.GlobalRank, player.Stats.CountryRank, player.Stats.PP,
		player.Prev.GlobalRank, player.Prev.CountryRank, player.Prev.PP,
		player.Session.Active, startedAt,
		player.Session.PP, player.Session.GlobalRank, player.Session.CountryRank,
		time.Now(), player.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tracked player: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPlayerNotTracked
	}
	return nil
}

// UpdateWait persists just the wait counter, used by the scheduler
// when it skips a still-waiting player.
func (r *TrackedPlayerRepository) UpdateWait(ctx context.Context, userID int64, wait int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracked_players SET wait = ?, updated_at = ? WHERE user_id = ?`,
		wait, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update wait counter: %w", err)
	}
	return nil
}

func scanTrackedPlayer(row rowScanner) (*domain.TrackedPlayer, error) {
	var player domain.TrackedPlayer
	var channels string
	var startedAt sql.NullTime
	err := row.Scan(
		&player.UserID, &player.Username, &player.CountryCode, &channels, &player.Wait,
		&player.Stats.GlobalRank, &player.Stats.CountryRank, &player.Stats.PP,
		&player.Prev.GlobalRank, &player.Prev.CountryRank, &player.Prev.PP,
		&player.UnrankedPP,
		&player.Session.Active, &startedAt,
		&player.Session.PP, &player.Session.GlobalRank, &player.Session.CountryRank,
		&player.CreatedAt, &player.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(channels), &player.Channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels: %w", err)
	}
	if startedAt.Valid {
		player.Session.StartedAt = startedAt.Time
	}
	return &player, nil
}

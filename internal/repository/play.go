package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"mania-tracker/internal/constants"
	"mania-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// PlayRepository owns the de-duplicated best-play store. One row per
// (user, map, mod set); replacing a row requires a strictly greater
// score.
type PlayRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayRepository {
	return &PlayRepository{db: sqlDB, logger: logger}
}

// PlayFilter narrows Find. Zero fields are ignored; CategoryAll and
// the empty category match everything, CategoryUnranked matches
// everything except ranked.
type PlayFilter struct {
	UserID   int64
	MapID    int64
	Category domain.Category
}

const playColumns = `id, user_id, map_id, mods, title, creator, version, key_count,
	score, combo, max_combo, accuracy,
	count_geki, count_300, count_katu, count_100, count_50, count_miss,
	pp, max_pp, star_rating, category, dan_passed, dan_name,
	played_at, created_at, updated_at`

// Upsert inserts the play or, when a row for the same (user, map,
// mods) key exists, replaces it only if the incoming score is strictly
// greater. A lower or equal score leaves the row untouched.
func (r *PlayRepository) Upsert(ctx context.Context, play *domain.Play) error {
	if play.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		play.ID = id
	}
	now := time.Now()
	if play.CreatedAt.IsZero() {
		play.CreatedAt = now
	}
	play.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plays (`+playColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, map_id, mods) DO UPDATE SET
			title = excluded.title,
			creator = excluded.creator,
			version = excluded.version,
			key_count = excluded.key_count,
			score = excluded.score,
			combo = excluded.combo,
			max_combo = excluded.max_combo,
			accuracy = excluded.accuracy,
			count_geki = excluded.count_geki,
			count_300 = excluded.count_300,
			count_katu = excluded.count_katu,
			count_100 = excluded.count_100,
			count_50 = excluded.count_50,
			count_miss = excluded.count_miss,
			pp = excluded.pp,
			max_pp = excluded.max_pp,
			star_rating = excluded.star_rating,
			category = excluded.category,
			dan_passed = excluded.dan_passed,
			dan_name = excluded.dan_name,
			played_at = excluded.played_at,
			updated_at = excluded.updated_at
		WHERE excluded.score > plays.score`,
		play.ID, play.UserID, play.MapID, play.Mods.Key(), play.Title, play.Creator,
		play.Version, play.KeyCount, play.Score, play.Combo, play.MaxCombo, play.Accuracy,
		play.Hits.Geki, play.Hits.Count300, play.Hits.Katu, play.Hits.Count100,
		play.Hits.Count50, play.Hits.Miss,
		play.PP, play.MaxPP, play.StarRating, string(play.Category),
		play.DanPassed, play.DanName,
		play.PlayedAt, play.CreatedAt, play.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert play: %w", err)
	}
	return nil
}

// Find returns all plays matching the filter, in no particular order.
func (r *PlayRepository) Find(ctx context.Context, filter PlayFilter) ([]domain.Play, error) {
	query := `SELECT ` + playColumns + ` FROM plays WHERE 1=1`
	var args []any

	if filter.UserID != 0 {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.MapID != 0 {
		query += ` AND map_id = ?`
		args = append(args, filter.MapID)
	}
	switch filter.Category {
	case "", domain.CategoryAll:
	case domain.CategoryUnranked:
		query += ` AND category != ?`
		args = append(args, string(domain.CategoryRanked))
	default:
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []domain.Play
	for rows.Next() {
		play, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		plays = append(plays, *play)
	}
	return plays, rows.Err()
}

// RankedFloor returns the rating of the player's 100th-best ranked
// play across distinct maps, or 0 when fewer than 100 distinct ranked
// maps exist. Plays below this value are not worth announcing.
func (r *PlayRepository) RankedFloor(ctx context.Context, userID int64) (float64, error) {
	plays, err := r.Find(ctx, PlayFilter{UserID: userID, Category: domain.CategoryRanked})
	if err != nil {
		return 0, err
	}

	best := collapseBestPerMap(plays)
	if len(best) < constants.TopPlayLimit {
		return 0, nil
	}
	return best[constants.TopPlayLimit-1].PP, nil
}

// Position returns the rank the given rating would occupy among the
// player's own top plays of the category: the count of distinct-map
// best plays rated strictly higher. Fails with ErrPlayerNotTracked
// when the player is not registered.
func (r *PlayRepository) Position(ctx context.Context, userID int64, category domain.Category, pp float64) (int, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM tracked_players WHERE user_id = ?`, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return 0, ErrPlayerNotTracked
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check tracked player: %w", err)
	}

	plays, err := r.Find(ctx, PlayFilter{UserID: userID, Category: category})
	if err != nil {
		return 0, err
	}

	position := 0
	for _, play := range collapseBestPerMap(plays) {
		if play.PP > pp {
			position++
		}
	}
	return position, nil
}

// RecomputeUnrankedPP recalculates the player's weighted aggregate
// rating over their top 100 distinct maps, stores it on the registry
// row, and returns the previous aggregate for delta reporting. Fails
// with ErrPlayerNotTracked when the player is not registered.
func (r *PlayRepository) RecomputeUnrankedPP(ctx context.Context, userID int64) (float64, error) {
	var previous float64
	err := r.db.QueryRowContext(ctx,
		`SELECT unranked_pp FROM tracked_players WHERE user_id = ?`, userID,
	).Scan(&previous)
	if err == sql.ErrNoRows {
		return 0, ErrPlayerNotTracked
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read aggregate: %w", err)
	}

	plays, err := r.Find(ctx, PlayFilter{UserID: userID})
	if err != nil {
		return 0, err
	}

	var total float64
	for i, play := range collapseBestPerMap(plays) {
		if i >= constants.TopPlayLimit {
			break
		}
		total += play.PP * pow(constants.AggregateWeight, i)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE tracked_players SET unranked_pp = ?, updated_at = ? WHERE user_id = ?`,
		total, time.Now(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store aggregate: %w", err)
	}

	r.logger.Debug().
		Int64("user_id", userID).
		Float64("unranked_pp", total).
		Float64("previous", previous).
		Msg("unranked aggregate recomputed")

	return previous, nil
}

// collapseBestPerMap keeps the single best play per distinct map,
// ordered by rating descending with raw score as tie-break.
func collapseBestPerMap(plays []domain.Play) []domain.Play {
	sort.SliceStable(plays, func(i, j int) bool {
		if plays[i].PP != plays[j].PP {
			return plays[i].PP > plays[j].PP
		}
		return plays[i].Score > plays[j].Score
	})

	seen := make(map[int64]struct{}, len(plays))
	best := plays[:0:0]
	for _, play := range plays {
		if _, ok := seen[play.MapID]; ok {
			continue
		}
		seen[play.MapID] = struct{}{}
		best = append(best, play)
	}
	return best
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlay(row rowScanner) (*domain.Play, error) {
	var play domain.Play
	var mods, category string
	err := row.Scan(
		&play.ID, &play.UserID, &play.MapID, &mods, &play.Title, &play.Creator,
		&play.Version, &play.KeyCount, &play.Score, &play.Combo, &play.MaxCombo, &play.Accuracy,
		&play.Hits.Geki, &play.Hits.Count300, &play.Hits.Katu, &play.Hits.Count100,
		&play.Hits.Count50, &play.Hits.Miss,
		&play.PP, &play.MaxPP, &play.StarRating, &category,
		&play.DanPassed, &play.DanName,
		&play.PlayedAt, &play.CreatedAt, &play.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan play: %w", err)
	}
	play.Mods = domain.ParseModKey(mods)
	play.Category = domain.Category(category)
	return &play, nil
}

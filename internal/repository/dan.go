package repository

import (
	"context"
	"database/sql"
	"fmt"

	"mania-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// DanRepository is the read-mostly lookup of clear-condition maps.
type DanRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewDanRepository(sqlDB *sql.DB, logger zerolog.Logger) *DanRepository {
	return &DanRepository{db: sqlDB, logger: logger}
}

// Get returns the dan entry for a map, or nil when the map is not a
// clear-condition target. A miss is not an error.
func (r *DanRepository) Get(ctx context.Context, mapID int64) (*domain.DanEntry, error) {
	var entry domain.DanEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT map_id, name, min_accuracy FROM dan_maps WHERE map_id = ?`, mapID,
	).Scan(&entry.MapID, &entry.Name, &entry.MinAccuracy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dan map: %w", err)
	}
	return &entry, nil
}

// Upsert registers or updates a clear-condition map.
func (r *DanRepository) Upsert(ctx context.Context, entry *domain.DanEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dan_maps (map_id, name, min_accuracy) VALUES (?, ?, ?)
		ON CONFLICT (map_id) DO UPDATE SET name = excluded.name, min_accuracy = excluded.min_accuracy`,
		entry.MapID, entry.Name, entry.MinAccuracy)
	if err != nil {
		return fmt.Errorf("failed to upsert dan map: %w", err)
	}
	return nil
}

// List returns every registered clear-condition map.
func (r *DanRepository) List(ctx context.Context) ([]domain.DanEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT map_id, name, min_accuracy FROM dan_maps ORDER BY map_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dan maps: %w", err)
	}
	defer rows.Close()

	var entries []domain.DanEntry
	for rows.Next() {
		var entry domain.DanEntry
		if err := rows.Scan(&entry.MapID, &entry.Name, &entry.MinAccuracy); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

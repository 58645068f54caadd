package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/otservhub/hub/internal/hub/model"
)

// ErrVersionNotFound is returned when a client version is not in the catalog.
var ErrVersionNotFound = errors.New("game version not found")

// GameVersionRepository reads the client version catalog.
type GameVersionRepository struct {
	db *pgxpool.Pool
}

// NewGameVersionRepository creates a GameVersionRepository.
func NewGameVersionRepository(db *pgxpool.Pool) *GameVersionRepository {
	return &GameVersionRepository{db: db}
}

// GetByValue looks a version up by its canonical value, e.g. "8.6".
func (r *GameVersionRepository) GetByValue(ctx context.Context, value string) (*model.GameVersion, error) {
	v := &model.GameVersion{}
	err := r.db.QueryRow(ctx,
		`SELECT id, value, label, display_order FROM game_versions WHERE value = $1`,
		value,
	).Scan(&v.ID, &v.Value, &v.Label, &v.DisplayOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("get game version: %w", err)
	}
	return v, nil
}

// List returns the full catalog in display order.
func (r *GameVersionRepository) List(ctx context.Context) ([]*model.GameVersion, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, value, label, display_order FROM game_versions ORDER BY display_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*model.GameVersion
	for rows.Next() {
		v := &model.GameVersion{}
		if err := rows.Scan(&v.ID, &v.Value, &v.Label, &v.DisplayOrder); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/otservhub/hub/internal/hub/model"
)

// HypeRepository stores per-user anticipation votes.
type HypeRepository struct {
	db *pgxpool.Pool
}

// NewHypeRepository creates a HypeRepository.
func NewHypeRepository(db *pgxpool.Pool) *HypeRepository {
	return &HypeRepository{db: db}
}

// Upsert records a user's vote on a server, replacing any previous vote.
func (r *HypeRepository) Upsert(ctx context.Context, h *model.UserHype) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO user_hypes (id, user_id, server_id, hype_type, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, server_id)
		 DO UPDATE SET hype_type = EXCLUDED.hype_type, created_at = EXCLUDED.created_at`,
		h.ID, h.UserID, h.ServerID, h.Type, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert hype: %w", err)
	}
	return nil
}

// Delete removes a user's vote on a server, if any.
func (r *HypeRepository) Delete(ctx context.Context, userID, serverID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_hypes WHERE user_id = $1 AND server_id = $2`,
		userID, serverID,
	)
	if err != nil {
		return fmt.Errorf("delete hype: %w", err)
	}
	return nil
}

// Counts aggregates the votes for one server by type.
func (r *HypeRepository) Counts(ctx context.Context, serverID uuid.UUID) (*model.HypeCounts, error) {
	c := &model.HypeCounts{}
	err := r.db.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE hype_type = 'GOING'),
		   count(*) FILTER (WHERE hype_type = 'WAITING'),
		   count(*) FILTER (WHERE hype_type = 'MAYBE'),
		   count(*)
		 FROM user_hypes WHERE server_id = $1`, serverID,
	).Scan(&c.Going, &c.Waiting, &c.Maybe, &c.Total)
	if err != nil {
		return nil, fmt.Errorf("count hypes: %w", err)
	}
	return c, nil
}

// UserVote returns the hype type a user has on a server, or "" if none.
func (r *HypeRepository) UserVote(ctx context.Context, userID, serverID uuid.UUID) (model.HypeType, error) {
	var t model.HypeType
	err := r.db.QueryRow(ctx,
		`SELECT hype_type FROM user_hypes WHERE user_id = $1 AND server_id = $2`,
		userID, serverID,
	).Scan(&t)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("get hype vote: %w", err)
	}
	return t, nil
}

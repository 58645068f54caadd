package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/otservhub/hub/internal/hub/model"
)

// ErrSystemNotFound is returned when a system tag does not exist.
var ErrSystemNotFound = errors.New("system not found")

// SystemRepository manages gameplay-feature tags and their links to servers.
type SystemRepository struct {
	db *pgxpool.Pool
}

// NewSystemRepository creates a SystemRepository.
func NewSystemRepository(db *pgxpool.Pool) *SystemRepository {
	return &SystemRepository{db: db}
}

// FindOrCreate returns the system with the given name, creating it as an
// unapproved custom tag if it does not exist yet. Lookup is case-insensitive.
func (r *SystemRepository) FindOrCreate(ctx context.Context, name string) (*model.System, error) {
	s := &model.System{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, is_custom, is_approved, created_at
		 FROM systems WHERE lower(name) = lower($1)`, name,
	).Scan(&s.ID, &s.Name, &s.IsCustom, &s.IsApproved, &s.CreatedAt)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find system: %w", err)
	}

	s = &model.System{
		ID:         uuid.New(),
		Name:       name,
		IsCustom:   true,
		IsApproved: false,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO systems (id, name, is_custom, is_approved, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Name, s.IsCustom, s.IsApproved, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create system: %w", err)
	}
	return s, nil
}

// LinkServer attaches a system tag to a server. Duplicate links are ignored.
func (r *SystemRepository) LinkServer(ctx context.Context, serverID, systemID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO server_systems (server_id, system_id)
		 VALUES ($1, $2)
		 ON CONFLICT (server_id, system_id) DO NOTHING`,
		serverID, systemID,
	)
	if err != nil {
		return fmt.Errorf("link server system: %w", err)
	}
	return nil
}

// NamesForServer returns the tag names linked to a server, alphabetically.
func (r *SystemRepository) NamesForServer(ctx context.Context, serverID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.name FROM systems s
		 JOIN server_systems ss ON ss.system_id = s.id
		 WHERE ss.server_id = $1
		 ORDER BY s.name`, serverID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListApproved returns every approved tag for the registration form.
func (r *SystemRepository) ListApproved(ctx context.Context) ([]*model.System, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, is_custom, is_approved, created_at
		 FROM systems WHERE is_approved ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var systems []*model.System
	for rows.Next() {
		s := &model.System{}
		if err := rows.Scan(&s.ID, &s.Name, &s.IsCustom, &s.IsApproved, &s.CreatedAt); err != nil {
			return nil, err
		}
		systems = append(systems, s)
	}
	return systems, rows.Err()
}

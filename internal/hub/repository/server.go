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

// Sentinel errors for the server repository.
var (
	ErrServerNotFound = errors.New("server not found")
	ErrDuplicateSlug  = errors.New("server slug already exists")
)

// ServerRepository provides CRUD operations for server listings against PostgreSQL.
type ServerRepository struct {
	db *pgxpool.Pool
}

// NewServerRepository creates a new ServerRepository.
func NewServerRepository(db *pgxpool.Pool) *ServerRepository {
	return &ServerRepository{db: db}
}

const serverColumns = `
	id, owner_id, name, slug, ip_address, port, version_id, custom_version,
	website_url, download_link, description, map_type, custom_map_type,
	pvp_type, exp_rate, theme, launch_date, is_release_date_tba, timezone,
	discord_invite_link, whatsapp_group_link, has_mobile, hype_score,
	is_verified, is_online, online_count, last_ping, created_at, updated_at`

// Create inserts a new server listing.
func (r *ServerRepository) Create(ctx context.Context, s *model.Server) error {
	s.ID = uuid.New()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO servers (`+serverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		s.ID, s.OwnerID, s.Name, s.Slug, s.IPAddress, s.Port, s.VersionID, s.CustomVersion,
		s.WebsiteURL, s.DownloadLink, s.Description, s.MapType, s.CustomMapType,
		s.PvPType, s.ExpRate, s.Theme, s.LaunchDate, s.IsReleaseDateTBA, s.Timezone,
		s.DiscordLink, s.WhatsappLink, s.HasMobile, s.HypeScore,
		s.IsVerified, s.IsOnline, s.OnlineCount, s.LastPing, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("insert server: %w", err)
	}
	return nil
}

// GetByID retrieves a server listing by its UUID.
func (r *ServerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	return r.scanOne(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = $1`, id)
}

// GetBySlug retrieves a server listing by its unique slug.
func (r *ServerRepository) GetBySlug(ctx context.Context, slug string) (*model.Server, error) {
	return r.scanOne(ctx, `SELECT `+serverColumns+` FROM servers WHERE slug = $1`, slug)
}

// List returns listings ordered verified-first then newest-first, with an
// optional inclusive partial-match search over name and description.
func (r *ServerRepository) List(ctx context.Context, search string, limit, offset int) ([]*model.Server, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + search + "%"
	rows, err := r.db.Query(ctx, `
		SELECT `+serverColumns+` FROM servers
		WHERE ($1 = '' OR name ILIKE $2 OR description ILIKE $2)
		ORDER BY is_verified DESC, created_at DESC
		LIMIT $3 OFFSET $4`,
		search, pattern, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListByOwner returns all listings owned by a user, newest first.
func (r *ServerRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.Server, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+serverColumns+` FROM servers
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListAddresses returns id/ip/port for every listing, for the status pinger.
func (r *ServerRepository) ListAddresses(ctx context.Context) ([]*model.Server, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, ip_address, port, is_online FROM servers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []*model.Server
	for rows.Next() {
		s := &model.Server{}
		if err := rows.Scan(&s.ID, &s.IPAddress, &s.Port, &s.IsOnline); err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// Update persists mutable listing fields. The caller decides the final value
// of is_verified (it is cleared when ip_address or website_url change).
func (r *ServerRepository) Update(ctx context.Context, s *model.Server) error {
	s.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx, `
		UPDATE servers SET
			name = $2, ip_address = $3, port = $4, website_url = $5,
			download_link = $6, description = $7, exp_rate = $8,
			discord_invite_link = $9, whatsapp_group_link = $10,
			pvp_type = $11, is_verified = $12, updated_at = $13
		WHERE id = $1`,
		s.ID, s.Name, s.IPAddress, s.Port, s.WebsiteURL,
		s.DownloadLink, s.Description, s.ExpRate,
		s.DiscordLink, s.WhatsappLink, s.PvPType, s.IsVerified, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

// UpdateLiveness sets the online flag and last_ping timestamp.
func (r *ServerRepository) UpdateLiveness(ctx context.Context, id uuid.UUID, online bool, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE servers SET is_online = $2, last_ping = $3 WHERE id = $1`,
		id, online, at,
	)
	if err != nil {
		return fmt.Errorf("update liveness: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

// SetHypeScore stores the aggregated hype total on the listing row.
func (r *ServerRepository) SetHypeScore(ctx context.Context, id uuid.UUID, score int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE servers SET hype_score = $2 WHERE id = $1`, id, score)
	if err != nil {
		return fmt.Errorf("set hype score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

// CountByVerified returns how many listings are verified and how many are not.
func (r *ServerRepository) CountByVerified(ctx context.Context) (verified, unverified int64, err error) {
	row := r.db.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE is_verified),
		        count(*) FILTER (WHERE NOT is_verified)
		 FROM servers`)
	if err := row.Scan(&verified, &unverified); err != nil {
		return 0, 0, fmt.Errorf("count servers: %w", err)
	}
	return verified, unverified, nil
}

// Delete permanently removes a listing.
func (r *ServerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

func (r *ServerRepository) scanOne(ctx context.Context, query string, args ...any) (*model.Server, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrServerNotFound
	}
	return scanServer(rows)
}

func (r *ServerRepository) collect(rows pgx.Rows) ([]*model.Server, error) {
	var servers []*model.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

func scanServer(rows pgx.Rows) (*model.Server, error) {
	s := &model.Server{}
	err := rows.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Slug, &s.IPAddress, &s.Port,
		&s.VersionID, &s.CustomVersion, &s.WebsiteURL, &s.DownloadLink,
		&s.Description, &s.MapType, &s.CustomMapType, &s.PvPType, &s.ExpRate,
		&s.Theme, &s.LaunchDate, &s.IsReleaseDateTBA, &s.Timezone,
		&s.DiscordLink, &s.WhatsappLink, &s.HasMobile, &s.HypeScore,
		&s.IsVerified, &s.IsOnline, &s.OnlineCount, &s.LastPing,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

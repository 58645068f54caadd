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

// ErrSessionNotFound is returned when a verification session does not exist.
var ErrSessionNotFound = errors.New("verification session not found")

// VerificationSessionRepository persists ownership verification sessions.
type VerificationSessionRepository struct {
	db *pgxpool.Pool
}

// NewVerificationSessionRepository creates a VerificationSessionRepository.
func NewVerificationSessionRepository(db *pgxpool.Pool) *VerificationSessionRepository {
	return &VerificationSessionRepository{db: db}
}

// Create inserts a new session record.
func (r *VerificationSessionRepository) Create(ctx context.Context, s *model.VerificationSession) error {
	s.ID = uuid.New()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.Exec(ctx,
		`INSERT INTO verification_sessions
		   (id, owner_user_id, token, status, attempts, last_outcome, website_url, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, 0, '', '', $5, $6, $7)`,
		s.ID, s.OwnerUserID, s.Token, s.Status, s.CreatedAt, s.UpdatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification session: %w", err)
	}
	return nil
}

// GetByID returns a single session by its UUID.
func (r *VerificationSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.VerificationSession, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

// GetByToken returns the session holding the given (unique) token.
func (r *VerificationSessionRepository) GetByToken(ctx context.Context, token string) (*model.VerificationSession, error) {
	return r.getWhere(ctx, `token = $1`, token)
}

func (r *VerificationSessionRepository) getWhere(ctx context.Context, where string, arg any) (*model.VerificationSession, error) {
	s := &model.VerificationSession{}
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_user_id, token, status, attempts, last_outcome, website_url,
		        created_at, updated_at, expires_at
		 FROM verification_sessions WHERE `+where, arg,
	).Scan(&s.ID, &s.OwnerUserID, &s.Token, &s.Status, &s.Attempts, &s.LastOutcome,
		&s.WebsiteURL, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get verification session: %w", err)
	}
	return s, nil
}

// IncrementAttempts bumps the attempt counter and returns the new value.
// The increment happens before any network call so a crash mid-verification
// still counts against the budget.
func (r *VerificationSessionRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx,
		`UPDATE verification_sessions
		 SET attempts = attempts + 1, updated_at = now()
		 WHERE id = $1
		 RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

// RecordOutcome stores the outcome of one attempt together with the resulting
// session status and the website that was checked.
func (r *VerificationSessionRepository) RecordOutcome(ctx context.Context, id uuid.UUID, outcome model.VerificationOutcome, status model.SessionStatus, websiteURL string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE verification_sessions
		 SET last_outcome = $2, status = $3, website_url = $4, updated_at = now()
		 WHERE id = $1`,
		id, outcome, status, websiteURL,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes unverified sessions past their expiry. Returns the
// number of rows removed. Safe to call from a background goroutine.
func (r *VerificationSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM verification_sessions WHERE expires_at < now() AND status != 'verified'`,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

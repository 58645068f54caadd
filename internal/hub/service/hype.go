package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/hub/model"
	"github.com/otservhub/hub/internal/hub/repository"
	"go.uber.org/zap"
)

// ErrInvalidHypeType is returned for a vote outside GOING/WAITING/MAYBE.
var ErrInvalidHypeType = errors.New("invalid hype type")

// hypeStore is the storage interface required by HypeService.
// *repository.HypeRepository satisfies this interface.
type hypeStore interface {
	Upsert(ctx context.Context, h *model.UserHype) error
	Delete(ctx context.Context, userID, serverID uuid.UUID) error
	Counts(ctx context.Context, serverID uuid.UUID) (*model.HypeCounts, error)
	UserVote(ctx context.Context, userID, serverID uuid.UUID) (model.HypeType, error)
}

// hypeScoreWriter stores the aggregated total back on the listing row so the
// directory can sort by it without a join.
type hypeScoreWriter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Server, error)
	SetHypeScore(ctx context.Context, id uuid.UUID, score int) error
}

// HypeService records anticipation votes and keeps per-server totals current.
type HypeService struct {
	store   hypeStore
	servers hypeScoreWriter
	logger  *zap.Logger
}

// NewHypeService creates a HypeService.
func NewHypeService(store hypeStore, servers hypeScoreWriter, logger *zap.Logger) *HypeService {
	return &HypeService{store: store, servers: servers, logger: logger}
}

// Vote records or replaces a user's vote and returns the fresh counts.
func (s *HypeService) Vote(ctx context.Context, userID, serverID uuid.UUID, t model.HypeType) (*model.HypeCounts, error) {
	if !t.Valid() {
		return nil, ErrInvalidHypeType
	}
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("get server: %w", err)
	}

	h := &model.UserHype{UserID: userID, ServerID: serverID, Type: t}
	if err := s.store.Upsert(ctx, h); err != nil {
		return nil, fmt.Errorf("record vote: %w", err)
	}
	return s.refreshCounts(ctx, serverID)
}

// Unvote removes a user's vote and returns the fresh counts.
func (s *HypeService) Unvote(ctx context.Context, userID, serverID uuid.UUID) (*model.HypeCounts, error) {
	if err := s.store.Delete(ctx, userID, serverID); err != nil {
		return nil, fmt.Errorf("remove vote: %w", err)
	}
	return s.refreshCounts(ctx, serverID)
}

// Counts returns the current vote totals for a server.
func (s *HypeService) Counts(ctx context.Context, serverID uuid.UUID) (*model.HypeCounts, error) {
	c, err := s.store.Counts(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}
	return c, nil
}

// UserVote returns the caller's current vote type, "" when they have none.
func (s *HypeService) UserVote(ctx context.Context, userID, serverID uuid.UUID) (model.HypeType, error) {
	return s.store.UserVote(ctx, userID, serverID)
}

func (s *HypeService) refreshCounts(ctx context.Context, serverID uuid.UUID) (*model.HypeCounts, error) {
	c, err := s.store.Counts(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}
	if err := s.servers.SetHypeScore(ctx, serverID, c.Total); err != nil {
		s.logger.Warn("hype score update failed",
			zap.String("server_id", serverID.String()),
			zap.Error(err),
		)
	}
	return c, nil
}

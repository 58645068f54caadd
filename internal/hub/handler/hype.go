package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/auth"
	"github.com/otservhub/hub/internal/hub/model"
	"github.com/otservhub/hub/internal/hub/service"
	"go.uber.org/zap"
)

// hypeSvc is the interface expected by HypeHandler, satisfied by
// *service.HypeService.
type hypeSvc interface {
	Vote(ctx context.Context, userID, serverID uuid.UUID, t model.HypeType) (*model.HypeCounts, error)
	Unvote(ctx context.Context, userID, serverID uuid.UUID) (*model.HypeCounts, error)
	Counts(ctx context.Context, serverID uuid.UUID) (*model.HypeCounts, error)
	UserVote(ctx context.Context, userID, serverID uuid.UUID) (model.HypeType, error)
}

// HypeHandler handles anticipation vote routes.
type HypeHandler struct {
	svc    hypeSvc
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewHypeHandler creates a HypeHandler.
func NewHypeHandler(svc hypeSvc, tokens *auth.TokenIssuer, logger *zap.Logger) *HypeHandler {
	return &HypeHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register mounts the hype routes on the given router group.
func (h *HypeHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/servers/:id/hype", auth.OptionalUser(h.tokens), h.Counts)
	rg.POST("/servers/:id/hype", auth.RequireUser(h.tokens), h.Vote)
	rg.DELETE("/servers/:id/hype", auth.RequireUser(h.tokens), h.Unvote)
}

type hypeRequest struct {
	Type model.HypeType `json:"hype_type" binding:"required"`
}

// Vote handles POST /servers/:id/hype — records or replaces the caller's vote.
func (h *HypeHandler) Vote(c *gin.Context) {
	serverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server ID"})
		return
	}

	var req hypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hype_type is required"})
		return
	}

	counts, err := h.svc.Vote(c.Request.Context(), auth.UserIDFromCtx(c), serverID, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidHypeType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "hype_type must be GOING, WAITING, or MAYBE"})
		case errors.Is(err, service.ErrServerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
		default:
			h.logger.Error("record hype vote", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "vote failed"})
		}
		return
	}

	RecordHypeVote()
	c.JSON(http.StatusOK, counts)
}

// Unvote handles DELETE /servers/:id/hype — removes the caller's vote.
func (h *HypeHandler) Unvote(c *gin.Context) {
	serverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server ID"})
		return
	}

	counts, err := h.svc.Unvote(c.Request.Context(), auth.UserIDFromCtx(c), serverID)
	if err != nil {
		h.logger.Error("remove hype vote", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unvote failed"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

// Counts handles GET /servers/:id/hype — totals, plus the caller's own vote
// when a session token is supplied.
func (h *HypeHandler) Counts(c *gin.Context) {
	serverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server ID"})
		return
	}

	counts, err := h.svc.Counts(c.Request.Context(), serverID)
	if err != nil {
		h.logger.Error("count hype votes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	resp := gin.H{"counts": counts}
	if userID := auth.UserIDFromCtx(c); userID != uuid.Nil {
		if vote, err := h.svc.UserVote(c.Request.Context(), userID, serverID); err == nil && vote != "" {
			resp["my_vote"] = vote
		}
	}
	c.JSON(http.StatusOK, resp)
}

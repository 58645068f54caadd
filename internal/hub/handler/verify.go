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

// verifySvc is the interface expected by VerifyHandler, satisfied by
// *service.VerificationService.
type verifySvc interface {
	StartSession(ctx context.Context, userID uuid.UUID) (*model.VerificationSession, error)
	GetSession(ctx context.Context, id, userID uuid.UUID) (*model.VerificationSession, error)
	VerifyByToken(ctx context.Context, token, websiteURL string) (*model.VerificationSession, model.VerificationOutcome, error)
}

// VerifyHandler handles HTTP requests for the website ownership flow.
type VerifyHandler struct {
	svc    verifySvc
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewVerifyHandler creates a VerifyHandler.
func NewVerifyHandler(svc verifySvc, tokens *auth.TokenIssuer, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register mounts the verification routes on the given router group.
func (h *VerifyHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/verify-website", h.VerifyWebsite)

	sessions := rg.Group("/verify/sessions")
	sessions.Use(auth.RequireUser(h.tokens))
	{
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
	}
}

type verifyWebsiteRequest struct {
	Website string `json:"website" binding:"required"`
	Token   string `json:"token"   binding:"required"`
}

// VerifyWebsite handles POST /verify-website.
//
// Request body: {"website": "https://example.com", "token": "otservhub-verify-..."}
//
// Responds 400 for malformed input, a disallowed target, or an unknown token;
// 200 with {"success": false, "error": "..."} for any outcome observed at the
// target; 200 with {"success": true} when the meta tag matched. Internal
// failures are a bare 500 with no detail.
func (h *VerifyHandler) VerifyWebsite(c *gin.Context) {
	var req verifyWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "website and token are required"})
		return
	}

	sess, outcome, err := h.svc.VerifyByToken(c.Request.Context(), req.Token, req.Website)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown verification token"})
		case errors.Is(err, service.ErrSessionExpired):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			h.logger.Error("verify website", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "verification failed"})
		}
		return
	}

	RecordVerification(string(outcome))

	if outcome.InputError() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": outcome.Message()})
		return
	}
	if outcome != model.OutcomeSuccess {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": outcome.Message(), "attempts": sess.Attempts})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StartSession handles POST /verify/sessions — issues a fresh token and the
// meta tag the owner must publish.
func (h *VerifyHandler) StartSession(c *gin.Context) {
	userID := auth.UserIDFromCtx(c)

	sess, err := h.svc.StartSession(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("start verification session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           sess.ID,
		"token":        sess.Token,
		"meta_tag":     sess.MetaTag,
		"expires_at":   sess.ExpiresAt,
		"instructions": "Add the meta_tag to your website's <head>, then call POST /api/v1/verify-website with the token and your website URL.",
	})
}

// GetSession handles GET /verify/sessions/:id — returns session status.
func (h *VerifyHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	sess, err := h.svc.GetSession(c.Request.Context(), id, auth.UserIDFromCtx(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNotSessionOwner):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		default:
			h.logger.Error("get verification session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session"})
		}
		return
	}

	c.JSON(http.StatusOK, sess)
}

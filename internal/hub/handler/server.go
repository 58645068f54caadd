package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/otservhub/hub/internal/auth"
	"github.com/otservhub/hub/internal/hub/model"
	"github.com/otservhub/hub/internal/hub/service"
	"go.uber.org/zap"
)

// serverSvc is the interface expected by ServerHandler, satisfied by
// *service.ServerService.
type serverSvc interface {
	Register(ctx context.Context, ownerID uuid.UUID, req *model.RegisterRequest) (*model.Server, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Server, error)
	GetBySlug(ctx context.Context, slug string) (*model.Server, error)
	List(ctx context.Context, search string, limit, offset int) ([]*model.Server, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.Server, error)
	Update(ctx context.Context, id, userID uuid.UUID, req *model.UpdateRequest) (*model.Server, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// ServerHandler handles HTTP requests for the server directory.
type ServerHandler struct {
	svc    serverSvc
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewServerHandler creates a ServerHandler.
func NewServerHandler(svc serverSvc, tokens *auth.TokenIssuer, logger *zap.Logger) *ServerHandler {
	return &ServerHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register mounts the directory routes on the given router group.
func (h *ServerHandler) Register(rg *gin.RouterGroup) {
	servers := rg.Group("/servers")
	{
		servers.GET("", h.List)
		servers.GET("/:id", h.Get)
		servers.POST("", auth.RequireUser(h.tokens), h.Create)
		servers.PATCH("/:id", auth.RequireUser(h.tokens), h.Update)
		servers.DELETE("/:id", auth.RequireUser(h.tokens), h.Delete)
	}
	rg.GET("/users/me/servers", auth.RequireUser(h.tokens), h.ListMine)
}

// Create handles POST /servers — registers a new listing.
func (h *ServerHandler) Create(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	srv, err := h.svc.Register(c.Request.Context(), auth.UserIDFromCtx(c), &req)
	if err != nil {
		var vErr *model.ErrValidation
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Msg})
			return
		}
		h.logger.Error("register server", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, srv)
}

// List handles GET /servers — the public directory, verified listings first.
func (h *ServerHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	search := c.Query("search")

	servers, err := h.svc.List(c.Request.Context(), search, limit, offset)
	if err != nil {
		h.logger.Error("list servers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	if servers == nil {
		servers = []*model.Server{}
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers, "count": len(servers)})
}

// Get handles GET /servers/:id. The path segment may be a UUID or a slug.
func (h *ServerHandler) Get(c *gin.Context) {
	ref := c.Param("id")

	var srv *model.Server
	var err error
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		srv, err = h.svc.Get(c.Request.Context(), id)
	} else {
		srv, err = h.svc.GetBySlug(c.Request.Context(), ref)
	}
	if err != nil {
		if errors.Is(err, service.ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
			return
		}
		h.logger.Error("get server", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, srv)
}

// ListMine handles GET /users/me/servers.
func (h *ServerHandler) ListMine(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	servers, err := h.svc.ListByOwner(c.Request.Context(), auth.UserIDFromCtx(c), limit, offset)
	if err != nil {
		h.logger.Error("list own servers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	if servers == nil {
		servers = []*model.Server{}
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers, "count": len(servers)})
}

// Update handles PATCH /servers/:id — owner-only partial update.
func (h *ServerHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server ID"})
		return
	}

	var req model.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	srv, err := h.svc.Update(c.Request.Context(), id, auth.UserIDFromCtx(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
		case errors.Is(err, service.ErrNotServerOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "not the owner of this server"})
		default:
			h.logger.Error("update server", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, srv)
}

// Delete handles DELETE /servers/:id — owner-only removal.
func (h *ServerHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server ID"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, auth.UserIDFromCtx(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
		case errors.Is(err, service.ErrNotServerOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "not the owner of this server"})
		default:
			h.logger.Error("delete server", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// intQuery parses an integer query parameter with a fallback default.
func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Package api is the HTTP boundary: it resolves the actor, binds request
// parameters, bounds every call with a deadline and maps errors to statuses.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"channelfeed/backend/internal/domain"
	"channelfeed/backend/internal/social"
	apperrors "channelfeed/backend/pkg/errors"
	"channelfeed/backend/pkg/logger"
)

// Handler serves the /api routes
type Handler struct {
	svc     *social.Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a handler. timeout bounds the store calls of one request.
func NewHandler(svc *social.Service, timeout time.Duration, log *zap.Logger) *Handler {
	if log == nil {
		log = logger.Get()
	}
	return &Handler{svc: svc, timeout: timeout, logger: log}
}

// Register mounts every route under /api on r
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api", Actor())
	{
		users := api.Group("/users")
		users.GET("", h.getUserByName)
		users.GET("/:userId", h.getUser)
		users.POST("", h.createUser)
		users.DELETE("/:userId", h.deleteUser)

		channels := api.Group("/channels")
		channels.GET("", h.listChannels)
		channels.GET("/:channelId", h.getChannel)
		channels.POST("", h.createChannel)
		channels.PUT("/:channelId", h.updateChannel)
		channels.DELETE("/:channelId", h.deleteChannel)

		freets := api.Group("/freets")
		freets.GET("", h.listFreets)
		freets.GET("/subscribed", h.subscribedFeed)
		freets.GET("/:freetId", h.getFreet)
		freets.POST("", h.createFreet)
		freets.PUT("/:freetId", h.updateFreet)
		freets.DELETE("/:freetId", h.deleteFreet)

		connections := api.Group("/connections")
		connections.GET("", h.listConnections)
		connections.GET("/followed", h.followedFeed)
		connections.POST("", h.createConnection)
		connections.DELETE("/:connectionId", h.deleteConnection)

		follows := api.Group("/follows")
		follows.GET("", h.listFollows)
		follows.POST("", h.createFollow)
		follows.DELETE("/:followId", h.deleteFollow)

		subscribes := api.Group("/subscribes")
		subscribes.GET("", h.listSubscribes)
		subscribes.POST("", h.createSubscribe)
		subscribes.DELETE("/:subscribeId", h.deleteSubscribe)
	}
}

// ctx derives the per-request deadline.
func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// respond writes v with status, or the error.
func respond[T any](c *gin.Context, status int, v T, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, v)
}

// done writes a mutation result as {"message": ..., key: v}.
func done[T any](c *gin.Context, status int, message, key string, v T, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"message": message, key: v})
}

func (h *Handler) order(c *gin.Context) (domain.Order, bool) {
	order, err := domain.ParseOrder(c.Query("order"), h.svc.DefaultOrder())
	if err != nil {
		writeError(c, apperrors.NewValidation("order", "must be newest or oldest."))
		return order, false
	}
	return order, true
}

// ============================================================================
// Users
// ============================================================================

func (h *Handler) getUserByName(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	username := c.Query("username")
	if username == "" {
		writeError(c, apperrors.NewValidation("username", "query parameter is required."))
		return
	}
	u, err := h.svc.GetUserByUsername(ctx, username)
	respond(c, http.StatusOK, u, err)
}

func (h *Handler) getUser(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.svc.GetUser(ctx, c.Param("userId"))
	respond(c, http.StatusOK, u, err)
}

func (h *Handler) createUser(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.CreateUser(ctx, req.Username)
	done(c, http.StatusCreated, "Your account was created successfully.", "user", u, err)
}

func (h *Handler) deleteUser(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	report, err := h.svc.DeleteUser(ctx, actorOf(c), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Your account was deleted successfully.",
		"deleted": report.Deleted,
	})
}

// ============================================================================
// Channels
// ============================================================================

type channelRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) listChannels(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if id := c.Query("channelId"); id != "" {
		ch, err := h.svc.GetChannel(ctx, id)
		respond(c, http.StatusOK, ch, err)
		return
	}
	channels, err := h.svc.ListChannels(ctx, c.Query("author"))
	respond(c, http.StatusOK, channels, err)
}

func (h *Handler) getChannel(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	ch, err := h.svc.GetChannel(ctx, c.Param("channelId"))
	respond(c, http.StatusOK, ch, err)
}

func (h *Handler) createChannel(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var title, description string
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		description = *req.Description
	}
	ch, err := h.svc.CreateChannel(ctx, actorOf(c), title, description)
	done(c, http.StatusCreated, "Your Channel was created successfully.", "channel", ch, err)
}

func (h *Handler) updateChannel(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ch, err := h.svc.UpdateChannel(ctx, actorOf(c), c.Param("channelId"), social.ChannelPatch{
		Title:       req.Title,
		Description: req.Description,
	})
	done(c, http.StatusOK, "Your Channel was updated successfully.", "channel", ch, err)
}

func (h *Handler) deleteChannel(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	_, err := h.svc.DeleteChannel(ctx, actorOf(c), c.Param("channelId"))
	respond(c, http.StatusOK, gin.H{"message": "Your Channel was deleted successfully."}, err)
}

// ============================================================================
// Freets
// ============================================================================

type freetRequest struct {
	Content string `json:"content"`
}

func (h *Handler) listFreets(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if id := c.Query("freetId"); id != "" {
		f, err := h.svc.GetFreet(ctx, id)
		respond(c, http.StatusOK, f, err)
		return
	}
	freets, err := h.svc.ListFreets(ctx, c.Query("author"))
	respond(c, http.StatusOK, freets, err)
}

func (h *Handler) getFreet(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	f, err := h.svc.GetFreet(ctx, c.Param("freetId"))
	respond(c, http.StatusOK, f, err)
}

func (h *Handler) subscribedFeed(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	order, ok := h.order(c)
	if !ok {
		return
	}
	freets, err := h.svc.SubscribedFeed(ctx, actorOf(c), order)
	respond(c, http.StatusOK, freets, err)
}

func (h *Handler) createFreet(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req freetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f, err := h.svc.CreateFreet(ctx, actorOf(c), req.Content)
	done(c, http.StatusCreated, "Your freet was created successfully.", "freet", f, err)
}

func (h *Handler) updateFreet(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req freetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f, err := h.svc.UpdateFreet(ctx, actorOf(c), c.Param("freetId"), req.Content)
	done(c, http.StatusOK, "Your freet was updated successfully.", "freet", f, err)
}

func (h *Handler) deleteFreet(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	_, err := h.svc.DeleteFreet(ctx, actorOf(c), c.Param("freetId"))
	respond(c, http.StatusOK, gin.H{"message": "Your freet was deleted successfully."}, err)
}

// ============================================================================
// Connections
// ============================================================================

func (h *Handler) listConnections(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	conns, err := h.svc.ListConnections(ctx, social.ConnectionQuery{
		Author:    c.Query("author"),
		ChannelID: c.Query("channelId"),
		FreetID:   c.Query("freetId"),
	})
	respond(c, http.StatusOK, conns, err)
}

func (h *Handler) followedFeed(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	order, ok := h.order(c)
	if !ok {
		return
	}
	conns, err := h.svc.FollowedFeed(ctx, actorOf(c), order)
	respond(c, http.StatusOK, conns, err)
}

func (h *Handler) createConnection(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req struct {
		ChannelID string `json:"channelId" binding:"required"`
		FreetID   string `json:"freetId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	conn, err := h.svc.CreateConnection(ctx, actorOf(c), req.ChannelID, req.FreetID)
	done(c, http.StatusCreated, "Your Connection was created successfully.", "connection", conn, err)
}

func (h *Handler) deleteConnection(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	_, err := h.svc.DeleteConnection(ctx, actorOf(c), c.Param("connectionId"))
	respond(c, http.StatusOK, gin.H{"message": "Your Connection was deleted successfully."}, err)
}

// ============================================================================
// Follows
// ============================================================================

func (h *Handler) listFollows(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	follows, err := h.svc.ListFollows(ctx, social.FollowQuery{
		Author:    c.Query("author"),
		ChannelID: c.Query("channelId"),
	})
	respond(c, http.StatusOK, follows, err)
}

func (h *Handler) createFollow(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req struct {
		ChannelID string `json:"channelId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f, err := h.svc.CreateFollow(ctx, actorOf(c), req.ChannelID)
	done(c, http.StatusCreated, "Your Follow was created successfully.", "follow", f, err)
}

func (h *Handler) deleteFollow(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	_, err := h.svc.DeleteFollow(ctx, actorOf(c), c.Param("followId"))
	respond(c, http.StatusOK, gin.H{"message": "Your Follow was deleted successfully."}, err)
}

// ============================================================================
// Subscribes
// ============================================================================

func (h *Handler) listSubscribes(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	subs, err := h.svc.ListSubscribes(ctx, social.SubscribeQuery{
		Author:        c.Query("author"),
		SubscribingTo: c.Query("subscribingTo"),
	})
	respond(c, http.StatusOK, subs, err)
}

func (h *Handler) createSubscribe(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	var req struct {
		SubscribingTo string `json:"subscribingTo" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := h.svc.CreateSubscribe(ctx, actorOf(c), req.SubscribingTo)
	done(c, http.StatusCreated, "Your Subscribe was created successfully.", "subscribe", sub, err)
}

func (h *Handler) deleteSubscribe(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	_, err := h.svc.DeleteSubscribe(ctx, actorOf(c), c.Param("subscribeId"))
	respond(c, http.StatusOK, gin.H{"message": "Your Subscribe was deleted successfully."}, err)
}

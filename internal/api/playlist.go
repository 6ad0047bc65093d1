package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/middleware"
	"github.com/stwalsh4118/auxroom/internal/models"
	"github.com/stwalsh4118/auxroom/internal/request"
	"github.com/stwalsh4118/auxroom/internal/session"
	"github.com/stwalsh4118/auxroom/internal/ws"
)

// AddItemRequest represents a playlist addition
type AddItemRequest struct {
	TrackID         string `json:"track_id" binding:"required"`
	Title           string `json:"title" binding:"required"`
	Artist          string `json:"artist"`
	DurationSeconds *int   `json:"duration_seconds" binding:"omitempty,min=1"`
}

// ReorderItemRequest represents a playlist move
type ReorderItemRequest struct {
	NewPosition *int `json:"new_position" binding:"required"`
}

// PendingRequestResponse is returned when a guest mutation is queued for
// host review instead of applied
type PendingRequestResponse struct {
	Request ws.RequestPayload `json:"request"`
}

// PlaylistHandler handles playlist requests. Host tokens mutate the playlist
// directly; guest tokens route the same operations through the request
// engine as pending requests.
type PlaylistHandler struct {
	sessions  *session.Service
	playlist  *session.PlaylistService
	requests  *request.Engine
	identity  *identity.Service
	publisher *ws.Publisher
}

// NewPlaylistHandler creates a new playlist handler instance
func NewPlaylistHandler(sessionService *session.Service, playlistService *session.PlaylistService, engine *request.Engine, identityService *identity.Service, publisher *ws.Publisher) *PlaylistHandler {
	return &PlaylistHandler{
		sessions:  sessionService,
		playlist:  playlistService,
		requests:  engine,
		identity:  identityService,
		publisher: publisher,
	}
}

// List handles GET /api/sessions/:id/playlist
func (h *PlaylistHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	_, sess, ok := h.member(ctx, c)
	if !ok {
		return
	}

	items, err := h.playlist.List(ctx, sess.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ws.ToPlaylistPayload(items))
}

// Add handles POST /api/sessions/:id/playlist
func (h *PlaylistHandler) Add(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	actor, sess, ok := h.member(ctx, c)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	if actor.IsGuest() {
		h.submitRequest(ctx, c, sess, actor, models.RequestTypeAdd, request.AddPayload{
			TrackID:         req.TrackID,
			Title:           req.Title,
			Artist:          req.Artist,
			DurationSeconds: req.DurationSeconds,
		})
		return
	}

	item, err := h.playlist.Add(ctx, sess.ID, session.AddItemParams{
		TrackID:         req.TrackID,
		Title:           req.Title,
		Artist:          req.Artist,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.publisher.PlaylistUpdate(ctx, sess.ID)
	// The first item also selects the current track
	if item.Position == 0 {
		h.broadcastPlayback(ctx, sess.ID)
	}

	c.JSON(http.StatusCreated, ws.PlaylistItemPayload{
		ID:              item.ID.String(),
		TrackID:         item.TrackID,
		Title:           item.Title,
		Artist:          item.Artist,
		DurationSeconds: item.DurationSeconds,
		Position:        item.Position,
	})
}

// Reorder handles PATCH /api/sessions/:id/playlist/:itemId
func (h *PlaylistHandler) Reorder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	actor, sess, ok := h.member(ctx, c)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid item ID format",
		})
		return
	}

	var req ReorderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewPosition == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "new_position is required",
		})
		return
	}

	if actor.IsGuest() {
		h.submitRequest(ctx, c, sess, actor, models.RequestTypeReorder, request.ReorderPayload{
			ItemID:      itemID,
			NewPosition: *req.NewPosition,
		})
		return
	}

	if err := h.playlist.Reorder(ctx, sess.ID, itemID, *req.NewPosition); err != nil {
		respondError(c, err)
		return
	}

	h.publisher.PlaylistUpdate(ctx, sess.ID)
	h.respondPlaylist(ctx, c, sess.ID)
}

// Remove handles DELETE /api/sessions/:id/playlist/:itemId
func (h *PlaylistHandler) Remove(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	actor, sess, ok := h.member(ctx, c)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid item ID format",
		})
		return
	}

	if actor.IsGuest() {
		h.submitRequest(ctx, c, sess, actor, models.RequestTypeRemove, request.RemovePayload{
			ItemID: itemID,
		})
		return
	}

	before := sess.PlaybackTrackID
	if err := h.playlist.Remove(ctx, sess.ID, itemID); err != nil {
		respondError(c, err)
		return
	}

	h.publisher.PlaylistUpdate(ctx, sess.ID)
	// Removing the current track moves the track pointer
	if before != nil && h.trackChanged(ctx, sess.ID, before) {
		h.broadcastPlayback(ctx, sess.ID)
	}

	h.respondPlaylist(ctx, c, sess.ID)
}

// member authorizes the request's actor against the session in the path.
// Writes the error response itself when authorization fails.
func (h *PlaylistHandler) member(ctx context.Context, c *gin.Context) (*models.Actor, *models.Session, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return nil, nil, false
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid session ID format",
		})
		return nil, nil, false
	}

	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}

	if err := h.identity.CheckMembership(actor, sess); err != nil {
		respondError(c, err)
		return nil, nil, false
	}

	return actor, sess, true
}

// submitRequest queues a guest mutation as a pending request and answers 202
func (h *PlaylistHandler) submitRequest(ctx context.Context, c *gin.Context, sess *models.Session, actor *models.Actor, requestType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		respondError(c, err)
		return
	}

	req, err := h.requests.Submit(ctx, sess, actor, requestType, data)
	if err != nil {
		respondError(c, err)
		return
	}

	h.publisher.RequestUpdate(ctx, req)

	c.JSON(http.StatusAccepted, PendingRequestResponse{
		Request: ws.ToRequestPayload(req, actor.Name),
	})
}

// respondPlaylist answers with the session's current playlist snapshot
func (h *PlaylistHandler) respondPlaylist(ctx context.Context, c *gin.Context, sessionID uuid.UUID) {
	items, err := h.playlist.List(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.ToPlaylistPayload(items))
}

// broadcastPlayback rereads the session and broadcasts its playback snapshot
func (h *PlaylistHandler) broadcastPlayback(ctx context.Context, sessionID uuid.UUID) {
	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return
	}
	h.publisher.PlaybackState(sess)
}

// trackChanged reports whether the session's current track no longer matches
// the given track reference
func (h *PlaylistHandler) trackChanged(ctx context.Context, sessionID uuid.UUID, before *string) bool {
	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false
	}
	if sess.PlaybackTrackID == nil {
		return true
	}
	return *sess.PlaybackTrackID != *before
}

// SetupPlaylistRoutes registers playlist routes; all require authentication
func SetupPlaylistRoutes(apiGroup *gin.RouterGroup, handler *PlaylistHandler, requireActor gin.HandlerFunc) {
	apiGroup.GET("/sessions/:id/playlist", requireActor, handler.List)
	apiGroup.POST("/sessions/:id/playlist", requireActor, handler.Add)
	apiGroup.PATCH("/sessions/:id/playlist/:itemId", requireActor, handler.Reorder)
	apiGroup.DELETE("/sessions/:id/playlist/:itemId", requireActor, handler.Remove)
}

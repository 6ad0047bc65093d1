package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/middleware"
	"github.com/stwalsh4118/auxroom/internal/models"
	"github.com/stwalsh4118/auxroom/internal/session"
	"github.com/stwalsh4118/auxroom/internal/ws"
)

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	HostName                string `json:"host_name" binding:"required"`
	MaxTrackDurationSeconds *int   `json:"max_track_duration_seconds" binding:"omitempty,min=1"`
}

// JoinSessionRequest represents a guest join request
type JoinSessionRequest struct {
	GuestName string `json:"guest_name" binding:"required"`
}

// SessionResponse is the full session snapshot returned by session endpoints:
// identity, the playlist in position order, and current playback state
type SessionResponse struct {
	ID                      string                   `json:"id"`
	Code                    string                   `json:"code"`
	HostID                  string                   `json:"host_id"`
	MaxTrackDurationSeconds *int                     `json:"max_track_duration_seconds,omitempty"`
	Playlist                []ws.PlaylistItemPayload `json:"playlist"`
	Playback                ws.PlaybackPayload       `json:"playback"`
	CreatedAt               string                   `json:"created_at"`
}

// CreateSessionResponse pairs the snapshot with the host's join code
type CreateSessionResponse struct {
	Session SessionResponse `json:"session"`
	Code    string          `json:"code"`
}

// JoinSessionResponse pairs the snapshot with the freshly minted guest token
type JoinSessionResponse struct {
	Session    SessionResponse `json:"session"`
	GuestToken string          `json:"guest_token"`
	GuestID    string          `json:"guest_id"`
}

// SessionHandler handles session lifecycle requests
type SessionHandler struct {
	sessions *session.Service
	playlist *session.PlaylistService
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessionService *session.Service, playlistService *session.PlaylistService) *SessionHandler {
	return &SessionHandler{
		sessions: sessionService,
		playlist: playlistService,
	}
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, err := h.sessions.Create(ctx, actor, req.HostName, req.MaxTrackDurationSeconds)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateSessionResponse{
		Session: h.snapshot(ctx, sess, nil),
		Code:    sess.Code,
	})
}

// Join handles POST /api/sessions/:id/join, where the path segment is the
// session's join code
func (h *SessionHandler) Join(c *gin.Context) {
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, guest, err := h.sessions.Join(ctx, c.Param("id"), req.GuestName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, JoinSessionResponse{
		Session:    h.snapshot(ctx, sess, nil),
		GuestToken: guest.Token,
		GuestID:    guest.ID.String(),
	})
}

// Get handles GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid session ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.snapshot(ctx, sess, nil))
}

// snapshot assembles the session's wire representation. items may be nil,
// in which case the playlist is loaded fresh.
func (h *SessionHandler) snapshot(ctx context.Context, sess *models.Session, items []*models.PlaylistItem) SessionResponse {
	if items == nil {
		loaded, err := h.playlist.List(ctx, sess.ID)
		if err == nil {
			items = loaded
		}
	}

	return SessionResponse{
		ID:                      sess.ID.String(),
		Code:                    sess.Code,
		HostID:                  sess.HostID.String(),
		MaxTrackDurationSeconds: sess.MaxTrackDurationSeconds,
		Playlist:                ws.ToPlaylistPayload(items).Playlist,
		Playback:                ws.ToPlaybackPayload(sess),
		CreatedAt:               sess.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SetupSessionRoutes registers session lifecycle routes. Creation requires an
// authenticated host token; joining only needs the code. The join route's :id
// segment carries the join code, not a session ID, since all session routes
// share one wildcard.
func SetupSessionRoutes(apiGroup *gin.RouterGroup, handler *SessionHandler, requireActor gin.HandlerFunc) {
	apiGroup.POST("/sessions", requireActor, handler.Create)
	apiGroup.POST("/sessions/:id/join", handler.Join)
	apiGroup.GET("/sessions/:id", requireActor, handler.Get)
}

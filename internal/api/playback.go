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
	"github.com/stwalsh4118/auxroom/internal/session"
	"github.com/stwalsh4118/auxroom/internal/ws"
)

// PlaybackStateRequest is a partial playback state update. Absent keys leave
// their fields untouched; an explicit null track_id clears the current track.
type PlaybackStateRequest struct {
	TrackID    *string `json:"track_id"`
	PositionMs *int    `json:"position_ms"`
	State      *string `json:"state"`

	// SetTrack records whether the track_id key was present at all
	SetTrack bool `json:"-"`
}

// UnmarshalJSON decodes the update and records track_id key presence, since
// "set to null" and "leave alone" are different updates
func (r *PlaybackStateRequest) UnmarshalJSON(data []byte) error {
	type alias PlaybackStateRequest
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	*r = PlaybackStateRequest(decoded)
	_, r.SetTrack = keys["track_id"]
	return nil
}

// PlaybackHandler handles playback state updates. Only the session host
// steers playback; guests observe it over the live channel.
type PlaybackHandler struct {
	sessions  *session.Service
	playback  *session.PlaybackService
	identity  *identity.Service
	publisher *ws.Publisher
}

// NewPlaybackHandler creates a new playback handler instance
func NewPlaybackHandler(sessionService *session.Service, playbackService *session.PlaybackService, identityService *identity.Service, publisher *ws.Publisher) *PlaybackHandler {
	return &PlaybackHandler{
		sessions:  sessionService,
		playback:  playbackService,
		identity:  identityService,
		publisher: publisher,
	}
}

// Update handles POST /api/sessions/:id/playback
func (h *PlaybackHandler) Update(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid session ID format",
		})
		return
	}

	var req PlaybackStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}
	if req.State != nil && *req.State != models.PlaybackPlaying && *req.State != models.PlaybackPaused {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "state must be playing or paused",
		})
		return
	}
	if req.PositionMs != nil && *req.PositionMs < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "position_ms must not be negative",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.identity.RequireHost(actor, sess); err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.playback.UpdateState(ctx, sessionID, session.PlaybackUpdate{
		TrackID:    req.TrackID,
		SetTrack:   req.SetTrack,
		PositionMs: req.PositionMs,
		Mode:       req.State,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.publisher.PlaybackState(updated)

	c.JSON(http.StatusOK, ws.ToPlaybackPayload(updated))
}

// SetupPlaybackRoutes registers playback routes; all require authentication
func SetupPlaybackRoutes(apiGroup *gin.RouterGroup, handler *PlaybackHandler, requireActor gin.HandlerFunc) {
	apiGroup.POST("/sessions/:id/playback", requireActor, handler.Update)
}

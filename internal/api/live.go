package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/middleware"
	"github.com/stwalsh4118/auxroom/internal/session"
	"github.com/stwalsh4118/auxroom/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveHandler upgrades authenticated members to the session's live channel
type LiveHandler struct {
	hub        *ws.Hub
	identity   *identity.Service
	sessions   *session.Service
	playlist   *session.PlaylistService
	handler    *ws.MessageHandler
	sendBuffer int
}

// NewLiveHandler creates a new live connection handler
func NewLiveHandler(hub *ws.Hub, identityService *identity.Service, sessionService *session.Service, playlistService *session.PlaylistService, messageHandler *ws.MessageHandler, sendBuffer int) *LiveHandler {
	return &LiveHandler{
		hub:        hub,
		identity:   identityService,
		sessions:   sessionService,
		playlist:   playlistService,
		handler:    messageHandler,
		sendBuffer: sendBuffer,
	}
}

// Connect handles GET /api/sessions/:id/ws. The token comes from the
// X-User-Token header or, for browser clients, the token query parameter.
// Validation failures close the socket with code 4003 after the upgrade so
// the client sees a protocol-level rejection rather than a failed handshake.
func (h *LiveHandler) Connect(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid session ID format",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Websocket upgrade failed")
		return
	}

	token := c.GetHeader(middleware.TokenHeader)
	if token == "" {
		token = c.Query("token")
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	actor, err := h.identity.Authorize(ctx, token, sessionID)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Live connection rejected")
		h.reject(conn)
		return
	}

	client := ws.NewClient(h.hub, conn, sessionID, actor, h.handler, h.sendBuffer)
	h.hub.Register(client)

	// Initial snapshot, queued before the pumps start so it always precedes
	// any broadcast: playback state first, then the playlist.
	h.sendSnapshot(ctx, client, sessionID)

	client.Start()

	logger.Log.Info().
		Str("session_id", sessionID.String()).
		Str("actor_id", actor.ID.String()).
		Msg("Live connection established")
}

// sendSnapshot queues the session's current playback and playlist state for
// a newly connected listener
func (h *LiveHandler) sendSnapshot(ctx context.Context, client *ws.Client, sessionID uuid.UUID) {
	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to load session for initial snapshot")
		return
	}

	if envelope, err := ws.NewEnvelope(ws.EventPlaybackState, ws.ToPlaybackPayload(sess)); err == nil {
		client.Send(envelope)
	}

	items, err := h.playlist.List(ctx, sessionID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to load playlist for initial snapshot")
		return
	}
	if envelope, err := ws.NewEnvelope(ws.EventPlaylistUpdate, ws.ToPlaylistPayload(items)); err == nil {
		client.Send(envelope)
	}
}

// reject closes a freshly upgraded connection with the unauthorized close code
func (h *LiveHandler) reject(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(ws.CloseUnauthorized, "unauthorized"),
		deadline,
	)
	_ = conn.Close()
}

// SetupLiveRoutes registers the live channel route. Authentication happens
// inside the handler because websocket clients cannot always set headers.
func SetupLiveRoutes(apiGroup *gin.RouterGroup, handler *LiveHandler) {
	apiGroup.GET("/sessions/:id/ws", handler.Connect)
}

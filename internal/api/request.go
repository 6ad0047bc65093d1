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

// SubmitRequestRequest represents a free-form request submission
type SubmitRequestRequest struct {
	RequestType string          `json:"request_type" binding:"required"`
	Payload     json.RawMessage `json:"payload"`
}

// ResolveRequestRequest carries the optional resolution reason
type ResolveRequestRequest struct {
	Reason *string `json:"reason"`
}

// RequestListResponse is the host's review surface: every request the
// session has seen, in submission order
type RequestListResponse struct {
	Requests []ws.RequestPayload `json:"requests"`
}

// RequestHandler handles the request/approval workflow over REST
type RequestHandler struct {
	sessions  *session.Service
	requests  *request.Engine
	identity  *identity.Service
	publisher *ws.Publisher
}

// NewRequestHandler creates a new request handler instance
func NewRequestHandler(sessionService *session.Service, engine *request.Engine, identityService *identity.Service, publisher *ws.Publisher) *RequestHandler {
	return &RequestHandler{
		sessions:  sessionService,
		requests:  engine,
		identity:  identityService,
		publisher: publisher,
	}
}

// Submit handles POST /api/sessions/:id/requests. Free-form request types
// are accepted from any session member; mutation types must come from guests.
func (h *RequestHandler) Submit(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	actor, sess, ok := h.member(ctx, c)
	if !ok {
		return
	}

	var req SubmitRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}

	submitted, err := h.requests.Submit(ctx, sess, actor, req.RequestType, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}

	h.publisher.RequestUpdate(ctx, submitted)

	c.JSON(http.StatusAccepted, PendingRequestResponse{
		Request: ws.ToRequestPayload(submitted, actor.Name),
	})
}

// List handles GET /api/sessions/:id/requests
func (h *RequestHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	_, sess, ok := h.member(ctx, c)
	if !ok {
		return
	}

	requests, err := h.requests.ListBySession(ctx, sess.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := RequestListResponse{Requests: make([]ws.RequestPayload, len(requests))}
	for i, req := range requests {
		response.Requests[i] = ws.ToRequestPayload(req, h.publisher.RequesterName(ctx, req))
	}

	c.JSON(http.StatusOK, response)
}

// Approve handles POST /api/requests/:requestId/approve
func (h *RequestHandler) Approve(c *gin.Context) {
	h.resolve(c, true)
}

// Deny handles POST /api/requests/:requestId/deny
func (h *RequestHandler) Deny(c *gin.Context) {
	h.resolve(c, false)
}

// resolve drives both terminal transitions. Approvals of mutation requests
// change the playlist, so they broadcast the new snapshot alongside the
// request's status; denials only broadcast the status.
func (h *RequestHandler) resolve(c *gin.Context, approve bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
		return
	}

	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request ID format",
		})
		return
	}

	var body ResolveRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request body: " + err.Error(),
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var resolved *models.PlaylistRequest
	if approve {
		resolved, err = h.requests.Approve(ctx, requestID, actor, body.Reason)
	} else {
		resolved, err = h.requests.Deny(ctx, requestID, actor, body.Reason)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if approve && resolved.IsMutation() {
		h.publisher.PlaylistUpdate(ctx, resolved.SessionID)
		if sess, serr := h.sessions.GetByID(ctx, resolved.SessionID); serr == nil {
			h.publisher.PlaybackState(sess)
		}
	}
	h.publisher.RequestUpdate(ctx, resolved)

	c.JSON(http.StatusOK, PendingRequestResponse{
		Request: ws.ToRequestPayload(resolved, h.publisher.RequesterName(ctx, resolved)),
	})
}

// member authorizes the request's actor against the session in the path
func (h *RequestHandler) member(ctx context.Context, c *gin.Context) (*models.Actor, *models.Session, bool) {
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

// SetupRequestRoutes registers request workflow routes; all require
// authentication
func SetupRequestRoutes(apiGroup *gin.RouterGroup, handler *RequestHandler, requireActor gin.HandlerFunc) {
	apiGroup.POST("/sessions/:id/requests", requireActor, handler.Submit)
	apiGroup.GET("/sessions/:id/requests", requireActor, handler.List)
	apiGroup.POST("/requests/:requestId/approve", requireActor, handler.Approve)
	apiGroup.POST("/requests/:requestId/deny", requireActor, handler.Deny)
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/request"
	"github.com/stwalsh4118/auxroom/internal/session"
)

// Protocol-level errors surfaced to the sending client as error envelopes
var (
	ErrUnknownMessageType = errors.New("unsupported message type")
	ErrHostRequired       = errors.New("host privileges required")
	ErrGuestRequired      = errors.New("guest privileges required")
	ErrMalformedPayload   = errors.New("malformed message payload")
)

// requestChangePayload is the inbound payload of request_playlist_change
type requestChangePayload struct {
	RequestType string          `json:"request_type"`
	Payload     json.RawMessage `json:"payload"`
}

// resolutionPayload is the inbound payload of approve_request / deny_request
type resolutionPayload struct {
	RequestID uuid.UUID `json:"request_id"`
	Reason    *string   `json:"reason,omitempty"`
}

// MessageHandler interprets inbound live-session messages and dispatches
// them to the session store or the request engine, then triggers the
// corresponding broadcasts. Role checks happen here per message, server-side,
// regardless of anything the client claims.
type MessageHandler struct {
	identity  *identity.Service
	sessions  *session.Service
	playback  *session.PlaybackService
	requests  *request.Engine
	publisher *Publisher
}

// NewMessageHandler creates a new protocol message handler
func NewMessageHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	playbackService *session.PlaybackService,
	requestEngine *request.Engine,
	publisher *Publisher,
) *MessageHandler {
	return &MessageHandler{
		identity:  identityService,
		sessions:  sessionService,
		playback:  playbackService,
		requests:  requestEngine,
		publisher: publisher,
	}
}

// Handle dispatches one inbound envelope from a client. A returned error is
// delivered to that client only; the connection stays open.
func (h *MessageHandler) Handle(ctx context.Context, client *Client, envelope Envelope) error {
	switch envelope.Type {
	case MessagePlaybackCommand:
		return h.handlePlaybackCommand(ctx, client, envelope.Payload)

	case MessageRequestChange:
		return h.handleRequestChange(ctx, client, envelope.Payload)

	case MessageApproveRequest:
		return h.handleResolution(ctx, client, envelope.Payload, true)

	case MessageDenyRequest:
		return h.handleResolution(ctx, client, envelope.Payload, false)

	case MessageSyncAck:
		// Heartbeat, acknowledged silently
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownMessageType, envelope.Type)
}

func (h *MessageHandler) handlePlaybackCommand(ctx context.Context, client *Client, payload json.RawMessage) error {
	sess, err := h.sessions.GetByID(ctx, client.sessionID)
	if err != nil {
		return err
	}
	if err := h.identity.RequireHost(client.actor, sess); err != nil {
		return ErrHostRequired
	}

	var cmd session.PlaybackCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	updated, err := h.playback.ApplyCommand(ctx, client.sessionID, cmd)
	if err != nil {
		return err
	}

	h.publisher.PlaybackState(updated)
	return nil
}

func (h *MessageHandler) handleRequestChange(ctx context.Context, client *Client, payload json.RawMessage) error {
	if !client.actor.IsGuest() {
		return ErrGuestRequired
	}

	sess, err := h.sessions.GetByID(ctx, client.sessionID)
	if err != nil {
		return err
	}

	var change requestChangePayload
	if err := json.Unmarshal(payload, &change); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	req, err := h.requests.Submit(ctx, sess, client.actor, change.RequestType, change.Payload)
	if err != nil {
		return err
	}

	h.publisher.RequestUpdate(ctx, req)
	return nil
}

func (h *MessageHandler) handleResolution(ctx context.Context, client *Client, payload json.RawMessage, approve bool) error {
	var resolution resolutionPayload
	if err := json.Unmarshal(payload, &resolution); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if approve {
		req, err := h.requests.Approve(ctx, resolution.RequestID, client.actor, resolution.Reason)
		if err != nil {
			return err
		}
		h.publisher.PlaylistUpdate(ctx, req.SessionID)
		h.publisher.RequestUpdate(ctx, req)
		return nil
	}

	req, err := h.requests.Deny(ctx, resolution.RequestID, client.actor, resolution.Reason)
	if err != nil {
		return err
	}
	h.publisher.RequestUpdate(ctx, req)
	return nil
}

// errorEnvelope builds an error envelope with an explicit code and message
func errorEnvelope(code, message string) Envelope {
	envelope, err := NewEnvelope(EventError, ErrorPayload{Error: code, Message: message})
	if err != nil {
		return Envelope{Type: EventError}
	}
	return envelope
}

// errorEnvelopeFor maps a handler error to the error envelope sent back to
// the offending client
func errorEnvelopeFor(err error) Envelope {
	switch {
	case errors.Is(err, ErrUnknownMessageType):
		return errorEnvelope("bad_request", err.Error())
	case errors.Is(err, ErrMalformedPayload):
		return errorEnvelope("bad_request", err.Error())
	case errors.Is(err, ErrHostRequired), errors.Is(err, ErrGuestRequired),
		errors.Is(err, identity.ErrForbidden):
		return errorEnvelope("forbidden", err.Error())
	case errors.Is(err, request.ErrRequestNotFound), errors.Is(err, session.ErrItemNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return errorEnvelope("not_found", err.Error())
	case errors.Is(err, request.ErrRequestResolved):
		return errorEnvelope("conflict", err.Error())
	case errors.Is(err, session.ErrPositionOutOfRange), errors.Is(err, session.ErrInvalidPlaybackAction),
		errors.Is(err, request.ErrUnknownRequestType), errors.Is(err, request.ErrInvalidPayload):
		return errorEnvelope("bad_request", err.Error())
	case session.IsPolicyViolation(err):
		return errorEnvelope("policy_violation", err.Error())
	}
	return errorEnvelope("internal_error", "internal error")
}

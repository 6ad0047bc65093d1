// Package ws provides the live session channel: a per-session broadcast hub
// fanning out state-change events to connected listeners, and the protocol
// handler interpreting inbound client messages.
package ws

import (
	"encoding/json"
	"time"

	"github.com/stwalsh4118/auxroom/internal/models"
)

// Event types delivered to session listeners
const (
	EventPlaylistUpdate = "playlist_update"
	EventPlaybackState  = "playback_state"
	EventRequestUpdate  = "request_update"
	EventError          = "error"
)

// Inbound message types
const (
	MessagePlaybackCommand = "playback_command"
	MessageRequestChange   = "request_playlist_change"
	MessageApproveRequest  = "approve_request"
	MessageDenyRequest     = "deny_request"
	MessageSyncAck         = "sync_ack"
)

// Envelope is the canonical bidirectional message shape
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope, marshaling the payload
func NewEnvelope(eventType string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: data}, nil
}

// PlaylistItemPayload is one playlist entry as it appears on the wire
type PlaylistItemPayload struct {
	ID              string `json:"id"`
	TrackID         string `json:"track_id"`
	Title           string `json:"title"`
	Artist          string `json:"artist,omitempty"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	Position        int    `json:"position"`
}

// PlaylistPayload is the payload of a playlist_update event: the full
// playlist snapshot in position order
type PlaylistPayload struct {
	Playlist []PlaylistItemPayload `json:"playlist"`
}

// PlaybackPayload is the payload of a playback_state event: the full
// playback snapshot
type PlaybackPayload struct {
	TrackID    *string `json:"track_id"`
	PositionMs int     `json:"position_ms"`
	State      string  `json:"state"`
	UpdatedAt  string  `json:"updated_at"`
}

// RequestPayload is the payload of a request_update event: a single
// request's current representation
type RequestPayload struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Requester   string          `json:"requester"`
	RequestType string          `json:"request_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Reason      *string         `json:"reason,omitempty"`
}

// ErrorPayload is the payload of an error envelope sent back to a single
// client whose message was rejected
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ToPlaylistPayload converts playlist items to their wire representation
func ToPlaylistPayload(items []*models.PlaylistItem) PlaylistPayload {
	payload := PlaylistPayload{Playlist: make([]PlaylistItemPayload, len(items))}
	for i, item := range items {
		payload.Playlist[i] = PlaylistItemPayload{
			ID:              item.ID.String(),
			TrackID:         item.TrackID,
			Title:           item.Title,
			Artist:          item.Artist,
			DurationSeconds: item.DurationSeconds,
			Position:        item.Position,
		}
	}
	return payload
}

// ToPlaybackPayload converts a session's playback columns to their wire
// representation
func ToPlaybackPayload(session *models.Session) PlaybackPayload {
	return PlaybackPayload{
		TrackID:    session.PlaybackTrackID,
		PositionMs: session.PlaybackPositionMs,
		State:      session.PlaybackMode,
		UpdatedAt:  session.PlaybackUpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToRequestPayload converts a request to its wire representation.
// requesterName is resolved by the caller.
func ToRequestPayload(req *models.PlaylistRequest, requesterName string) RequestPayload {
	return RequestPayload{
		ID:          req.ID.String(),
		SessionID:   req.SessionID.String(),
		Requester:   requesterName,
		RequestType: req.RequestType,
		Payload:     req.Payload,
		Status:      req.Status,
		Reason:      req.Reason,
	}
}

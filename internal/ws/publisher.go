package ws

import (
	"context"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
	"github.com/stwalsh4118/auxroom/internal/session"
)

// Publisher builds event snapshots and hands them to the hub. Both the REST
// handlers and the live protocol handler publish through it so a mutation
// produces the same events regardless of transport. Publish failures are
// logged and discarded: broadcasting never fails the triggering mutation.
type Publisher struct {
	hub      *Hub
	repos    *db.Repositories
	playlist *session.PlaylistService
}

// NewPublisher creates a new event publisher
func NewPublisher(hub *Hub, repos *db.Repositories, playlistService *session.PlaylistService) *Publisher {
	return &Publisher{
		hub:      hub,
		repos:    repos,
		playlist: playlistService,
	}
}

// PlaylistUpdate broadcasts the session's full playlist snapshot
func (p *Publisher) PlaylistUpdate(ctx context.Context, sessionID uuid.UUID) {
	items, err := p.playlist.List(ctx, sessionID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to build playlist snapshot for broadcast")
		return
	}

	envelope, err := NewEnvelope(EventPlaylistUpdate, ToPlaylistPayload(items))
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to build playlist_update envelope")
		return
	}
	p.hub.Broadcast(sessionID, envelope)
}

// PlaybackState broadcasts the session's full playback snapshot
func (p *Publisher) PlaybackState(sess *models.Session) {
	envelope, err := NewEnvelope(EventPlaybackState, ToPlaybackPayload(sess))
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sess.ID.String()).
			Msg("Failed to build playback_state envelope")
		return
	}
	p.hub.Broadcast(sess.ID, envelope)
}

// RequestUpdate broadcasts a single request's current representation
func (p *Publisher) RequestUpdate(ctx context.Context, req *models.PlaylistRequest) {
	envelope, err := NewEnvelope(EventRequestUpdate, ToRequestPayload(req, p.requesterName(ctx, req)))
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("request_id", req.ID.String()).
			Msg("Failed to build request_update envelope")
		return
	}
	p.hub.Broadcast(req.SessionID, envelope)
}

// RequesterName resolves the display name behind a request for wire
// representations
func (p *Publisher) RequesterName(ctx context.Context, req *models.PlaylistRequest) string {
	return p.requesterName(ctx, req)
}

func (p *Publisher) requesterName(ctx context.Context, req *models.PlaylistRequest) string {
	requester, err := p.repos.Actors.GetByID(ctx, req.RequesterID)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("request_id", req.ID.String()).
			Msg("Failed to resolve requester name")
		return ""
	}
	return requester.Name
}

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
)

// Playback command actions
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionSeek     = "seek"
	ActionSkipNext = "skip_next"
	ActionSkipPrev = "skip_prev"
)

// PlaybackCommand is a host-issued playback instruction
type PlaybackCommand struct {
	Action     string  `json:"action"`
	TrackID    *string `json:"track_id,omitempty"`
	PositionMs *int    `json:"position_ms,omitempty"`
}

// PlaybackUpdate is a partial playback state change. Nil fields are left
// untouched; every applied update stamps the state's updated-at.
type PlaybackUpdate struct {
	TrackID    *string `json:"track_id,omitempty"`
	SetTrack   bool    `json:"-"`
	PositionMs *int    `json:"position_ms,omitempty"`
	Mode       *string `json:"state,omitempty"`
}

// PlaybackService mutates a session's playback state. Only the host issues
// playback commands; the role check lives with the callers, which share the
// identity service's single authorization rule.
type PlaybackService struct {
	repos *db.Repositories
	locks *Locks
}

// NewPlaybackService creates a new playback service instance
func NewPlaybackService(repos *db.Repositories, locks *Locks) *PlaybackService {
	return &PlaybackService{
		repos: repos,
		locks: locks,
	}
}

// ApplyCommand interprets a playback command against the session's current
// state and playlist, persists the result, and returns the updated session.
// Skip actions clamp at the playlist edges and reset the position offset to
// zero without changing the play/pause mode.
func (s *PlaybackService) ApplyCommand(ctx context.Context, sessionID uuid.UUID, cmd PlaybackCommand) (*models.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to apply playback command: %w", ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to apply playback command: %w", err)
	}

	update := PlaybackUpdate{}

	switch cmd.Action {
	case ActionPlay:
		if cmd.TrackID != nil {
			update.TrackID = cmd.TrackID
			update.SetTrack = true
		}
		update.PositionMs = cmd.PositionMs
		mode := models.PlaybackPlaying
		update.Mode = &mode

	case ActionPause:
		update.PositionMs = cmd.PositionMs
		mode := models.PlaybackPaused
		update.Mode = &mode

	case ActionSeek:
		if cmd.TrackID != nil {
			update.TrackID = cmd.TrackID
			update.SetTrack = true
		}
		update.PositionMs = cmd.PositionMs

	case ActionSkipNext, ActionSkipPrev:
		items, err := s.repos.PlaylistItems.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to apply playback command: %w", err)
		}

		next := skipTarget(session, items, cmd.Action == ActionSkipNext)
		update.TrackID = next
		update.SetTrack = true
		zero := 0
		update.PositionMs = &zero

	default:
		logger.Log.Warn().
			Str("session_id", sessionID.String()).
			Str("action", cmd.Action).
			Msg("Playback command rejected: unknown action")
		return nil, fmt.Errorf("failed to apply playback command: %w", ErrInvalidPlaybackAction)
	}

	if err := s.apply(ctx, session, update); err != nil {
		return nil, fmt.Errorf("failed to apply playback command: %w", err)
	}

	logger.Log.Info().
		Str("session_id", sessionID.String()).
		Str("action", cmd.Action).
		Msg("Playback command applied")

	return session, nil
}

// UpdateState applies a partial playback state update and returns the
// updated session
func (s *PlaybackService) UpdateState(ctx context.Context, sessionID uuid.UUID, update PlaybackUpdate) (*models.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to update playback state: %w", ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to update playback state: %w", err)
	}

	if update.TrackID != nil {
		update.SetTrack = true
	}
	if err := s.apply(ctx, session, update); err != nil {
		return nil, fmt.Errorf("failed to update playback state: %w", err)
	}

	logger.Log.Info().
		Str("session_id", sessionID.String()).
		Msg("Playback state updated")

	return session, nil
}

// apply mutates the session's playback columns and persists them, always
// stamping updated-at
func (s *PlaybackService) apply(ctx context.Context, session *models.Session, update PlaybackUpdate) error {
	if update.SetTrack {
		session.PlaybackTrackID = update.TrackID
	}
	if update.PositionMs != nil {
		session.PlaybackPositionMs = *update.PositionMs
	}
	if update.Mode != nil {
		session.PlaybackMode = *update.Mode
	}
	session.PlaybackUpdatedAt = time.Now().UTC()

	return s.repos.Sessions.Update(ctx, session)
}

// skipTarget computes the new current track for a skip command. The current
// track's index defaults to 0 when absent or not found; skips clamp at the
// playlist edges and an empty playlist yields no track.
func skipTarget(session *models.Session, items []*models.PlaylistItem, forward bool) *string {
	if len(items) == 0 {
		return nil
	}

	index := 0
	if session.PlaybackTrackID != nil {
		for i, item := range items {
			if item.TrackID == *session.PlaybackTrackID {
				index = i
				break
			}
		}
	}

	if forward {
		if index < len(items)-1 {
			index++
		}
	} else {
		if index > 0 {
			index--
		}
	}

	trackID := items[index].TrackID
	return &trackID
}

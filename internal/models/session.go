package models

import (
	"time"

	"github.com/google/uuid"
)

// Playback modes
const (
	PlaybackPlaying = "playing"
	PlaybackPaused  = "paused"
)

// Session represents a collaborative listening session. Playback state is
// embedded directly on the session row: there is exactly one per session and
// it is mutated together with the session under the same write lock.
type Session struct {
	ID                      uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Code                    string    `json:"code" gorm:"type:text;not null;uniqueIndex;column:code"`
	HostID                  uuid.UUID `json:"host_id" gorm:"type:text;not null;column:host_id" validate:"required"`
	MaxTrackDurationSeconds *int      `json:"max_track_duration_seconds,omitempty" gorm:"type:integer;column:max_track_duration_seconds"`
	PlaybackTrackID         *string   `json:"playback_track_id,omitempty" gorm:"type:text;column:playback_track_id"`
	PlaybackPositionMs      int       `json:"playback_position_ms" gorm:"type:integer;not null;default:0;column:playback_position_ms" validate:"gte=0"`
	PlaybackMode            string    `json:"playback_mode" gorm:"type:text;not null;default:paused;column:playback_mode"`
	PlaybackUpdatedAt       time.Time `json:"playback_updated_at" gorm:"type:datetime;not null;column:playback_updated_at"`
	CreatedAt               time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewSession creates a new Session with generated UUID, default paused
// playback, and no current track
func NewSession(code string, hostID uuid.UUID, maxTrackDurationSeconds *int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                      uuid.New(),
		Code:                    code,
		HostID:                  hostID,
		MaxTrackDurationSeconds: maxTrackDurationSeconds,
		PlaybackPositionMs:      0,
		PlaybackMode:            PlaybackPaused,
		PlaybackUpdatedAt:       now,
		CreatedAt:               now,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// PlaylistItem represents one entry in a session's ordered playlist.
// Positions within a session are always dense: exactly 0..n-1 with no gaps
// or duplicates after any mutation.
type PlaylistItem struct {
	ID              uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	SessionID       uuid.UUID `json:"session_id" gorm:"type:text;not null;column:session_id" validate:"required"`
	TrackID         string    `json:"track_id" gorm:"type:text;not null;column:track_id" validate:"required"`
	Title           string    `json:"title" gorm:"type:text;not null;column:title" validate:"required"`
	Artist          string    `json:"artist" gorm:"type:text;column:artist"`
	DurationSeconds *int      `json:"duration_seconds,omitempty" gorm:"type:integer;column:duration_seconds"`
	Position        int       `json:"position" gorm:"type:integer;not null;column:position" validate:"gte=0"`
	CreatedAt       time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewPlaylistItem creates a new PlaylistItem with generated UUID and timestamp
func NewPlaylistItem(sessionID uuid.UUID, trackID, title, artist string, durationSeconds *int, position int) *PlaylistItem {
	return &PlaylistItem{
		ID:              uuid.New(),
		SessionID:       sessionID,
		TrackID:         trackID,
		Title:           title,
		Artist:          artist,
		DurationSeconds: durationSeconds,
		Position:        position,
		CreatedAt:       time.Now().UTC(),
	}
}

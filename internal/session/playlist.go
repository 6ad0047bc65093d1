package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
	"gorm.io/gorm"
)

// PlaylistService is the playlist mutation engine. Mutations are invoked
// directly by the host or by the request engine when a guest request is
// approved; both paths share the same invariant: after any mutation,
// positions within the session are exactly 0..n-1 in playlist order.
type PlaylistService struct {
	repos *db.Repositories
	db    *db.DB
	locks *Locks
}

// NewPlaylistService creates a new playlist service instance
func NewPlaylistService(database *db.DB, repos *db.Repositories, locks *Locks) *PlaylistService {
	return &PlaylistService{
		repos: repos,
		db:    database,
		locks: locks,
	}
}

// AddItemParams carries the track metadata for a playlist addition
type AddItemParams struct {
	TrackID         string
	Title           string
	Artist          string
	DurationSeconds *int
}

// Add appends a track at the end of the session's playlist. If this is the
// session's first item it becomes the current playback track without starting
// playback. Sessions with a duration cap reject tracks that exceed it, or
// whose duration is unknown.
func (s *PlaylistService) Add(ctx context.Context, sessionID uuid.UUID, params AddItemParams) (*models.PlaylistItem, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to add playlist item: %w", ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to add playlist item: %w", err)
	}

	if err := checkDurationPolicy(session, params.DurationSeconds); err != nil {
		logger.Log.Warn().
			Str("session_id", sessionID.String()).
			Str("track_id", params.TrackID).
			Msg("Add playlist item rejected by duration policy")
		return nil, fmt.Errorf("failed to add playlist item: %w", err)
	}

	count, err := s.repos.PlaylistItems.CountBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to add playlist item: %w", err)
	}

	item := models.NewPlaylistItem(sessionID, params.TrackID, params.Title, params.Artist, params.DurationSeconds, int(count))

	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create playlist item: %w", err)
		}

		// First item becomes the current track; playback stays paused
		if session.PlaybackTrackID == nil {
			result := tx.Model(&models.Session{}).
				Where("id = ?", sessionID.String()).
				Update("playback_track_id", item.TrackID)
			if result.Error != nil {
				return fmt.Errorf("failed to select initial track: %w", result.Error)
			}
		}

		return nil
	})
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("track_id", params.TrackID).
			Msg("Failed to add playlist item")
		return nil, fmt.Errorf("failed to add playlist item: %w", err)
	}

	logger.Log.Info().
		Str("item_id", item.ID.String()).
		Str("session_id", sessionID.String()).
		Int("position", item.Position).
		Msg("Playlist item added")

	return item, nil
}

// Reorder moves an item to newPosition and renumbers the session's playlist
// densely, preserving the relative order of all other items
func (s *PlaylistService) Reorder(ctx context.Context, sessionID, itemID uuid.UUID, newPosition int) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	items, err := s.loadOrdered(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to reorder playlist: %w", err)
	}

	if newPosition < 0 || newPosition >= len(items) {
		logger.Log.Warn().
			Str("session_id", sessionID.String()).
			Int("new_position", newPosition).
			Int("playlist_len", len(items)).
			Msg("Reorder failed: position out of range")
		return fmt.Errorf("failed to reorder playlist: %w", ErrPositionOutOfRange)
	}

	index := -1
	for i, item := range items {
		if item.ID == itemID {
			index = i
			break
		}
	}
	if index == -1 {
		logger.Log.Warn().
			Str("session_id", sessionID.String()).
			Str("item_id", itemID.String()).
			Msg("Reorder failed: item not found")
		return fmt.Errorf("failed to reorder playlist: %w", ErrItemNotFound)
	}

	moved := items[index]
	items = append(items[:index], items[index+1:]...)
	items = append(items[:newPosition], append([]*models.PlaylistItem{moved}, items[newPosition:]...)...)

	if err := s.renumber(ctx, sessionID, items); err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("item_id", itemID.String()).
			Msg("Failed to reorder playlist")
		return fmt.Errorf("failed to reorder playlist: %w", err)
	}

	logger.Log.Info().
		Str("session_id", sessionID.String()).
		Str("item_id", itemID.String()).
		Int("new_position", newPosition).
		Msg("Playlist reordered")

	return nil
}

// Remove deletes an item and renumbers the remaining playlist densely.
// When the removed item was the current playback track, the current track
// moves to the new first item (or null when the playlist empties); position
// offset and play/pause mode are left untouched.
func (s *PlaylistService) Remove(ctx context.Context, sessionID, itemID uuid.UUID) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	item, err := s.repos.PlaylistItems.GetByID(ctx, itemID)
	if err != nil {
		if db.IsNotFound(err) {
			logger.Log.Warn().
				Str("item_id", itemID.String()).
				Msg("Remove failed: item not found")
			return fmt.Errorf("failed to remove playlist item: %w", ErrItemNotFound)
		}
		return fmt.Errorf("failed to remove playlist item: %w", err)
	}
	if item.SessionID != sessionID {
		logger.Log.Warn().
			Str("item_id", itemID.String()).
			Str("session_id", sessionID.String()).
			Msg("Remove failed: item belongs to another session")
		return fmt.Errorf("failed to remove playlist item: %w", ErrItemNotFound)
	}

	session, err := s.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to remove playlist item: %w", err)
	}

	items, err := s.loadOrdered(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to remove playlist item: %w", err)
	}

	remaining := make([]*models.PlaylistItem, 0, len(items)-1)
	for _, entry := range items {
		if entry.ID != itemID {
			remaining = append(remaining, entry)
		}
	}

	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := tx.Where("id = ?", itemID.String()).Delete(&models.PlaylistItem{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete playlist item: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}

		for i, entry := range remaining {
			if entry.Position == i {
				continue
			}
			res := tx.Model(&models.PlaylistItem{}).
				Where("id = ?", entry.ID.String()).
				Update("position", i)
			if res.Error != nil {
				return fmt.Errorf("failed to renumber position for item %s: %w", entry.ID, res.Error)
			}
		}

		// Only the track reference moves; offset and mode stay as they were
		if session.PlaybackTrackID != nil && *session.PlaybackTrackID == item.TrackID {
			var next interface{}
			if len(remaining) > 0 {
				next = remaining[0].TrackID
			}
			res := tx.Model(&models.Session{}).
				Where("id = ?", sessionID.String()).
				Update("playback_track_id", next)
			if res.Error != nil {
				return fmt.Errorf("failed to move current track: %w", res.Error)
			}
		}

		return nil
	})
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("item_id", itemID.String()).
			Str("session_id", sessionID.String()).
			Msg("Failed to remove playlist item")
		return fmt.Errorf("failed to remove playlist item: %w", err)
	}

	logger.Log.Info().
		Str("item_id", itemID.String()).
		Str("session_id", sessionID.String()).
		Msg("Playlist item removed")

	return nil
}

// List retrieves the session's playlist in position order
func (s *PlaylistService) List(ctx context.Context, sessionID uuid.UUID) ([]*models.PlaylistItem, error) {
	if _, err := s.repos.Sessions.GetByID(ctx, sessionID); err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("failed to get playlist: %w", ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	items, err := s.repos.PlaylistItems.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return items, nil
}

// loadOrdered fetches the session's items sorted by position. The sort is
// re-applied in memory so renumbering never depends on stored-order quirks.
func (s *PlaylistService) loadOrdered(ctx context.Context, sessionID uuid.UUID) ([]*models.PlaylistItem, error) {
	items, err := s.repos.PlaylistItems.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items, nil
}

// renumber writes dense positions 0..n-1 following the order of items,
// inside a single transaction
func (s *PlaylistService) renumber(ctx context.Context, sessionID uuid.UUID, items []*models.PlaylistItem) error {
	return s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for i, entry := range items {
			if entry.Position == i {
				continue
			}
			result := tx.Model(&models.PlaylistItem{}).
				Where("id = ? AND session_id = ?", entry.ID.String(), sessionID.String()).
				Update("position", i)
			if result.Error != nil {
				return fmt.Errorf("failed to update position for item %s: %w", entry.ID, result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrItemNotFound
			}
		}
		return nil
	})
}

// checkDurationPolicy enforces the session's optional per-track duration cap
func checkDurationPolicy(session *models.Session, durationSeconds *int) error {
	if session.MaxTrackDurationSeconds == nil {
		return nil
	}
	if durationSeconds == nil {
		return ErrDurationUnknown
	}
	if *durationSeconds > *session.MaxTrackDurationSeconds {
		return &DurationExceededError{AllowedSeconds: *session.MaxTrackDurationSeconds}
	}
	return nil
}

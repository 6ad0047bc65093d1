package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/models"
)

// SessionRepository handles database operations for sessions
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	result := r.db.WithContext(ctx).Create(session)
	if result.Error != nil {
		return fmt.Errorf("failed to create session: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a session by its UUID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var session models.Session
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&session)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &session, nil
}

// GetByCode retrieves a session by its join code
func (r *SessionRepository) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	var session models.Session
	result := r.db.WithContext(ctx).Where("code = ?", code).First(&session)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &session, nil
}

// CodeExists reports whether a join code is already taken. Used by the
// collision-retry loop during session creation.
func (r *SessionRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Session{}).Where("code = ?", code).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check join code: %w", MapGormError(result.Error))
	}
	return count > 0, nil
}

// Update persists changes to an existing session, including its embedded
// playback state columns
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	result := r.db.WithContext(ctx).Save(session)
	if result.Error != nil {
		return fmt.Errorf("failed to update session: %w", MapGormError(result.Error))
	}
	return nil
}

// Delete deletes a session by its UUID. Playlist items and requests cascade
// at the database level.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete session: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

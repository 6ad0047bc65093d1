package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/models"
)

// RequestRepository handles database operations for playlist requests
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new playlist request into the database
func (r *RequestRepository) Create(ctx context.Context, request *models.PlaylistRequest) error {
	result := r.db.WithContext(ctx).Create(request)
	if result.Error != nil {
		return fmt.Errorf("failed to create playlist request: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a playlist request by its UUID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PlaylistRequest, error) {
	var request models.PlaylistRequest
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&request)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &request, nil
}

// GetBySessionID retrieves all requests for a session in submission order
func (r *RequestRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*models.PlaylistRequest, error) {
	var requests []*models.PlaylistRequest
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID.String()).
		Order("created_at ASC").
		Find(&requests)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get requests by session: %w", MapGormError(result.Error))
	}
	return requests, nil
}

// Update persists changes to an existing playlist request
func (r *RequestRepository) Update(ctx context.Context, request *models.PlaylistRequest) error {
	result := r.db.WithContext(ctx).Save(request)
	if result.Error != nil {
		return fmt.Errorf("failed to update playlist request: %w", MapGormError(result.Error))
	}
	return nil
}

// RequestLogRepository handles database operations for the append-only
// request audit log
type RequestLogRepository struct {
	db *DB
}

// NewRequestLogRepository creates a new request log repository
func NewRequestLogRepository(db *DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Create appends a new audit log entry. Entries are never updated or deleted.
func (r *RequestLogRepository) Create(ctx context.Context, entry *models.RequestLog) error {
	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to create request log entry: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByRequestID retrieves all audit entries for a request in chronological order
func (r *RequestLogRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) ([]*models.RequestLog, error) {
	var entries []*models.RequestLog
	result := r.db.WithContext(ctx).
		Where("request_id = ?", requestID.String()).
		Order("created_at ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get request log entries: %w", MapGormError(result.Error))
	}
	return entries, nil
}

package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/models"
)

// ActorRepository handles database operations for actors
type ActorRepository struct {
	db *DB
}

// NewActorRepository creates a new actor repository
func NewActorRepository(db *DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// Create inserts a new actor into the database
func (r *ActorRepository) Create(ctx context.Context, actor *models.Actor) error {
	result := r.db.WithContext(ctx).Create(actor)
	if result.Error != nil {
		return fmt.Errorf("failed to create actor: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves an actor by its UUID
func (r *ActorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Actor, error) {
	var actor models.Actor
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&actor)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &actor, nil
}

// GetByToken retrieves an actor by its opaque token. Tokens are uniquely
// indexed, so this is the hot path for every authenticated request.
func (r *ActorRepository) GetByToken(ctx context.Context, token string) (*models.Actor, error) {
	var actor models.Actor
	result := r.db.WithContext(ctx).Where("token = ?", token).First(&actor)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &actor, nil
}

// Update persists changes to an existing actor
func (r *ActorRepository) Update(ctx context.Context, actor *models.Actor) error {
	result := r.db.WithContext(ctx).Save(actor)
	if result.Error != nil {
		return fmt.Errorf("failed to update actor: %w", MapGormError(result.Error))
	}
	return nil
}

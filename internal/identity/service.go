// Package identity maps opaque tokens to actors and decides session
// membership. Every mutating operation, REST or websocket, funnels its role
// check through Authorize so the direct-apply and request-approval paths
// cannot drift.
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
)

// Service handles actor creation and authorization
type Service struct {
	repos      *db.Repositories
	tokenBytes int
}

// NewService creates a new identity service instance. tokenBytes is the
// entropy of generated tokens in bytes (minimum 16).
func NewService(repos *db.Repositories, tokenBytes int) *Service {
	return &Service{
		repos:      repos,
		tokenBytes: tokenBytes,
	}
}

// Login allocates a new actor with a fresh unforgeable token. Names carry no
// uniqueness constraint.
func (s *Service) Login(ctx context.Context, name, role string) (*models.Actor, error) {
	if role != models.RoleHost && role != models.RoleGuest {
		logger.Log.Warn().
			Str("role", role).
			Msg("Login failed: invalid role")
		return nil, fmt.Errorf("failed to log in: %w", ErrInvalidRole)
	}

	token, err := NewToken(s.tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}

	actor := models.NewActor(name, role, token)
	if err := s.repos.Actors.Create(ctx, actor); err != nil {
		logger.Log.Error().
			Err(err).
			Str("role", role).
			Msg("Failed to create actor in database")
		return nil, fmt.Errorf("failed to log in: %w", err)
	}

	logger.Log.Info().
		Str("actor_id", actor.ID.String()).
		Str("role", actor.Role).
		Msg("Actor logged in")

	return actor, nil
}

// Lookup resolves a token to its actor without checking session membership
func (s *Service) Lookup(ctx context.Context, token string) (*models.Actor, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	actor, err := s.repos.Actors.GetByToken(ctx, token)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUnauthorized
		}
		logger.Log.Error().
			Err(err).
			Msg("Failed to look up actor by token")
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	return actor, nil
}

// Authorize resolves a token and verifies the actor belongs to the given
// session: a host must be the session's host, a guest must be bound to it.
// Returns ErrUnauthorized for unknown tokens and ErrForbidden for membership
// mismatches.
func (s *Service) Authorize(ctx context.Context, token string, sessionID uuid.UUID) (*models.Actor, error) {
	actor, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	session, err := s.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrForbidden
		}
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to load session for authorization")
		return nil, fmt.Errorf("failed to authorize: %w", err)
	}

	if err := s.CheckMembership(actor, session); err != nil {
		return nil, err
	}

	return actor, nil
}

// CheckMembership verifies an already-resolved actor against a session.
// Extracted so handlers that have both in hand can reuse the same rule.
func (s *Service) CheckMembership(actor *models.Actor, session *models.Session) error {
	if actor.IsHost() && session.HostID == actor.ID {
		return nil
	}
	if actor.IsGuest() && actor.SessionID != nil && *actor.SessionID == session.ID {
		return nil
	}

	logger.Log.Warn().
		Str("actor_id", actor.ID.String()).
		Str("role", actor.Role).
		Str("session_id", session.ID.String()).
		Msg("Authorization failed: not a member of session")
	return ErrForbidden
}

// RequireHost verifies the actor is the host of the session
func (s *Service) RequireHost(actor *models.Actor, session *models.Session) error {
	if actor.IsHost() && session.HostID == actor.ID {
		return nil
	}
	return ErrForbidden
}

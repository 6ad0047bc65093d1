// Package session owns session lifecycle, the ordered playlist, and playback
// state. All writes to a session's playlist or playback state happen inside a
// single transaction under that session's lock.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
)

// maxCodeAttempts bounds the join-code collision retry loop. With 6 hex
// characters a collision at this depth means the instance is hosting an
// implausible number of sessions.
const maxCodeAttempts = 32

// Service handles session lifecycle operations
type Service struct {
	repos         *db.Repositories
	identity      *identity.Service
	locks         *Locks
	joinCodeBytes int
	tokenBytes    int
}

// NewService creates a new session service instance
func NewService(repos *db.Repositories, identityService *identity.Service, locks *Locks, joinCodeBytes, tokenBytes int) *Service {
	return &Service{
		repos:         repos,
		identity:      identityService,
		locks:         locks,
		joinCodeBytes: joinCodeBytes,
		tokenBytes:    tokenBytes,
	}
}

// Create creates a new session hosted by the given actor. The actor must hold
// the host role; its display name is updated to hostName and it is bound to
// the new session. The join code is regenerated until the store confirms
// uniqueness.
func (s *Service) Create(ctx context.Context, host *models.Actor, hostName string, maxTrackDurationSeconds *int) (*models.Session, error) {
	if !host.IsHost() {
		logger.Log.Warn().
			Str("actor_id", host.ID.String()).
			Str("role", host.Role).
			Msg("Session creation failed: host token required")
		return nil, fmt.Errorf("failed to create session: %w", identity.ErrForbidden)
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session := models.NewSession(code, host.ID, maxTrackDurationSeconds)
	if err := s.repos.Sessions.Create(ctx, session); err != nil {
		logger.Log.Error().
			Err(err).
			Str("host_id", host.ID.String()).
			Msg("Failed to create session in database")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	host.Name = hostName
	host.SessionID = &session.ID
	if err := s.repos.Actors.Update(ctx, host); err != nil {
		logger.Log.Error().
			Err(err).
			Str("actor_id", host.ID.String()).
			Str("session_id", session.ID.String()).
			Msg("Failed to bind host to session")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Log.Info().
		Str("session_id", session.ID.String()).
		Str("code", session.Code).
		Str("host_id", host.ID.String()).
		Msg("Session created")

	return session, nil
}

// Join adds a new guest to the session identified by code. The code is
// case-normalized before lookup. Returns the session and the freshly minted
// guest actor so callers can hand back the token and an initial snapshot.
func (s *Service) Join(ctx context.Context, code, guestName string) (*models.Session, *models.Actor, error) {
	session, err := s.repos.Sessions.GetByCode(ctx, normalizeCode(code))
	if err != nil {
		if db.IsNotFound(err) {
			logger.Log.Warn().
				Str("code", code).
				Msg("Join failed: unknown code")
			return nil, nil, fmt.Errorf("failed to join session: %w", ErrSessionNotFound)
		}
		logger.Log.Error().
			Err(err).
			Str("code", code).
			Msg("Failed to look up session by code")
		return nil, nil, fmt.Errorf("failed to join session: %w", err)
	}

	token, err := identity.NewToken(s.tokenBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to join session: %w", err)
	}

	guest := models.NewActor(guestName, models.RoleGuest, token)
	guest.SessionID = &session.ID
	if err := s.repos.Actors.Create(ctx, guest); err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", session.ID.String()).
			Msg("Failed to create guest actor")
		return nil, nil, fmt.Errorf("failed to join session: %w", err)
	}

	logger.Log.Info().
		Str("session_id", session.ID.String()).
		Str("guest_id", guest.ID.String()).
		Msg("Guest joined session")

	return session, guest, nil
}

// GetByID retrieves a session by its ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := s.repos.Sessions.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("session_id", id.String()).
			Msg("Failed to get session by ID")
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// generateCode produces a collision-free join code, retrying until the store
// confirms uniqueness
func (s *Service) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		buf := make([]byte, s.joinCodeBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate join code: %w", err)
		}
		code := normalizeCode(hex.EncodeToString(buf))

		exists, err := s.repos.Sessions.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate join code: exhausted %d attempts", maxCodeAttempts)
}

// normalizeCode case-normalizes a join code for storage and lookup
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

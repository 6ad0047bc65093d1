// Package request implements the guest request/approval workflow: guests
// propose playlist mutations, the host approves or denies them, and every
// status transition lands in an append-only audit log.
package request

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
	"github.com/stwalsh4118/auxroom/internal/session"
	"gorm.io/gorm"
)

// Audit messages for transitions the engine records on its own
const submittedMessage = "submitted"

// AddPayload is the payload of an "add" request
type AddPayload struct {
	TrackID         string `json:"track_id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
}

// RemovePayload is the payload of a "remove" request
type RemovePayload struct {
	ItemID uuid.UUID `json:"item_id"`
}

// ReorderPayload is the payload of a "reorder" request
type ReorderPayload struct {
	ItemID      uuid.UUID `json:"item_id"`
	NewPosition int       `json:"new_position"`
}

// Engine drives the pending -> approved | denied state machine
type Engine struct {
	repos    *db.Repositories
	db       *db.DB
	identity *identity.Service
	playlist *session.PlaylistService

	// resolveMu serializes resolutions of the same request so a terminal
	// request can never be resolved twice. The playlist engine holds the
	// session lock while applying, so this lock is per-request, not
	// per-session.
	resolveMu sync.Mutex
	resolving map[uuid.UUID]*sync.Mutex
}

// NewEngine creates a new request engine instance
func NewEngine(database *db.DB, repos *db.Repositories, identityService *identity.Service, playlistService *session.PlaylistService) *Engine {
	return &Engine{
		repos:     repos,
		db:        database,
		identity:  identityService,
		playlist:  playlistService,
		resolving: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Submit queues a new pending request from a session member. Mutation-family
// requests (add, remove, reorder) must come from a guest bound to the
// session; hosts mutate directly and never pass through the engine. Free-form
// types are accepted from any member. An initial ("pending", "submitted")
// audit entry is written with the request.
func (e *Engine) Submit(ctx context.Context, sess *models.Session, requester *models.Actor, requestType string, payload json.RawMessage) (*models.PlaylistRequest, error) {
	if err := e.identity.CheckMembership(requester, sess); err != nil {
		return nil, fmt.Errorf("failed to submit request: %w", err)
	}

	req := models.NewPlaylistRequest(sess.ID, requester.ID, requestType, payload)
	if req.IsMutation() && !requester.IsGuest() {
		logger.Log.Warn().
			Str("actor_id", requester.ID.String()).
			Str("request_type", requestType).
			Msg("Request submission rejected: mutation requests are guest-only")
		return nil, fmt.Errorf("failed to submit request: %w", identity.ErrForbidden)
	}

	message := submittedMessage
	entry := models.NewRequestLog(req.ID, models.RequestPending, &message)

	err := e.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sess.ID.String()).
			Str("request_type", requestType).
			Msg("Failed to submit request")
		return nil, fmt.Errorf("failed to submit request: %w", err)
	}

	logger.Log.Info().
		Str("request_id", req.ID.String()).
		Str("session_id", sess.ID.String()).
		Str("request_type", requestType).
		Msg("Request submitted")

	return req, nil
}

// Approve resolves a pending request in the affirmative. The resolver must
// be the host of the request's session. Mutation-family requests apply their
// encoded mutation through the playlist engine exactly once before the status
// flips; when the mutation fails (out-of-range position, item concurrently
// removed, unknown type) the request stays pending and the error surfaces to
// the resolver. Re-approving a terminal request fails with ErrRequestResolved.
func (e *Engine) Approve(ctx context.Context, requestID uuid.UUID, resolver *models.Actor, reason *string) (*models.PlaylistRequest, error) {
	unlock := e.lockResolution(requestID)
	defer unlock()

	req, sess, err := e.loadForResolution(ctx, requestID, resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to approve request: %w", err)
	}

	if req.IsMutation() {
		if err := e.applyMutation(ctx, sess, req); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("request_id", requestID.String()).
				Str("request_type", req.RequestType).
				Msg("Approval aborted: mutation could not be applied")
			return nil, fmt.Errorf("failed to approve request: %w", err)
		}
	}

	if err := e.resolve(ctx, req, models.RequestApproved, reason); err != nil {
		return nil, fmt.Errorf("failed to approve request: %w", err)
	}

	logger.Log.Info().
		Str("request_id", requestID.String()).
		Str("session_id", sess.ID.String()).
		Msg("Request approved")

	return req, nil
}

// Deny resolves a pending request in the negative. Playlist state is never
// touched. Re-denying a terminal request fails with ErrRequestResolved.
func (e *Engine) Deny(ctx context.Context, requestID uuid.UUID, resolver *models.Actor, reason *string) (*models.PlaylistRequest, error) {
	unlock := e.lockResolution(requestID)
	defer unlock()

	req, sess, err := e.loadForResolution(ctx, requestID, resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to deny request: %w", err)
	}

	if err := e.resolve(ctx, req, models.RequestDenied, reason); err != nil {
		return nil, fmt.Errorf("failed to deny request: %w", err)
	}

	logger.Log.Info().
		Str("request_id", requestID.String()).
		Str("session_id", sess.ID.String()).
		Msg("Request denied")

	return req, nil
}

// GetByID retrieves a request by its ID
func (e *Engine) GetByID(ctx context.Context, id uuid.UUID) (*models.PlaylistRequest, error) {
	req, err := e.repos.Requests.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListBySession retrieves all of a session's requests in submission order,
// the host's review surface
func (e *Engine) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.PlaylistRequest, error) {
	requests, err := e.repos.Requests.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// AuditLog retrieves the append-only transition history for a request
func (e *Engine) AuditLog(ctx context.Context, requestID uuid.UUID) ([]*models.RequestLog, error) {
	entries, err := e.repos.RequestLogs.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return entries, nil
}

// loadForResolution fetches the request and its session and verifies the
// resolver is the session's host and the request is still pending
func (e *Engine) loadForResolution(ctx context.Context, requestID uuid.UUID, resolver *models.Actor) (*models.PlaylistRequest, *models.Session, error) {
	req, err := e.repos.Requests.GetByID(ctx, requestID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, ErrRequestNotFound
		}
		return nil, nil, err
	}

	sess, err := e.repos.Sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := e.identity.RequireHost(resolver, sess); err != nil {
		logger.Log.Warn().
			Str("request_id", requestID.String()).
			Str("actor_id", resolver.ID.String()).
			Msg("Resolution rejected: resolver is not the session host")
		return nil, nil, err
	}

	if req.IsResolved() {
		return nil, nil, ErrRequestResolved
	}

	return req, sess, nil
}

// applyMutation decodes the request payload per its type and applies it
// through the playlist engine
func (e *Engine) applyMutation(ctx context.Context, sess *models.Session, req *models.PlaylistRequest) error {
	switch req.RequestType {
	case models.RequestTypeAdd:
		var payload AddPayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err := e.playlist.Add(ctx, sess.ID, session.AddItemParams{
			TrackID:         payload.TrackID,
			Title:           payload.Title,
			Artist:          payload.Artist,
			DurationSeconds: payload.DurationSeconds,
		})
		return err

	case models.RequestTypeRemove:
		var payload RemovePayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return e.playlist.Remove(ctx, sess.ID, payload.ItemID)

	case models.RequestTypeReorder:
		var payload ReorderPayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return e.playlist.Reorder(ctx, sess.ID, payload.ItemID, payload.NewPosition)
	}

	return ErrUnknownRequestType
}

// resolve flips the request into a terminal status and appends the audit
// entry in the same transaction. The status column is guarded with a
// conditional update so a request can never leave pending twice.
func (e *Engine) resolve(ctx context.Context, req *models.PlaylistRequest, status string, reason *string) error {
	entry := models.NewRequestLog(req.ID, status, reason)

	err := e.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.PlaylistRequest{}).
			Where("id = ? AND status = ?", req.ID.String(), models.RequestPending).
			Updates(map[string]interface{}{
				"status": status,
				"reason": reason,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update request status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRequestResolved
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	req.Status = status
	req.Reason = reason
	return nil
}

// lockResolution acquires the per-request resolution lock
func (e *Engine) lockResolution(requestID uuid.UUID) func() {
	e.resolveMu.Lock()
	m, ok := e.resolving[requestID]
	if !ok {
		m = &sync.Mutex{}
		e.resolving[requestID] = m
	}
	e.resolveMu.Unlock()

	m.Lock()
	return m.Unlock
}

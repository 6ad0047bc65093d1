package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/stwalsh4118/auxroom/internal/logger"
)

// Hub maintains the set of connected listeners per session and fans out
// event envelopes to them. Delivery is fire-and-forget: a listener that has
// disconnected or fallen too far behind is dropped, never retried, and never
// surfaces an error to the mutation that triggered the broadcast.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[*Client]bool
}

// NewHub creates a new broadcast hub
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]map[*Client]bool),
	}
}

// Register adds a client to its session's listener set
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	listeners, ok := h.sessions[client.sessionID]
	if !ok {
		listeners = make(map[*Client]bool)
		h.sessions[client.sessionID] = listeners
	}
	listeners[client] = true

	logger.Log.Debug().
		Str("session_id", client.sessionID.String()).
		Int("listeners", len(listeners)).
		Msg("Listener registered")
}

// Unregister removes a client from its session's listener set and closes its
// outbound queue. Safe to call more than once per client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	listeners, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, registered := listeners[client]; !registered {
		return
	}

	delete(listeners, client)
	if len(listeners) == 0 {
		delete(h.sessions, client.sessionID)
	}
	client.closeSend()

	logger.Log.Debug().
		Str("session_id", client.sessionID.String()).
		Int("listeners", len(listeners)).
		Msg("Listener unregistered")
}

// Broadcast delivers an envelope to every listener of a session. The payload
// is marshaled once; the listener set is snapshotted under the read lock and
// the lock is released before any queueing, so the hub never blocks on a slow
// connection. A listener whose queue is full is dropped.
func (h *Hub) Broadcast(sessionID uuid.UUID, envelope Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", envelope.Type).
			Msg("Failed to marshal broadcast envelope")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.sessions[sessionID]))
	for client := range h.sessions[sessionID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.enqueue(data) {
			logger.Log.Warn().
				Str("session_id", sessionID.String()).
				Msg("Dropping stalled listener")
			h.Unregister(client)
		}
	}
}

// ListenerCount returns the number of connected listeners for a session
func (h *Hub) ListenerCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// ActiveSessions returns the number of sessions with at least one listener
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
)

var testUpgrader = websocket.Upgrader{}

// connectTestListener dials a real websocket into the hub for a session.
// Returns the test-side connection, the server-side client, and a cleanup
// function.
func connectTestListener(t *testing.T, hub *Hub, sessionID uuid.UUID) (*websocket.Conn, *Client, func()) {
	t.Helper()

	logger.Init("error", false)

	var internalClient *Client
	var createdWg sync.WaitGroup
	createdWg.Add(1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}

		actor := models.NewActor("Listener", models.RoleGuest, "token")
		client := NewClient(hub, conn, sessionID, actor, NewMessageHandler(nil, nil, nil, nil, nil), 8)
		internalClient = client
		createdWg.Done()

		hub.Register(client)
		client.Start()
	}))

	url := "ws" + strings.TrimPrefix(server.URL, "http")

	clientWs, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	createdWg.Wait()

	cleanup := func() {
		server.Close()
		_ = clientWs.Close()
	}

	return clientWs, internalClient, cleanup
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope
}

func waitForListenerCount(t *testing.T, hub *Hub, sessionID uuid.UUID, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ListenerCount(sessionID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, want, hub.ListenerCount(sessionID))
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	clientWs, _, cleanup := connectTestListener(t, hub, sessionID)
	defer cleanup()

	assert.Equal(t, 1, hub.ListenerCount(sessionID))

	envelope, err := NewEnvelope(EventPlaybackState, PlaybackPayload{
		PositionMs: 1000,
		State:      models.PlaybackPlaying,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	hub.Broadcast(sessionID, envelope)

	received := readEnvelope(t, clientWs)
	assert.Equal(t, EventPlaybackState, received.Type)

	var payload PlaybackPayload
	require.NoError(t, json.Unmarshal(received.Payload, &payload))
	assert.Equal(t, 1000, payload.PositionMs)
	assert.Equal(t, models.PlaybackPlaying, payload.State)
}

func TestHub_BroadcastOrdering(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	clientWs, _, cleanup := connectTestListener(t, hub, sessionID)
	defer cleanup()

	// Events for one session arrive in publish order
	for i := 0; i < 5; i++ {
		envelope, err := NewEnvelope(EventPlaybackState, PlaybackPayload{
			PositionMs: i,
			State:      models.PlaybackPaused,
			UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		})
		require.NoError(t, err)
		hub.Broadcast(sessionID, envelope)
	}

	for i := 0; i < 5; i++ {
		received := readEnvelope(t, clientWs)
		var payload PlaybackPayload
		require.NoError(t, json.Unmarshal(received.Payload, &payload))
		assert.Equal(t, i, payload.PositionMs)
	}
}

func TestHub_BroadcastScopedToSession(t *testing.T) {
	hub := NewHub()
	sessionA := uuid.New()
	sessionB := uuid.New()

	wsA, _, cleanupA := connectTestListener(t, hub, sessionA)
	defer cleanupA()
	wsB, _, cleanupB := connectTestListener(t, hub, sessionB)
	defer cleanupB()

	assert.Equal(t, 2, hub.ActiveSessions())

	envelope, err := NewEnvelope(EventPlaylistUpdate, PlaylistPayload{Playlist: []PlaylistItemPayload{}})
	require.NoError(t, err)
	hub.Broadcast(sessionA, envelope)

	received := readEnvelope(t, wsA)
	assert.Equal(t, EventPlaylistUpdate, received.Type)

	// The other session's listener sees nothing
	require.NoError(t, wsB.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = wsB.ReadMessage()
	assert.Error(t, err)
}

func TestHub_MultipleListenersReceiveBroadcast(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	wsOne, _, cleanupOne := connectTestListener(t, hub, sessionID)
	defer cleanupOne()
	wsTwo, _, cleanupTwo := connectTestListener(t, hub, sessionID)
	defer cleanupTwo()

	assert.Equal(t, 2, hub.ListenerCount(sessionID))

	envelope, err := NewEnvelope(EventPlaylistUpdate, PlaylistPayload{Playlist: []PlaylistItemPayload{}})
	require.NoError(t, err)
	hub.Broadcast(sessionID, envelope)

	assert.Equal(t, EventPlaylistUpdate, readEnvelope(t, wsOne).Type)
	assert.Equal(t, EventPlaylistUpdate, readEnvelope(t, wsTwo).Type)
}

func TestHub_UnregisterRemovesListener(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	_, internalClient, cleanup := connectTestListener(t, hub, sessionID)
	defer cleanup()

	require.Equal(t, 1, hub.ListenerCount(sessionID))

	hub.Unregister(internalClient)
	assert.Equal(t, 0, hub.ListenerCount(sessionID))

	// Unregister is idempotent
	hub.Unregister(internalClient)
	assert.Equal(t, 0, hub.ListenerCount(sessionID))
}

func TestHub_DisconnectedListenerIsRemoved(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	clientWs, _, cleanup := connectTestListener(t, hub, sessionID)
	defer cleanup()

	require.Equal(t, 1, hub.ListenerCount(sessionID))

	_ = clientWs.Close()

	// The read pump notices the close and deregisters
	waitForListenerCount(t, hub, sessionID, 0)
}

func TestHub_BroadcastToEmptySession(t *testing.T) {
	hub := NewHub()

	envelope, err := NewEnvelope(EventPlaylistUpdate, PlaylistPayload{Playlist: []PlaylistItemPayload{}})
	require.NoError(t, err)

	// No listeners, no panic
	hub.Broadcast(uuid.New(), envelope)
}

func TestHub_SendAfterStalledListenerDropped(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	logger.Init("error", false)

	var internalClient *Client
	var createdWg sync.WaitGroup
	createdWg.Add(1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}

		actor := models.NewActor("Listener", models.RoleGuest, "token")
		// Pumps never start, so the queue fills after one envelope
		client := NewClient(hub, conn, sessionID, actor, NewMessageHandler(nil, nil, nil, nil, nil), 1)
		internalClient = client
		hub.Register(client)
		createdWg.Done()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	clientWs, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer clientWs.Close()

	createdWg.Wait()
	require.NotNil(t, internalClient)

	envelope, err := NewEnvelope(EventPlaybackState, PlaybackPayload{State: models.PlaybackPaused})
	require.NoError(t, err)

	// First broadcast fills the queue, the second drops the stalled listener
	hub.Broadcast(sessionID, envelope)
	hub.Broadcast(sessionID, envelope)
	assert.Equal(t, 0, hub.ListenerCount(sessionID))

	// Late sends to the dropped listener fail cleanly instead of panicking
	assert.False(t, internalClient.Send(envelope))
	assert.False(t, internalClient.enqueue([]byte("{}")))

	hub.Unregister(internalClient)
	assert.Equal(t, 0, hub.ListenerCount(sessionID))
}

func TestClient_SnapshotPrecedesBroadcasts(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	logger.Init("error", false)

	var internalClient *Client
	var createdWg sync.WaitGroup
	createdWg.Add(1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}

		actor := models.NewActor("Listener", models.RoleGuest, "token")
		client := NewClient(hub, conn, sessionID, actor, NewMessageHandler(nil, nil, nil, nil, nil), 8)
		internalClient = client
		hub.Register(client)

		// Snapshot is queued before the pumps start
		playback, err := NewEnvelope(EventPlaybackState, PlaybackPayload{State: models.PlaybackPaused})
		if err != nil {
			t.Errorf("Failed to build playback envelope: %v", err)
		}
		client.Send(playback)
		playlist, err := NewEnvelope(EventPlaylistUpdate, PlaylistPayload{Playlist: []PlaylistItemPayload{}})
		if err != nil {
			t.Errorf("Failed to build playlist envelope: %v", err)
		}
		client.Send(playlist)

		client.Start()
		createdWg.Done()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	clientWs, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer clientWs.Close()

	createdWg.Wait()
	require.NotNil(t, internalClient)

	// Playback state arrives first, then the playlist
	assert.Equal(t, EventPlaybackState, readEnvelope(t, clientWs).Type)
	assert.Equal(t, EventPlaylistUpdate, readEnvelope(t, clientWs).Type)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/middleware"
	"github.com/stwalsh4118/auxroom/internal/request"
	"github.com/stwalsh4118/auxroom/internal/session"
	"github.com/stwalsh4118/auxroom/internal/ws"
)

// testEnv bundles the full wired API surface for handler tests
type testEnv struct {
	router *gin.Engine
}

func setupAPITest(t *testing.T) (*testEnv, func()) {
	t.Helper()

	logger.Init("error", false)
	gin.SetMode(gin.TestMode)

	// Create temporary database
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath)
	require.NoError(t, err)

	// Run migrations
	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	err = db.RunMigrations(sqlDB, "file://../../migrations")
	require.NoError(t, err)

	repos := db.NewRepositories(database)
	locks := session.NewLocks()

	identityService := identity.NewService(repos, 16)
	sessionService := session.NewService(repos, identityService, locks, 3, 16)
	playlistService := session.NewPlaylistService(database, repos, locks)
	playbackService := session.NewPlaybackService(repos, locks)
	engine := request.NewEngine(database, repos, identityService, playlistService)

	hub := ws.NewHub()
	publisher := ws.NewPublisher(hub, repos, playlistService)
	messageHandler := ws.NewMessageHandler(identityService, sessionService, playbackService, engine, publisher)

	router := gin.New()
	apiGroup := router.Group("/api")
	requireActor := middleware.RequireActor(identityService)

	SetupHealthRoutes(apiGroup, database, hub)
	SetupAuthRoutes(apiGroup, identityService)
	SetupSessionRoutes(apiGroup, NewSessionHandler(sessionService, playlistService), requireActor)
	SetupPlaylistRoutes(apiGroup, NewPlaylistHandler(sessionService, playlistService, engine, identityService, publisher), requireActor)
	SetupRequestRoutes(apiGroup, NewRequestHandler(sessionService, engine, identityService, publisher), requireActor)
	SetupPlaybackRoutes(apiGroup, NewPlaybackHandler(sessionService, playbackService, identityService, publisher), requireActor)
	SetupLiveRoutes(apiGroup, NewLiveHandler(hub, identityService, sessionService, playlistService, messageHandler, 8))

	cleanup := func() {
		_ = database.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return &testEnv{router: router}, cleanup
}

// doJSON performs a request with an optional token and JSON body, decoding
// the JSON response into out when out is non-nil
func (env *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.TokenHeader, token)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}

	return w
}

func (env *testEnv) login(t *testing.T, name, role string) LoginResponse {
	t.Helper()

	var resp LoginResponse
	w := env.doJSON(t, "POST", "/api/auth/login", "", LoginRequest{Name: name, Role: role}, &resp)
	require.Equal(t, http.StatusOK, w.Code)

	return resp
}

func (env *testEnv) createSession(t *testing.T, hostToken string) CreateSessionResponse {
	t.Helper()

	var resp CreateSessionResponse
	w := env.doJSON(t, "POST", "/api/sessions", hostToken, CreateSessionRequest{HostName: "Host"}, &resp)
	require.Equal(t, http.StatusCreated, w.Code)

	return resp
}

func (env *testEnv) joinSession(t *testing.T, code string) JoinSessionResponse {
	t.Helper()

	var resp JoinSessionResponse
	w := env.doJSON(t, "POST", "/api/sessions/"+code+"/join", "", JoinSessionRequest{GuestName: "Guest"}, &resp)
	require.Equal(t, http.StatusOK, w.Code)

	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	var resp HealthResponse
	w := env.doJSON(t, "GET", "/api/health", "", nil, &resp)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "healthy", resp.Database)
	assert.Equal(t, 0, resp.ActiveSessions)
}

func TestLogin_RejectsUnknownRole(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	w := env.doJSON(t, "POST", "/api/auth/login", "", LoginRequest{Name: "Eve", Role: "admin"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_ReturnsSnapshotAndCode(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)

	assert.Len(t, created.Code, 6)
	assert.Equal(t, host.UserID, created.Session.HostID)
	assert.Empty(t, created.Session.Playlist)
	assert.Equal(t, "paused", created.Session.Playback.State)
	assert.Nil(t, created.Session.Playback.TrackID)
}

func TestCreateSession_RequiresToken(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	w := env.doJSON(t, "POST", "/api/sessions", "", CreateSessionRequest{HostName: "Alice"}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSession_GuestForbidden(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	guest := env.login(t, "Bob", "guest")
	w := env.doJSON(t, "POST", "/api/sessions", guest.Token, CreateSessionRequest{HostName: "Bob"}, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJoinSession_MintsGuestToken(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)

	joined := env.joinSession(t, created.Code)

	assert.Len(t, joined.GuestToken, 32)
	assert.Equal(t, created.Session.ID, joined.Session.ID)
}

func TestJoinSession_UnknownCode(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	w := env.doJSON(t, "POST", "/api/sessions/FFFFFF/join", "", JoinSessionRequest{GuestName: "Bob"}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaylistFlow_HostDirectMutations(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)
	base := "/api/sessions/" + created.Session.ID

	// Host adds directly
	var item ws.PlaylistItemPayload
	w := env.doJSON(t, "POST", base+"/playlist", host.Token, AddItemRequest{
		TrackID: "track-a",
		Title:   "Track A",
		Artist:  "Artist",
	}, &item)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 0, item.Position)

	w = env.doJSON(t, "POST", base+"/playlist", host.Token, AddItemRequest{
		TrackID: "track-b",
		Title:   "Track B",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// List shows both in order
	var playlist ws.PlaylistPayload
	w = env.doJSON(t, "GET", base+"/playlist", host.Token, nil, &playlist)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, playlist.Playlist, 2)
	assert.Equal(t, "track-a", playlist.Playlist[0].TrackID)
	assert.Equal(t, "track-b", playlist.Playlist[1].TrackID)

	// Host reorders directly
	newPos := 0
	w = env.doJSON(t, "PATCH", base+"/playlist/"+playlist.Playlist[1].ID, host.Token, ReorderItemRequest{NewPosition: &newPos}, &playlist)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "track-b", playlist.Playlist[0].TrackID)

	// Host removes directly
	w = env.doJSON(t, "DELETE", base+"/playlist/"+playlist.Playlist[0].ID, host.Token, nil, &playlist)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, playlist.Playlist, 1)
	assert.Equal(t, "track-a", playlist.Playlist[0].TrackID)
}

func TestPlaylistFlow_GuestMutationsBecomeRequests(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)
	joined := env.joinSession(t, created.Code)
	base := "/api/sessions/" + created.Session.ID

	// Guest add is queued, not applied
	var pending PendingRequestResponse
	w := env.doJSON(t, "POST", base+"/playlist", joined.GuestToken, AddItemRequest{
		TrackID: "track-a",
		Title:   "Track A",
	}, &pending)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "pending", pending.Request.Status)
	assert.Equal(t, "add", pending.Request.RequestType)
	assert.Equal(t, "Guest", pending.Request.Requester)

	var playlist ws.PlaylistPayload
	w = env.doJSON(t, "GET", base+"/playlist", host.Token, nil, &playlist)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, playlist.Playlist)

	// Host approves; the mutation lands
	var resolved PendingRequestResponse
	w = env.doJSON(t, "POST", "/api/requests/"+pending.Request.ID+"/approve", host.Token, nil, &resolved)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", resolved.Request.Status)

	w = env.doJSON(t, "GET", base+"/playlist", host.Token, nil, &playlist)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, playlist.Playlist, 1)
	assert.Equal(t, "track-a", playlist.Playlist[0].TrackID)

	// Approving again conflicts
	w = env.doJSON(t, "POST", "/api/requests/"+pending.Request.ID+"/approve", host.Token, nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRequestFlow_DenyWithReason(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)
	joined := env.joinSession(t, created.Code)
	base := "/api/sessions/" + created.Session.ID

	var pending PendingRequestResponse
	w := env.doJSON(t, "POST", base+"/playlist", joined.GuestToken, AddItemRequest{
		TrackID: "track-a",
		Title:   "Track A",
	}, &pending)
	require.Equal(t, http.StatusAccepted, w.Code)

	reason := "not tonight"
	var resolved PendingRequestResponse
	w = env.doJSON(t, "POST", "/api/requests/"+pending.Request.ID+"/deny", host.Token, ResolveRequestRequest{Reason: &reason}, &resolved)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "denied", resolved.Request.Status)
	require.NotNil(t, resolved.Request.Reason)
	assert.Equal(t, "not tonight", *resolved.Request.Reason)

	// The playlist stayed empty
	var playlist ws.PlaylistPayload
	w = env.doJSON(t, "GET", base+"/playlist", host.Token, nil, &playlist)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, playlist.Playlist)
}

func TestRequestFlow_GuestCannotResolve(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)
	joined := env.joinSession(t, created.Code)
	base := "/api/sessions/" + created.Session.ID

	var pending PendingRequestResponse
	w := env.doJSON(t, "POST", base+"/playlist", joined.GuestToken, AddItemRequest{
		TrackID: "track-a",
		Title:   "Track A",
	}, &pending)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.doJSON(t, "POST", "/api/requests/"+pending.Request.ID+"/approve", joined.GuestToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestFlow_FreeFormSubmission(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)
	joined := env.joinSession(t, created.Code)
	base := "/api/sessions/" + created.Session.ID

	var pending PendingRequestResponse
	w := env.doJSON(t, "POST", base+"/requests", joined.GuestToken, SubmitRequestRequest{
		RequestType: "shoutout",
		Payload:     json.RawMessage(`{"text":"hello"}`),
	}, &pending)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "shoutout", pending.Request.RequestType)

	// Listed on the review surface
	var list RequestListResponse
	w = env.doJSON(t, "GET", base+"/requests", host.Token, nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, list.Requests, 1)
	assert.Equal(t, pending.Request.ID, list.Requests[0].ID)
}

func TestPlaybackEndpoint_HostOnly(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)
	joined := env.joinSession(t, created.Code)
	base := "/api/sessions/" + created.Session.ID

	w := env.doJSON(t, "POST", base+"/playlist", host.Token, AddItemRequest{
		TrackID: "track-a",
		Title:   "Track A",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Host starts playback with a partial state update
	var playback ws.PlaybackPayload
	w = env.doJSON(t, "POST", base+"/playback", host.Token, map[string]any{"state": "playing", "position_ms": 1500}, &playback)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "playing", playback.State)
	assert.Equal(t, 1500, playback.PositionMs)
	require.NotNil(t, playback.TrackID)
	assert.Equal(t, "track-a", *playback.TrackID)

	// Guests cannot steer playback
	w = env.doJSON(t, "POST", base+"/playback", joined.GuestToken, map[string]any{"state": "paused"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPlaylist_NonMemberForbidden(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")
	created := env.createSession(t, host.Token)

	outsider := env.login(t, "Eve", "guest")
	w := env.doJSON(t, "GET", "/api/sessions/"+created.Session.ID+"/playlist", outsider.Token, nil, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPlaylist_DurationPolicyViolation(t *testing.T) {
	env, cleanup := setupAPITest(t)
	defer cleanup()

	host := env.login(t, "Alice", "host")

	maxDuration := 300
	var created CreateSessionResponse
	w := env.doJSON(t, "POST", "/api/sessions", host.Token, CreateSessionRequest{
		HostName:                "Host",
		MaxTrackDurationSeconds: &maxDuration,
	}, &created)
	require.Equal(t, http.StatusCreated, w.Code)

	long := 301
	w = env.doJSON(t, "POST", "/api/sessions/"+created.Session.ID+"/playlist", host.Token, AddItemRequest{
		TrackID:         "track-long",
		Title:           "Too Long",
		DurationSeconds: &long,
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "policy_violation", errResp.Error)
	assert.Contains(t, errResp.Message, "allowed 300 seconds")
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/identity"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
)

func setupSessionTest(t *testing.T) (*Service, *identity.Service, *db.Repositories, func()) {
	t.Helper()

	// Initialize logger for tests
	logger.Init("error", false)

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
	identityService := identity.NewService(repos, 16)
	service := NewService(repos, identityService, NewLocks(), 3, 16)

	cleanup := func() {
		_ = database.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return service, identityService, repos, cleanup
}

func loginHost(t *testing.T, identityService *identity.Service, name string) *models.Actor {
	t.Helper()

	actor, err := identityService.Login(context.Background(), name, models.RoleHost)
	require.NoError(t, err)
	return actor
}

func TestCreateSession_Success(t *testing.T) {
	service, identityService, repos, cleanup := setupSessionTest(t)
	defer cleanup()

	ctx := context.Background()
	host := loginHost(t, identityService, "Alice")

	sess, err := service.Create(ctx, host, "DJ Alice", nil)

	require.NoError(t, err)
	assert.Equal(t, host.ID, sess.HostID)
	assert.Nil(t, sess.MaxTrackDurationSeconds)
	assert.Nil(t, sess.PlaybackTrackID)
	assert.Equal(t, models.PlaybackPaused, sess.PlaybackMode)
	assert.Equal(t, 0, sess.PlaybackPositionMs)

	// 3 bytes of entropy, hex-encoded and uppercased
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{6}$`), sess.Code)

	// Host is renamed and bound to the session
	stored, err := repos.Actors.GetByID(ctx, host.ID)
	require.NoError(t, err)
	assert.Equal(t, "DJ Alice", stored.Name)
	require.NotNil(t, stored.SessionID)
	assert.Equal(t, sess.ID, *stored.SessionID)
}

func TestCreateSession_WithDurationCap(t *testing.T) {
	service, identityService, _, cleanup := setupSessionTest(t)
	defer cleanup()

	host := loginHost(t, identityService, "Alice")
	maxDuration := 300

	sess, err := service.Create(context.Background(), host, "Alice", &maxDuration)

	require.NoError(t, err)
	require.NotNil(t, sess.MaxTrackDurationSeconds)
	assert.Equal(t, 300, *sess.MaxTrackDurationSeconds)
}

func TestCreateSession_GuestForbidden(t *testing.T) {
	service, identityService, _, cleanup := setupSessionTest(t)
	defer cleanup()

	ctx := context.Background()

	guest, err := identityService.Login(ctx, "Bob", models.RoleGuest)
	require.NoError(t, err)

	_, err = service.Create(ctx, guest, "Bob", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrForbidden)
}

func TestJoinSession_Success(t *testing.T) {
	service, identityService, _, cleanup := setupSessionTest(t)
	defer cleanup()

	ctx := context.Background()
	host := loginHost(t, identityService, "Alice")

	created, err := service.Create(ctx, host, "Alice", nil)
	require.NoError(t, err)

	sess, guest, err := service.Join(ctx, created.Code, "Bob")
	require.NoError(t, err)
	assert.Equal(t, created.ID, sess.ID)
	assert.Equal(t, "Bob", guest.Name)
	assert.Equal(t, models.RoleGuest, guest.Role)
	assert.Len(t, guest.Token, 32)
	require.NotNil(t, guest.SessionID)
	assert.Equal(t, created.ID, *guest.SessionID)
}

func TestJoinSession_CodeIsCaseInsensitive(t *testing.T) {
	service, identityService, _, cleanup := setupSessionTest(t)
	defer cleanup()

	ctx := context.Background()
	host := loginHost(t, identityService, "Alice")

	created, err := service.Create(ctx, host, "Alice", nil)
	require.NoError(t, err)

	sess, _, err := service.Join(ctx, strings.ToLower(created.Code), "Bob")
	require.NoError(t, err)
	assert.Equal(t, created.ID, sess.ID)
}

func TestJoinSession_UnknownCode(t *testing.T) {
	service, _, _, cleanup := setupSessionTest(t)
	defer cleanup()

	_, _, err := service.Join(context.Background(), "FFFFFF", "Bob")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoinSession_MultipleGuests(t *testing.T) {
	service, identityService, _, cleanup := setupSessionTest(t)
	defer cleanup()

	ctx := context.Background()
	host := loginHost(t, identityService, "Alice")

	created, err := service.Create(ctx, host, "Alice", nil)
	require.NoError(t, err)

	_, bob, err := service.Join(ctx, created.Code, "Bob")
	require.NoError(t, err)
	_, carol, err := service.Join(ctx, created.Code, "Carol")
	require.NoError(t, err)

	assert.NotEqual(t, bob.ID, carol.ID)
	assert.NotEqual(t, bob.Token, carol.Token)
}

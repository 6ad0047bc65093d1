package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/logger"
	"github.com/stwalsh4118/auxroom/internal/models"
)

func setupPlaybackTest(t *testing.T) (*PlaybackService, *PlaylistService, *db.Repositories, func()) {
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
	locks := NewLocks()
	playback := NewPlaybackService(repos, locks)
	playlist := NewPlaylistService(database, repos, locks)

	cleanup := func() {
		_ = database.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return playback, playlist, repos, cleanup
}

func TestApplyCommand_Play(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")

	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionPlay})

	require.NoError(t, err)
	assert.Equal(t, models.PlaybackPlaying, updated.PlaybackMode)
	require.NotNil(t, updated.PlaybackTrackID)
	assert.Equal(t, "track-a", *updated.PlaybackTrackID)
}

func TestApplyCommand_PlaySpecificTrack(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")
	addTestTrack(t, playlist, sess.ID, "track-b")

	trackB := "track-b"
	zero := 0
	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{
		Action:     ActionPlay,
		TrackID:    &trackB,
		PositionMs: &zero,
	})

	require.NoError(t, err)
	assert.Equal(t, models.PlaybackPlaying, updated.PlaybackMode)
	require.NotNil(t, updated.PlaybackTrackID)
	assert.Equal(t, "track-b", *updated.PlaybackTrackID)
	assert.Equal(t, 0, updated.PlaybackPositionMs)
}

func TestApplyCommand_Pause(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")

	_, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionPlay})
	require.NoError(t, err)

	position := 15000
	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{
		Action:     ActionPause,
		PositionMs: &position,
	})

	require.NoError(t, err)
	assert.Equal(t, models.PlaybackPaused, updated.PlaybackMode)
	assert.Equal(t, 15000, updated.PlaybackPositionMs)
}

func TestApplyCommand_SeekKeepsMode(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")

	_, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionPlay})
	require.NoError(t, err)

	position := 60000
	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{
		Action:     ActionSeek,
		PositionMs: &position,
	})

	require.NoError(t, err)
	assert.Equal(t, 60000, updated.PlaybackPositionMs)
	assert.Equal(t, models.PlaybackPlaying, updated.PlaybackMode)
}

func TestApplyCommand_SkipNext(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")
	addTestTrack(t, playlist, sess.ID, "track-b")
	addTestTrack(t, playlist, sess.ID, "track-c")

	// Mid-track and playing before the skip
	position := 30000
	_, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{
		Action:     ActionPlay,
		PositionMs: &position,
	})
	require.NoError(t, err)

	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionSkipNext})

	require.NoError(t, err)
	require.NotNil(t, updated.PlaybackTrackID)
	assert.Equal(t, "track-b", *updated.PlaybackTrackID)
	// Skips land at the start of the target track without touching the mode
	assert.Equal(t, 0, updated.PlaybackPositionMs)
	assert.Equal(t, models.PlaybackPlaying, updated.PlaybackMode)
}

func TestApplyCommand_SkipNextClampsAtEnd(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")
	addTestTrack(t, playlist, sess.ID, "track-b")

	_, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionSkipNext})
	require.NoError(t, err)

	// Already at the last track; skipping again stays there
	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionSkipNext})

	require.NoError(t, err)
	require.NotNil(t, updated.PlaybackTrackID)
	assert.Equal(t, "track-b", *updated.PlaybackTrackID)
}

func TestApplyCommand_SkipPrevClampsAtStart(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")
	addTestTrack(t, playlist, sess.ID, "track-b")

	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionSkipPrev})

	require.NoError(t, err)
	require.NotNil(t, updated.PlaybackTrackID)
	assert.Equal(t, "track-a", *updated.PlaybackTrackID)
	assert.Equal(t, 0, updated.PlaybackPositionMs)
}

func TestApplyCommand_SkipPrevFromSecondTrack(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")
	addTestTrack(t, playlist, sess.ID, "track-b")

	_, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionSkipNext})
	require.NoError(t, err)

	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionSkipPrev})

	require.NoError(t, err)
	require.NotNil(t, updated.PlaybackTrackID)
	assert.Equal(t, "track-a", *updated.PlaybackTrackID)
}

func TestApplyCommand_SkipOnEmptyPlaylist(t *testing.T) {
	playback, _, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	sess := createTestSession(t, repos, nil)

	updated, err := playback.ApplyCommand(context.Background(), sess.ID, PlaybackCommand{Action: ActionSkipNext})

	require.NoError(t, err)
	assert.Nil(t, updated.PlaybackTrackID)
	assert.Equal(t, 0, updated.PlaybackPositionMs)
}

func TestApplyCommand_UnknownAction(t *testing.T) {
	playback, _, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	sess := createTestSession(t, repos, nil)

	_, err := playback.ApplyCommand(context.Background(), sess.ID, PlaybackCommand{Action: "rewind"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPlaybackAction)
}

func TestApplyCommand_UnknownSession(t *testing.T) {
	playback, _, _, cleanup := setupPlaybackTest(t)
	defer cleanup()

	_, err := playback.ApplyCommand(context.Background(), uuid.New(), PlaybackCommand{Action: ActionPlay})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestApplyCommand_StampsUpdatedAt(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")

	before := sess.PlaybackUpdatedAt
	time.Sleep(10 * time.Millisecond)

	updated, err := playback.ApplyCommand(ctx, sess.ID, PlaybackCommand{Action: ActionPlay})

	require.NoError(t, err)
	assert.True(t, updated.PlaybackUpdatedAt.After(before))
}

func TestUpdateState_Partial(t *testing.T) {
	playback, playlist, repos, cleanup := setupPlaybackTest(t)
	defer cleanup()

	ctx := context.Background()
	sess := createTestSession(t, repos, nil)
	addTestTrack(t, playlist, sess.ID, "track-a")

	position := 5000
	updated, err := playback.UpdateState(ctx, sess.ID, PlaybackUpdate{PositionMs: &position})

	require.NoError(t, err)
	assert.Equal(t, 5000, updated.PlaybackPositionMs)
	// Untouched fields keep their values
	require.NotNil(t, updated.PlaybackTrackID)
	assert.Equal(t, "track-a", *updated.PlaybackTrackID)
	assert.Equal(t, models.PlaybackPaused, updated.PlaybackMode)
}

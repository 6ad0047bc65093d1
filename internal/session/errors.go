package session

import (
	"errors"
	"fmt"
)

// Custom session service errors
var (
	// ErrSessionNotFound indicates the requested session or join code does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrItemNotFound indicates the playlist item is absent or belongs to another session
	ErrItemNotFound = errors.New("playlist item not found")

	// ErrPositionOutOfRange indicates a reorder target outside [0, len-1]
	ErrPositionOutOfRange = errors.New("new position out of range")

	// ErrDurationExceeded indicates a track longer than the session's duration cap
	ErrDurationExceeded = errors.New("track duration exceeds the session cap")

	// ErrDurationUnknown indicates the session enforces a cap but the track
	// carries no duration
	ErrDurationUnknown = errors.New("unable to determine track duration for enforcement")

	// ErrInvalidPlaybackAction indicates an unrecognized playback command action
	ErrInvalidPlaybackAction = errors.New("unknown playback action")
)

// DurationExceededError carries the session's cap so the rejection message
// can name the allowed seconds. Matches ErrDurationExceeded under errors.Is.
type DurationExceededError struct {
	AllowedSeconds int
}

func (e *DurationExceededError) Error() string {
	return fmt.Sprintf("track is longer than the allowed %d seconds", e.AllowedSeconds)
}

func (e *DurationExceededError) Is(target error) bool {
	return target == ErrDurationExceeded
}

// IsSessionNotFound checks if the error is a session not found error
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsItemNotFound checks if the error is a playlist item not found error
func IsItemNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

// IsPositionOutOfRange checks if the error is a reorder range error
func IsPositionOutOfRange(err error) bool {
	return errors.Is(err, ErrPositionOutOfRange)
}

// IsPolicyViolation checks if the error is a duration cap violation
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrDurationExceeded) || errors.Is(err, ErrDurationUnknown)
}

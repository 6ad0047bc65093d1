package identity

import "errors"

// Custom identity service errors
var (
	// ErrUnauthorized indicates a missing or unknown token
	ErrUnauthorized = errors.New("unknown or missing token")

	// ErrForbidden indicates the actor is not a member of the requested session
	ErrForbidden = errors.New("not a member of this session")

	// ErrInvalidRole indicates a role outside {host, guest}
	ErrInvalidRole = errors.New("role must be host or guest")
)

// IsUnauthorized checks if the error is an unknown token error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if the error is a membership error
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

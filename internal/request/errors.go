package request

import "errors"

// Custom request engine errors
var (
	// ErrRequestNotFound indicates the requested playlist request does not exist
	ErrRequestNotFound = errors.New("request not found")

	// ErrRequestResolved indicates the request has already reached a terminal
	// status; a second approve or deny is a conflict, never a silent no-op
	ErrRequestResolved = errors.New("request already resolved")

	// ErrUnknownRequestType indicates a mutation-family request whose payload
	// cannot be interpreted as add, remove, or reorder
	ErrUnknownRequestType = errors.New("unknown request type")

	// ErrInvalidPayload indicates a payload that does not decode for its
	// declared request type
	ErrInvalidPayload = errors.New("invalid request payload")
)

// IsRequestNotFound checks if the error is a request not found error
func IsRequestNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound)
}

// IsResolved checks if the error is a re-resolution conflict
func IsResolved(err error) bool {
	return errors.Is(err, ErrRequestResolved)
}

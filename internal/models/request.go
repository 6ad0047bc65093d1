package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request statuses. Approved and denied are terminal: a request transitions
// out of pending exactly once.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDenied   = "denied"
)

// Mutation request types understood by the approval engine. Any other type is
// a free-form request: it is surfaced for host review and approval only
// changes its status.
const (
	RequestTypeAdd     = "add"
	RequestTypeRemove  = "remove"
	RequestTypeReorder = "reorder"
)

// PlaylistRequest represents a guest-proposed playlist mutation awaiting host
// resolution. Payload is opaque JSON interpreted according to RequestType.
type PlaylistRequest struct {
	ID          uuid.UUID       `json:"id" gorm:"type:text;primaryKey;column:id"`
	SessionID   uuid.UUID       `json:"session_id" gorm:"type:text;not null;column:session_id" validate:"required"`
	RequesterID uuid.UUID       `json:"requester_id" gorm:"type:text;not null;column:requester_id" validate:"required"`
	RequestType string          `json:"request_type" gorm:"type:text;not null;column:request_type" validate:"required"`
	Payload     json.RawMessage `json:"payload" gorm:"type:text;not null;column:payload"`
	Status      string          `json:"status" gorm:"type:text;not null;default:pending;column:status"`
	Reason      *string         `json:"reason,omitempty" gorm:"type:text;column:reason"`
	CreatedAt   time.Time       `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	// Populated by joins, not stored in database
	Requester *Actor `json:"-" gorm:"-"`
}

// NewPlaylistRequest creates a new pending PlaylistRequest with generated UUID
func NewPlaylistRequest(sessionID, requesterID uuid.UUID, requestType string, payload json.RawMessage) *PlaylistRequest {
	return &PlaylistRequest{
		ID:          uuid.New(),
		SessionID:   sessionID,
		RequesterID: requesterID,
		RequestType: requestType,
		Payload:     payload,
		Status:      RequestPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsResolved reports whether the request has reached a terminal status
func (r *PlaylistRequest) IsResolved() bool {
	return r.Status != RequestPending
}

// IsMutation reports whether the request type has a defined playlist mutation
func (r *PlaylistRequest) IsMutation() bool {
	switch r.RequestType {
	case RequestTypeAdd, RequestTypeRemove, RequestTypeReorder:
		return true
	}
	return false
}

// RequestLog is an append-only audit entry recording a single request status
// transition. One entry is written per transition, starting with
// ("pending", "submitted") at creation.
type RequestLog struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	RequestID uuid.UUID `json:"request_id" gorm:"type:text;not null;column:request_id" validate:"required"`
	Status    string    `json:"status" gorm:"type:text;not null;column:status"`
	Message   *string   `json:"message,omitempty" gorm:"type:text;column:message"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewRequestLog creates a new audit log entry with generated UUID
func NewRequestLog(requestID uuid.UUID, status string, message *string) *RequestLog {
	return &RequestLog{
		ID:        uuid.New(),
		RequestID: requestID,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

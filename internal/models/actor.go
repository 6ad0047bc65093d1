package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor roles
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// Actor represents an authenticated session participant
type Actor struct {
	ID        uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name      string     `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=255"`
	Role      string     `json:"role" gorm:"type:text;not null;column:role" validate:"required,oneof=host guest"`
	Token     string     `json:"-" gorm:"type:text;not null;uniqueIndex;column:token"`
	SessionID *uuid.UUID `json:"session_id,omitempty" gorm:"type:text;column:session_id"`
	CreatedAt time.Time  `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewActor creates a new Actor with generated UUID and timestamp
func NewActor(name, role, token string) *Actor {
	return &Actor{
		ID:        uuid.New(),
		Name:      name,
		Role:      role,
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
}

// IsHost reports whether the actor holds the host role
func (a *Actor) IsHost() bool {
	return a.Role == RoleHost
}

// IsGuest reports whether the actor holds the guest role
func (a *Actor) IsGuest() bool {
	return a.Role == RoleGuest
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes admins from field workers. Account provisioning is
// external; the engine only checks roles.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleFieldWorker Role = "field_worker"
)

// Worker represents a provisioned account, either an admin who schedules
// visits or a field worker who performs them.
type Worker struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor is the opaque identity plus role tag supplied by the identity
// collaborator on every mutating call.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsFieldWorker reports whether the actor carries the field worker role.
func (a Actor) IsFieldWorker() bool {
	return a.Role == RoleFieldWorker
}

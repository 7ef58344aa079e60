package model

import (
	"time"

	"github.com/google/uuid"
)

// MaintenanceStatus is the denormalized, reconciler-maintained summary of
// whether a projector needs service soon. It is a cache over the visit
// history, never the sole source of truth for per-visit decisions.
type MaintenanceStatus string

const (
	MaintenancePending   MaintenanceStatus = "pending"
	MaintenanceScheduled MaintenanceStatus = "scheduled"
	MaintenanceCompleted MaintenanceStatus = "completed"
)

// Projector represents a piece of equipment installed at a customer site.
// The owning site is immutable after creation; projectors are never deleted.
type Projector struct {
	ID           uuid.UUID         `json:"id"`
	Model        string            `json:"model"`
	SerialNo     string            `json:"serial_no"`
	SiteID       uuid.UUID         `json:"site_id"`
	LastServedAt *time.Time        `json:"last_served_at,omitempty"`
	Status       MaintenanceStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

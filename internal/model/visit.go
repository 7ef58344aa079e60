package model

import (
	"time"

	"github.com/google/uuid"
)

// ServiceVisit is one scheduled or performed maintenance encounter between a
// worker and a projector. Visits form an append-only history per projector;
// the service number is 1-based, gap-free and unique within the projector.
//
// The site name, address and contact are copied from the site at scheduling
// time as a point-in-time record and are not kept in sync afterwards.
type ServiceVisit struct {
	ID            uuid.UUID  `json:"id"`
	ServiceNumber int        `json:"service_number"`
	ProjectorID   uuid.UUID  `json:"projector_id"`
	SiteID        uuid.UUID  `json:"site_id"`
	AssignerID    uuid.UUID  `json:"assigner_id"`
	WorkerID      *uuid.UUID `json:"worker_id,omitempty"`

	Date      time.Time  `json:"date"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	ReportGenerated bool     `json:"report_generated"`
	Remarks         string   `json:"remarks,omitempty"`
	RunningHours    *float64 `json:"running_hours,omitempty"`

	SiteName    string `json:"site_name"`
	SiteAddress string `json:"site_address"`
	SiteContact string `json:"site_contact"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

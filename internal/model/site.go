package model

import (
	"time"

	"github.com/google/uuid"
)

// Site represents a customer location where projectors are installed.
// Sites are never deleted; only the contact fields change after creation.
type Site struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Contact   string    `json:"contact"`
	SiteCode  string    `json:"site_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package model

import (
	"time"
)

// Device represents an inventory device that stickers are printed for.
// Devices are written by the inventory sync and only read by the label engine.
type Device struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Classification string    `json:"classification"` // e.g. "switch", "wireless", "camera"; may be empty
	MakeModel      string    `json:"make_model"`
	Serial         string    `json:"serial"`
	MAC            string    `json:"mac,omitempty"`
	IP             string    `json:"ip,omitempty"`
	NetworkID      string    `json:"network_id,omitempty"`
	URL            string    `json:"url,omitempty"` // dashboard URL
	Notes          string    `json:"notes,omitempty"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DeviceFilter holds filter criteria for listing devices
type DeviceFilter struct {
	Classification string // case-insensitive exact match
	NetworkID      string
	Tags           []string // OR logic
}

package model

import "time"

// Network represents a network the devices belong to
type Network struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Name           string    `json:"name"`
	Subnet         string    `json:"subnet,omitempty"` // CIDR notation, e.g., "192.168.1.0/24"
	URL            string    `json:"url,omitempty"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

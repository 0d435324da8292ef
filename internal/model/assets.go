package model

import "time"

// GlobalVariable is a user-defined key/value pair available to every template
// of an owner as global.<key>.
type GlobalVariable struct {
	OwnerID   string    `json:"owner_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageAsset is an uploaded image, referenced from templates as
// customimage.image_<id>.
type ImageAsset struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	DataURI   string     `json:"data_uri"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the image was soft-deleted.
func (i *ImageAsset) Deleted() bool {
	return i.DeletedAt != nil
}

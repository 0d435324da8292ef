package model

// Placement positions one sticker on a page. Coordinates and sizes are in
// millimetres from the page's top-left corner; Width and Height are the
// placed (post-rotation) dimensions.
type Placement struct {
	DeviceID string  `json:"device_id"`
	Page     int     `json:"page"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotated  bool    `json:"rotated"`
}

// LayoutPlan is the page assignment for a batch of stickers.
type LayoutPlan struct {
	Placements []Placement `json:"placements"`
	TotalPages int         `json:"total_pages"`
}

package model

// Match reasons, in priority order.
const (
	ReasonConnectionDefault    = "connection_default"
	ReasonCompatible           = "compatible"
	ReasonFallback             = "fallback"
	ReasonFallbackIncompatible = "fallback_incompatible"
)

// MatchResult describes which template was chosen for a device and why.
type MatchResult struct {
	Template   *Template `json:"template"`
	Reason     string    `json:"match_reason"`
	Confidence float64   `json:"confidence"`
	MatchedBy  string    `json:"matched_by,omitempty"`
}

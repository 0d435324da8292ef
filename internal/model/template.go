package model

import (
	"strings"
	"time"
)

// Template is a sticker design. An empty OwnerID marks a shared template
// visible to every owner.
type Template struct {
	ID            string           `json:"id" yaml:"id"`
	OwnerID       string           `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	Name          string           `json:"name" yaml:"name"`
	Description   string           `json:"description,omitempty" yaml:"description,omitempty"`
	Compatibility []string         `json:"compatibility,omitempty" yaml:"compatibility,omitempty"` // empty = universal
	Document      TemplateDocument `json:"document" yaml:"document"`
	CreatedAt     time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time        `json:"updated_at" yaml:"-"`
}

// IsShared reports whether the template belongs to the shared scope.
func (t *Template) IsShared() bool {
	return t.OwnerID == ""
}

// IsUniversal reports whether the template declares no compatibility set.
func (t *Template) IsUniversal() bool {
	for _, c := range t.Compatibility {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// IsCompatibleWith reports whether the template can be used for devices of
// the given classification. An empty classification is never compatible.
func (t *Template) IsCompatibleWith(classification string) bool {
	classification = strings.TrimSpace(classification)
	if classification == "" {
		return false
	}
	if t.IsUniversal() {
		return true
	}
	for _, c := range t.Compatibility {
		if strings.EqualFold(strings.TrimSpace(c), classification) {
			return true
		}
	}
	return false
}

// DefaultMapping is an owner's preferred template for a classification.
type DefaultMapping struct {
	OwnerID        string    `json:"owner_id"`
	Classification string    `json:"classification"`
	TemplateID     string    `json:"template_id"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizeClassification returns the canonical form used for comparisons.
func NormalizeClassification(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

package model

import "errors"

// Error classes. Package-specific errors wrap one of these so callers can
// map any failure with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAccessDenied  = errors.New("access denied")
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("configuration error")
)

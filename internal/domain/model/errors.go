package model

import "errors"

// Sentinel error kinds shared across layers. Callers match them with errors.Is
// and the HTTP layer maps each kind to a status code.
var (
	ErrValidation  = errors.New("validation failed")
	ErrAuth        = errors.New("authentication required")
	ErrForbidden   = errors.New("access denied")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("too many requests")
	ErrStorage     = errors.New("storage failure")
)

package auth

import "errors"

// Sentinel kinds for auth configuration errors.
var (
	ErrInvalidPrincipal = errors.New("invalid principal")
	ErrInvalidAllowList = errors.New("invalid allow-list entry")
)

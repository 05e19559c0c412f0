package migration

import "errors"

// Sentinel errors for the migration service layer.
var (
	ErrNotFound             = errors.New("audit record not found")
	ErrRunNotFound          = errors.New("migration run not found")
	ErrAlreadyResolved      = errors.New("audit record already resolved or skipped")
	ErrInvalidResolution    = errors.New("invalid resolution")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNoMappingsConfigured = errors.New("no SKU mappings configured for organization")
)

package workspace

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("workspace: not found")

	// ErrNotAllowed is surfaced both for a workspace that does not exist
	// and for one the caller has no membership in, so responses never leak
	// workspace existence.
	ErrNotAllowed = errors.New("workspace: not allowed")

	ErrAdminRequired = errors.New("workspace: admin role required")
	ErrOwnerRequired = errors.New("workspace: owner role required")
	ErrNotActive     = errors.New("workspace: not active")
)

// UnsupportedLocaleError is recoverable: it carries the workspace default
// so the caller can retry or redirect instead of failing outright.
type UnsupportedLocaleError struct {
	Requested string
	Fallback  string
}

func (e *UnsupportedLocaleError) Error() string {
	return fmt.Sprintf("workspace: unsupported locale %q (default %q)", e.Requested, e.Fallback)
}

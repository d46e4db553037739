package auth

import "errors"

var (
	ErrNotFound        = errors.New("auth: not found")
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrInvalidToken covers malformed, unknown, expired and already
	// redeemed tokens alike. Collapsing the four keeps the failure mode
	// free of oracles that would let a caller distinguish "wrong secret"
	// from "expired" from "unknown id".
	ErrInvalidToken = errors.New("auth: invalid or expired token")

	// ErrInvalidCredentials covers unknown email, wrong password and
	// disabled accounts, for the same reason.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

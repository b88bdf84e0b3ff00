package errors

import (
	"errors"
)

// License-domain sentinel errors. The store returns these so callers can
// branch with errors.Is without depending on SQLite result codes; policy
// verdicts (revoked, expired, limit reached) are NOT errors and never
// appear here.
var (
	// ErrLicenseNotFound is returned when no license exists for a key or id.
	ErrLicenseNotFound = errors.New("license not found")

	// ErrDuplicateKey is returned when creating a license whose key already
	// exists. The create path treats this as a signal to regenerate, not a
	// failure.
	ErrDuplicateKey = errors.New("duplicate license key")

	// ErrActivationNotFound is returned when no activation exists for a
	// (license, machine) pair.
	ErrActivationNotFound = errors.New("activation not found")

	// ErrDuplicateActivation is returned when inserting an activation for a
	// pair that already has one. Under concurrent validation this means a
	// racing call won the insert; the engine recovers it as success.
	ErrDuplicateActivation = errors.New("duplicate activation")
)

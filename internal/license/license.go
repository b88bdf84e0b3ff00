package license

import (
	"strings"
	"time"
)

// License represents a single issued license key and its entitlement
// parameters. Timestamps are stored as RFC 3339 UTC strings; ExpiresRaw is
// kept unparsed so the engine can fail closed on corrupt values instead of
// silently treating them as "never expires".
type License struct {
	ID             string    `json:"id"`
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresRaw     string    `json:"expires_at,omitempty"`
	MaxActivations int       `json:"max_activations"`
	Revoked        bool      `json:"revoked"`
	Notes          string    `json:"notes"`
}

// ExpiresAt parses the stored expiration value. The second return is false
// when the license never expires. A non-empty value that cannot be parsed
// returns an error; callers must treat that as expired, not as unlimited.
func (l *License) ExpiresAt() (time.Time, bool, error) {
	if l.ExpiresRaw == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, l.ExpiresRaw)
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}

// Activation is a durable binding between one license and one machine
// identifier, consuming one of the license's activation slots. Identity is
// the (LicenseID, MachineID) pair; ActivatedAt never changes after the
// first successful bind.
type Activation struct {
	ID          string    `json:"id"`
	LicenseID   string    `json:"license_id"`
	MachineID   string    `json:"machine_id"`
	ActivatedAt time.Time `json:"activated_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// ListEntry is a license joined with its current activation count, as
// returned to the admin dashboard.
type ListEntry struct {
	License
	ActivationCount int `json:"activation_count"`
}

// Reason names the disqualifying outcome of a validation call. Reasons are
// first-class results of the decision procedure, not errors.
type Reason string

const (
	ReasonMissingKey       Reason = "missing_key"
	ReasonMissingMachineID Reason = "missing_machine_id"
	ReasonNotFound         Reason = "not_found"
	ReasonRevoked          Reason = "revoked"
	ReasonExpired          Reason = "expired"
	ReasonActivationLimit  Reason = "activation_limit"
)

// Verdict is the structured outcome of a validation call: either Valid with
// entitlement details, or a named Reason.
type Verdict struct {
	Valid                bool
	Reason               Reason
	Key                  string
	ExpiresAt            string
	RemainingActivations int
	Notes                string
}

// NormalizeKey canonicalizes a license key for storage and lookup: trimmed
// and upper-cased. Lookups are case-insensitive because clients transcribe
// keys by hand.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

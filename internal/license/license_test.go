package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiresAt(t *testing.T) {
	t.Run("empty means never expires", func(t *testing.T) {
		lic := &License{}
		_, hasExpiry, err := lic.ExpiresAt()
		require.NoError(t, err)
		assert.False(t, hasExpiry)
	})

	t.Run("valid timestamp parses", func(t *testing.T) {
		lic := &License{ExpiresRaw: "2030-06-15T12:00:00Z"}
		expiresAt, hasExpiry, err := lic.ExpiresAt()
		require.NoError(t, err)
		assert.True(t, hasExpiry)
		assert.Equal(t, time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC), expiresAt.UTC())
	})

	t.Run("garbage reports an expiry with an error", func(t *testing.T) {
		lic := &License{ExpiresRaw: "next tuesday"}
		_, hasExpiry, err := lic.ExpiresAt()
		require.Error(t, err)
		assert.True(t, hasExpiry, "unparseable expiry must not read as perpetual")
	})
}

func TestVerdictReasons(t *testing.T) {
	// The reason strings are the wire contract with license clients.
	assert.Equal(t, Reason("missing_key"), ReasonMissingKey)
	assert.Equal(t, Reason("missing_machine_id"), ReasonMissingMachineID)
	assert.Equal(t, Reason("not_found"), ReasonNotFound)
	assert.Equal(t, Reason("revoked"), ReasonRevoked)
	assert.Equal(t, Reason("expired"), ReasonExpired)
	assert.Equal(t, Reason("activation_limit"), ReasonActivationLimit)
}

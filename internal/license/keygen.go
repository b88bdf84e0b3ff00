package license

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Key format: FLUX-XXXXX-XXXXX-XXXXX-XXXXX where X is drawn from the
// uppercase alphanumeric alphabet. Guessability is a security property
// here, not merely a uniqueness property, so the segments must come from a
// cryptographically secure source.
const (
	KeyPrefix      = "FLUX"
	keyGroups      = 4
	keyGroupLength = 5
	keyAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateKey produces a new random license key. Generation is pure: the
// caller (the create path) owns uniqueness and must regenerate on the
// astronomically unlikely duplicate-key collision rather than fail.
func GenerateKey() (string, error) {
	parts := make([]string, 0, keyGroups+1)
	parts = append(parts, KeyPrefix)

	alphabetLen := big.NewInt(int64(len(keyAlphabet)))
	for g := 0; g < keyGroups; g++ {
		var group strings.Builder
		for i := 0; i < keyGroupLength; i++ {
			n, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return "", fmt.Errorf("license: reading random source: %w", err)
			}
			group.WriteByte(keyAlphabet[n.Int64()])
		}
		parts = append(parts, group.String())
	}

	return strings.Join(parts, "-"), nil
}

// Package security provides admin authentication for the control surface:
// credential verification and the session manager behind the admin
// endpoints. The license core never touches credential configuration; it
// only sees the Authenticator interface.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for credential comparison. N=32768 keeps verification
// around tens of milliseconds, which doubles as brute-force throttling on
// the login endpoint.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// CredentialChecker verifies admin username/password pairs against the
// configured credentials. The configured password is stretched through
// scrypt at construction time so the plaintext is not retained, and
// comparisons are constant-time.
type CredentialChecker struct {
	username     string
	salt         []byte
	passwordHash []byte
}

// NewCredentialChecker derives the stored verifier from the configured
// credentials.
func NewCredentialChecker(username, password string) (*CredentialChecker, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("security: username and password are required")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("security: generating salt: %w", err)
	}
	hash, err := deriveKey([]byte(password), salt)
	if err != nil {
		return nil, err
	}

	return &CredentialChecker{
		username:     username,
		salt:         salt,
		passwordHash: hash,
	}, nil
}

// Check reports whether the supplied credentials match. Both the username
// and the derived password hash are compared in constant time.
func (c *CredentialChecker) Check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(c.username), []byte(username)) == 1

	hash, err := deriveKey([]byte(password), c.salt)
	if err != nil {
		return false
	}
	passOK := subtle.ConstantTimeCompare(c.passwordHash, hash) == 1

	return userOK && passOK
}

func deriveKey(password, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("security: deriving key: %w", err)
	}
	return key, nil
}

package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Authenticator is the capability the admin middleware depends on. The
// session manager implements it; tests may substitute their own.
type Authenticator interface {
	IsAuthenticated(token string) bool
}

// SessionManager issues and validates admin session tokens. Tokens are
// 128-bit random values stored server-side with a TTL; there is no signed
// cookie scheme since the set of admins is tiny and sessions are cheap to
// re-establish.
type SessionManager struct {
	checker *CredentialChecker
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
}

// NewSessionManager creates a session manager over the given credential
// checker.
func NewSessionManager(checker *CredentialChecker, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		checker:  checker,
		ttl:      ttl,
		sessions: make(map[string]time.Time),
	}
}

// Login verifies the credentials and, on success, issues a session token.
func (m *SessionManager) Login(username, password string) (string, error) {
	if !m.checker.Check(username, password) {
		return "", fmt.Errorf("security: invalid credentials")
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("security: generating session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(time.Now())
	m.sessions[token] = time.Now().Add(m.ttl)
	return token, nil
}

// Logout invalidates a session token. Unknown tokens are a no-op.
func (m *SessionManager) Logout(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// IsAuthenticated reports whether the token names a live session.
func (m *SessionManager) IsAuthenticated(token string) bool {
	if token == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(m.sessions, token)
		return false
	}
	return true
}

// pruneLocked drops expired sessions. Called with the lock held on every
// login so the map stays bounded without a background sweeper.
func (m *SessionManager) pruneLocked(now time.Time) {
	for token, expiry := range m.sessions {
		if now.After(expiry) {
			delete(m.sessions, token)
		}
	}
}

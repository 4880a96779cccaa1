// Package token issues and validates the single-use verification tokens
// that prove control of the administrator's email address.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"time"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// DefaultTTL is the absolute expiry window for a verification token.
const DefaultTTL = 24 * time.Hour

// Manager issues and consumes verification tokens on onboarding sessions.
// Expiry is checked lazily against wall-clock time at verification; no
// timers are involved.
type Manager struct {
	ttl time.Duration

	// Now is the clock used for expiry decisions. Tests override it to
	// exercise the expiry boundary; nil means time.Now.
	Now func() time.Time
}

// NewManager creates a manager with the given token lifetime.
// A non-positive ttl falls back to DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{ttl: ttl}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue generates a cryptographically random token, stores it with its
// absolute expiry on the session, and returns it for delivery. Issuing
// over an existing token invalidates the previous one (resend).
func (m *Manager) Issue(s *domain.Session) (string, error) {
	tok, err := generate()
	if err != nil {
		return "", err
	}
	s.VerificationToken = tok
	s.VerificationTokenExpiresAt = m.now().Add(m.ttl)
	return tok, nil
}

// Verify consumes the session's token. It fails with ErrTokenInvalid on a
// missing or mismatched token (constant-time compare) and ErrTokenExpired
// at or past the expiry instant. On success it marks the session verified
// and clears the token fields so the token can never be accepted again.
func (m *Manager) Verify(s *domain.Session, supplied string) error {
	if s.VerificationToken == "" || supplied == "" {
		return domain.ErrTokenInvalid
	}
	if subtle.ConstantTimeCompare([]byte(s.VerificationToken), []byte(supplied)) != 1 {
		return domain.ErrTokenInvalid
	}
	if !m.now().Before(s.VerificationTokenExpiresAt) {
		return domain.ErrTokenExpired
	}

	m.MarkVerified(s)
	return nil
}

// MarkVerified records a successful verification and clears the token
// fields. Also used directly by the auto-verify path, which never issues
// a token at all.
func (m *Manager) MarkVerified(s *domain.Session) {
	s.VerifiedAt = m.now()
	s.VerificationToken = ""
	s.VerificationTokenExpiresAt = time.Time{}
}

// generate produces a 64-character random hex token.
func generate() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789abcdef"
	out := make([]byte, 64)
	for i, v := range b {
		out[i*2] = hex[v>>4]
		out[i*2+1] = hex[v&0x0f]
	}
	return string(out), nil
}

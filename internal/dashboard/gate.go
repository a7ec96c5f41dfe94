// ABOUTME: Admin gate comparing a typed password against the configured secret
// ABOUTME: Supports the plaintext secret or a bcrypt hash of it

package dashboard

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultSecret is the admin password used when none is configured
const DefaultSecret = "0807"

// LoginFailedNotice is shown when the password does not match
const LoginFailedNotice = "パスワードがちがいます"

// Gate checks admin passwords. It offers no real access control: the secret
// is shared by everyone who knows it.
type Gate struct {
	secret string
	hash   []byte
}

// NewGate returns a gate accepting exactly secret.
func NewGate(secret string) *Gate {
	return &Gate{secret: secret}
}

// NewHashedGate returns a gate accepting the password whose bcrypt hash is hash.
func NewHashedGate(hash string) (*Gate, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	return &Gate{hash: []byte(hash)}, nil
}

// Check reports whether candidate matches the secret exactly.
func (g *Gate) Check(candidate string) bool {
	if g.hash != nil {
		return bcrypt.CompareHashAndPassword(g.hash, []byte(candidate)) == nil
	}
	return candidate == g.secret
}

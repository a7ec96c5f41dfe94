// ABOUTME: Tests for the admin gate

package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGate_Plaintext(t *testing.T) {
	g := NewGate(DefaultSecret)

	assert.True(t, g.Check("0807"))
	assert.False(t, g.Check("0808"))
	assert.False(t, g.Check(" 0807"))
	assert.False(t, g.Check(""))
}

func TestGate_Hashed(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)

	g, err := NewHashedGate(string(hash))
	require.NoError(t, err)

	assert.True(t, g.Check("1234"))
	assert.False(t, g.Check("0807"))
}

func TestGate_InvalidHash(t *testing.T) {
	_, err := NewHashedGate("not-a-hash")
	assert.Error(t, err)
}

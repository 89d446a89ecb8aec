package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.NoError(t, h.Verify(hash, "secret1"))
	assert.ErrorIs(t, h.Verify(hash, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, h.Verify("not-a-hash", "secret1"), ErrInvalidCredentials)

	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
}

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, "123456", hash)

	assert.NoError(t, h.Compare(hash, "123456"))
	assert.ErrorIs(t, h.Compare(hash, "654321"), ErrMismatch)

	_, err = h.Hash("123")
	assert.ErrorIs(t, err, ErrPasscodeTooShort)
}

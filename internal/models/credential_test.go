package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	HashCost = bcrypt.MinCost
}

func TestCredential_HashOnce(t *testing.T) {
	raw := RawCredential("pw123")
	require.False(t, raw.IsHashed())

	hashed, err := raw.Hash()
	require.NoError(t, err)
	assert.True(t, hashed.IsHashed())
	assert.NotEqual(t, "pw123", hashed.Encoded())

	again, err := hashed.Hash()
	require.NoError(t, err)
	assert.Equal(t, hashed.Encoded(), again.Encoded(), "hashing a hashed credential must be a no-op")
}

func TestCredential_Verify(t *testing.T) {
	hashed, err := RawCredential("pw123").Hash()
	require.NoError(t, err)

	assert.True(t, hashed.Verify("pw123"))
	assert.False(t, hashed.Verify("pw124"))
	assert.False(t, hashed.Verify(""))
}

func TestCredential_RawNeverVerifies(t *testing.T) {
	assert.False(t, RawCredential("pw123").Verify("pw123"))
	assert.False(t, Credential{}.Verify(""))
}

func TestCredential_EmptyRejected(t *testing.T) {
	_, err := RawCredential("").Hash()
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestCredential_TooLongRejected(t *testing.T) {
	_, err := RawCredential(strings.Repeat("a", MaxPasswordBytes+1)).Hash()
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = RawCredential(strings.Repeat("a", MaxPasswordBytes)).Hash()
	assert.NoError(t, err)
}

func TestCredential_EncodedPanicsOnRaw(t *testing.T) {
	assert.Panics(t, func() { _ = RawCredential("secret").Encoded() })
}

func TestCredential_StringRedacts(t *testing.T) {
	assert.NotContains(t, RawCredential("secret").String(), "secret")
}

func TestReader_SetPassword(t *testing.T) {
	r := Reader{}
	r.SetPassword("pw123")
	assert.False(t, r.Password.IsHashed())
	assert.False(t, r.CheckPassword("pw123"))

	hashed, err := r.Password.Hash()
	require.NoError(t, err)
	r.Password = hashed
	assert.True(t, r.CheckPassword("pw123"))
}

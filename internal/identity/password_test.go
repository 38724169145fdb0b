package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "scrypt:"))
	assert.NotContains(t, hash, "s3cret-pass")

	ok, err := VerifyPassword(hash, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "s3cret-pasS")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltsEveryHash(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_DefaultAccounts(t *testing.T) {
	for _, acc := range DefaultAccounts {
		ok, err := VerifyPassword(acc.PasswordHash, acc.Username+"123")
		require.NoError(t, err, acc.Username)
		assert.True(t, ok, acc.Username)
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"bcrypt:00:00",
		"scrypt:zz:00",
		"scrypt:00:",
		"scrypt:00:zz",
	} {
		ok, err := VerifyPassword(encoded, "whatever")
		assert.False(t, ok, encoded)
		assert.ErrorIs(t, err, errMalformedHash, encoded)
	}
}

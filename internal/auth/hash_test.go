// ABOUTME: Tests for argon2id password hashing and verification.
// ABOUTME: Covers correct password, wrong password, and hash uniqueness.
package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmadsen/coachdesk/internal/auth"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()
	hash, err := auth.HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"), "hash %q is not PHC argon2id format", hash)

	ok, err := auth.VerifyPassword("correct-horse-battery-staple", hash)
	require.NoError(t, err)
	assert.True(t, ok, "correct password should verify")
}

func TestHashPasswordWrongPassword(t *testing.T) {
	t.Parallel()
	hash, err := auth.HashPassword("real-password")
	require.NoError(t, err)

	ok, err := auth.VerifyPassword("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok, "wrong password should not verify")
}

func TestHashPasswordUnique(t *testing.T) {
	t.Parallel()
	hash1, err := auth.HashPassword("same-password")
	require.NoError(t, err)
	hash2, err := auth.HashPassword("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2, "two hashes of the same password should differ (different salts)")
}

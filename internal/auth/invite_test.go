// ABOUTME: Tests for invitation token generation and hashing.
package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmadsen/coachdesk/internal/auth"
)

func TestGenerateInviteToken(t *testing.T) {
	t.Parallel()
	raw, hash, err := auth.GenerateInviteToken()
	require.NoError(t, err)
	assert.True(t, len(raw) > len(auth.InviteTokenPrefix) && raw[:len(auth.InviteTokenPrefix)] == auth.InviteTokenPrefix,
		"token %q missing %q prefix", raw, auth.InviteTokenPrefix)
	assert.Len(t, hash, 64, "hash should be 64 hex chars (sha-256)")
	assert.Equal(t, hash, auth.HashInviteToken(raw))
}

func TestGenerateInviteTokenUnique(t *testing.T) {
	t.Parallel()
	raw1, _, err := auth.GenerateInviteToken()
	require.NoError(t, err)
	raw2, _, err := auth.GenerateInviteToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw1, raw2, "two generated tokens should differ")
}

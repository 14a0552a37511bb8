// ABOUTME: Tests for JWT issuance and parsing with required security constraints.
// ABOUTME: Covers algorithm pinning, expiry enforcement, and token_version embedding.
package auth_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmadsen/coachdesk/internal/auth"
)

func TestJWTRoundTrip(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret-32-bytes-minimum-aaaa")
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	tokenStr, err := auth.IssueAccessToken(secret, userID, 1, 15*time.Minute)
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(tokenStr, secret)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, 1, claims.TokenVersion)
}

func TestJWTRejectsExpired(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret-32-bytes-minimum-aaaa")
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	tokenStr, err := auth.IssueAccessToken(secret, userID, 1, -1*time.Second)
	require.NoError(t, err)

	_, err = auth.ParseAccessToken(tokenStr, secret)
	assert.Error(t, err, "expired token must not parse")
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	t.Parallel()
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	tokenStr, err := auth.IssueAccessToken([]byte("secret-one-32-bytes-minimum-aaaaa"), userID, 1, 15*time.Minute)
	require.NoError(t, err)

	_, err = auth.ParseAccessToken(tokenStr, []byte("secret-two-32-bytes-minimum-bbbbb"))
	assert.Error(t, err, "token signed with another secret must not parse")
}

func TestJWTRejectsWrongAlgorithm(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret-32-bytes-minimum-aaaa")
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	tokenStr, err := auth.IssueAccessToken(secret, userID, 1, 15*time.Minute)
	require.NoError(t, err)

	// Replace the header to claim RS256 — WithValidMethods(["HS256"]) must reject this.
	parts := strings.SplitN(tokenStr, ".", 3)
	fakeHeader := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	tampered := fakeHeader + "." + parts[1] + "." + parts[2]

	_, err = auth.ParseAccessToken(tampered, secret)
	assert.Error(t, err, "RS256 header must be rejected")
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret-32-bytes-minimum-aaaa")
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	jti := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tokenStr, err := auth.IssueRefreshToken(secret, userID, 3, jti, 7*24*time.Hour)
	require.NoError(t, err)

	claims, err := auth.ParseRefreshToken(tokenStr, secret)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, jti, claims.JTI)
	assert.Equal(t, 3, claims.TokenVersion)
}

// ABOUTME: Invitation token generation and hashing for passwordless lead onboarding.
// ABOUTME: Tokens are opaque strings (cdk_ prefix + random bytes). Only sha256 stored.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// InviteTokenPrefix is the human-readable prefix on all CoachDesk invite tokens.
const InviteTokenPrefix = "cdk_"

// GenerateInviteToken creates a new invitation token. Returns the raw token
// (embedded in the emailed invite link, never stored), the sha256 hex hash
// (stored in DB), and any error.
func GenerateInviteToken() (rawToken, tokenHash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate invite token: %w", err)
	}
	rawToken = InviteTokenPrefix + hex.EncodeToString(b)
	tokenHash = HashInviteToken(rawToken)
	return rawToken, tokenHash, nil
}

// HashInviteToken returns the sha256 hex hash of rawToken.
// Use subtle.ConstantTimeCompare when comparing against stored hashes.
func HashInviteToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// ABOUTME: HMAC-signed, time-boxed download URLs for private material objects.
// ABOUTME: The signature covers path|expiry; rotating the secret voids all URLs.
package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DownloadTTL is the fixed lifetime of a signed download URL.
const DownloadTTL = 3600 * time.Second

var (
	// ErrExpired is returned when a signed URL's expiry has passed.
	ErrExpired = errors.New("signed url expired")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("signed url signature mismatch")
)

// Signer mints and verifies signed download URLs. The zero value is not
// usable; construct with NewSigner.
type Signer struct {
	secret  []byte
	baseURL string
}

// NewSigner creates a Signer. baseURL is the externally reachable server URL
// the /files route is mounted on (no trailing slash).
func NewSigner(secret []byte, baseURL string) *Signer {
	return &Signer{secret: secret, baseURL: baseURL}
}

// Sign returns a URL granting bearer access to the object at path until
// now+DownloadTTL. The URL is single-purpose: it downloads one object and
// carries its own expiry.
func (s *Signer) Sign(path string, now time.Time) string {
	expires := now.Add(DownloadTTL).Unix()
	sig := s.signature(path, expires)
	return fmt.Sprintf("%s/files/%s?expires=%d&sig=%s",
		s.baseURL, url.PathEscape(path), expires, sig)
}

// Verify checks sig against path and expires. Returns ErrExpired or
// ErrBadSignature on failure. The signature is checked before the expiry so
// that a forged URL never learns whether its timestamp was plausible.
func (s *Signer) Verify(path string, expires int64, sig string, now time.Time) error {
	expected := s.signature(path, expires)
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	expectedBytes, _ := hex.DecodeString(expected)
	if !hmac.Equal(sigBytes, expectedBytes) {
		return ErrBadSignature
	}
	if now.Unix() > expires {
		return ErrExpired
	}
	return nil
}

func (s *Signer) signature(path string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(path))
	mac.Write([]byte("|"))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

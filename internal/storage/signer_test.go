// ABOUTME: Tests for signed download URL minting and verification.
// ABOUTME: Covers tampering, expiry, secret rotation, and URL shape.
package storage_test

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmadsen/coachdesk/internal/storage"
)

// signedParts extracts path, expires, and sig from a minted URL.
func signedParts(t *testing.T, signed string) (string, int64, string) {
	t.Helper()
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	path := strings.TrimPrefix(u.Path, "/files/")
	path, err = url.PathUnescape(path)
	if err != nil {
		t.Fatalf("unescape path: %v", err)
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("parse expires: %v", err)
	}
	return path, expires, u.Query().Get("sig")
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	s := storage.NewSigner([]byte("storage-secret"), "https://coach.example.com")
	now := time.Now()

	signed := s.Sign("guides/q3-playbook.pdf", now)
	if !strings.HasPrefix(signed, "https://coach.example.com/files/") {
		t.Errorf("signed url %q missing base", signed)
	}

	path, expires, sig := signedParts(t, signed)
	if path != "guides/q3-playbook.pdf" {
		t.Errorf("path = %q", path)
	}
	if want := now.Add(storage.DownloadTTL).Unix(); expires != want {
		t.Errorf("expires = %d, want %d", expires, want)
	}
	if err := s.Verify(path, expires, sig, now); err != nil {
		t.Errorf("verify: %v", err)
	}
	// Still valid one second before expiry.
	if err := s.Verify(path, expires, sig, now.Add(storage.DownloadTTL-time.Second)); err != nil {
		t.Errorf("verify near expiry: %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()
	s := storage.NewSigner([]byte("storage-secret"), "")
	now := time.Now()

	path, expires, sig := signedParts(t, s.Sign("a.pdf", now))
	err := s.Verify(path, expires, sig, now.Add(storage.DownloadTTL+time.Second))
	if !errors.Is(err, storage.ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestVerifyTamperedPath(t *testing.T) {
	t.Parallel()
	s := storage.NewSigner([]byte("storage-secret"), "")
	now := time.Now()

	_, expires, sig := signedParts(t, s.Sign("a.pdf", now))
	err := s.Verify("b.pdf", expires, sig, now)
	if !errors.Is(err, storage.ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyTamperedExpiry(t *testing.T) {
	t.Parallel()
	s := storage.NewSigner([]byte("storage-secret"), "")
	now := time.Now()

	path, expires, sig := signedParts(t, s.Sign("a.pdf", now))
	// Extending the deadline without re-signing must fail.
	err := s.Verify(path, expires+3600, sig, now)
	if !errors.Is(err, storage.ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyRotatedSecret(t *testing.T) {
	t.Parallel()
	old := storage.NewSigner([]byte("old-secret"), "")
	now := time.Now()
	path, expires, sig := signedParts(t, old.Sign("a.pdf", now))

	rotated := storage.NewSigner([]byte("new-secret"), "")
	err := rotated.Verify(path, expires, sig, now)
	if !errors.Is(err, storage.ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyGarbageSignature(t *testing.T) {
	t.Parallel()
	s := storage.NewSigner([]byte("storage-secret"), "")
	err := s.Verify("a.pdf", time.Now().Add(time.Hour).Unix(), "not-hex!", time.Now())
	if !errors.Is(err, storage.ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}
}

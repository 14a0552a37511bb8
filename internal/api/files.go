// ABOUTME: Serves material bytes for valid signed URLs at GET /files/{path}.
// ABOUTME: The signature is the only credential — no session is consulted.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmadsen/coachdesk/internal/storage"
)

// fileDownloadHandler handles GET /files/{path}. Verifies the HMAC signature
// and expiry minted by the download-URL issuer, then streams the object.
// Bad-signature and expired URLs both yield 403; a valid URL for a missing
// object yields 404.
func (srv *Server) fileDownloadHandler(w http.ResponseWriter, r *http.Request) {
	path, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || path == "" {
		writeError(w, http.StatusBadRequest, "invalid file path")
		return
	}

	expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	sig := r.URL.Query().Get("sig")

	if err := srv.signer.Verify(path, expires, sig, time.Now()); err != nil {
		// ErrExpired and ErrBadSignature collapse to the same response.
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	obj, err := srv.objects.Open(path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeServerError(w, r, "file download: open", err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment")
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := io.Copy(w, obj); err != nil {
		// Headers are already sent; nothing to do but note the broken stream.
		slog.WarnContext(r.Context(), "file download: copy", "error", err)
	}
}

// ABOUTME: Request context key types and constants for the api package.
// ABOUTME: Used by middleware to inject auth state and by handlers to read it.
package api

import (
	"net/http"

	"github.com/jmadsen/coachdesk/internal/store"
)

type contextKey int

const (
	ctxProfile contextKey = iota // *store.Profile — set by RequireAuth/RequireAdmin
)

// profileFrom returns the profile injected by the role-gate middleware.
// ok is false when no gate ran on this request — a programming error, since
// every resource route must be behind exactly one gate.
func profileFrom(r *http.Request) (*store.Profile, bool) {
	p, ok := r.Context().Value(ctxProfile).(*store.Profile)
	return p, ok
}

// ABOUTME: The role gate: session resolution, requireAuth/requireAdmin, and the
// ABOUTME: middleware that every resource route must pass before touching data.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jmadsen/coachdesk/internal/auth"
	"github.com/jmadsen/coachdesk/internal/store"
)

// AuthKind tags the variants of an AuthResult.
type AuthKind int

// AuthResult variants. Only the two success kinds carry a payload.
const (
	// AuthUnauthenticated — no valid session. Maps to 401.
	AuthUnauthenticated AuthKind = iota
	// AuthForbidden — valid session, insufficient role. Maps to 403.
	AuthForbidden
	// AuthAuthenticated — valid session and profile, any role.
	AuthAuthenticated
	// AuthAuthorized — valid session and profile.role == admin.
	AuthAuthorized
)

// AuthResult is the role gate's output and the only value downstream handlers
// may branch on. User and Profile are set only for the success kinds.
type AuthResult struct {
	Kind    AuthKind
	User    uuid.UUID
	Profile *store.Profile
}

// resolveSession reads the caller's authentication context from the
// access_token cookie. Returns (uuid.Nil, false) when no valid session exists
// — an absent, expired, or malformed token is a normal outcome, not an error.
func (srv *Server) resolveSession(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie("access_token")
	if err != nil {
		return uuid.Nil, false
	}
	claims, err := auth.ParseAccessToken(cookie.Value, []byte(srv.cfg.JWTSecret))
	if err != nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

// requireAuth resolves the session and loads the caller's profile. A session
// with no profile row is a consistency fault (plausible during a provisioning
// race); it fails closed as unauthenticated rather than crashing.
func (srv *Server) requireAuth(r *http.Request) AuthResult {
	userID, ok := srv.resolveSession(r)
	if !ok {
		return AuthResult{Kind: AuthUnauthenticated}
	}

	prof, err := srv.store.GetProfile(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "role gate: profile lookup", "error", err)
		return AuthResult{Kind: AuthUnauthenticated}
	}
	if prof == nil {
		slog.WarnContext(r.Context(), "session without profile row", "user_id", userID)
		return AuthResult{Kind: AuthUnauthenticated}
	}
	return AuthResult{Kind: AuthAuthenticated, User: userID, Profile: prof}
}

// requireAdmin narrows requireAuth to admin callers. Admin authority is
// global: an admin with no company_id is fully authorized.
func (srv *Server) requireAdmin(r *http.Request) AuthResult {
	res := srv.requireAuth(r)
	if res.Kind != AuthAuthenticated {
		return res
	}
	if parseRole(res.Profile.Role) < RoleAdmin {
		return AuthResult{Kind: AuthForbidden}
	}
	res.Kind = AuthAuthorized
	return res
}

// reject writes the rejection response for a non-success AuthResult.
// Authorization rejections are expected outcomes and are never logged as faults.
func reject(w http.ResponseWriter, res AuthResult) {
	switch res.Kind {
	case AuthForbidden:
		writeError(w, http.StatusForbidden, "Forbidden")
	default:
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	}
}

// RequireAuth returns middleware that admits any authenticated caller and
// injects the profile into the request context.
func (srv *Server) RequireAuth() func(http.Handler) http.Handler {
	return srv.gate(srv.requireAuth, AuthAuthenticated)
}

// RequireAdmin returns middleware that admits only admin callers.
// May be stacked under RequireAuth on a parent router; the check is
// re-derived from the request, never cached.
func (srv *Server) RequireAdmin() func(http.Handler) http.Handler {
	return srv.gate(srv.requireAdmin, AuthAuthorized)
}

func (srv *Server) gate(check func(*http.Request) AuthResult, want AuthKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := check(r)
			if res.Kind != want {
				reject(w, res)
				return
			}
			ctx := context.WithValue(r.Context(), ctxProfile, res.Profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

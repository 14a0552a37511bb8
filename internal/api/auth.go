// ABOUTME: HTTP handlers for authentication: login, refresh, logout, me, invitations.
// ABOUTME: All auth endpoints live at /api/v1/auth/... and are rate-limited.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jmadsen/coachdesk/internal/auth"
	"github.com/jmadsen/coachdesk/internal/store"
)

// Token TTLs.
const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	// dummyPasswordHash is a valid PHC-format argon2id hash used for login timing
	// normalization. Running VerifyPassword against this for nonexistent users
	// prevents email enumeration via response time differences.
	dummyPasswordHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA" //nolint:gosec // G101 false positive: public dummy hash for timing normalization, not a real credential
)

// emailLocalPart returns the part of email before the @, or the whole string
// if no @ is present.
func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// pgErrCode extracts the Postgres error code from err, or "" if err is not a pg error.
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// authCookies returns Set-Cookie header values for the access and refresh tokens.
// refresh_token is scoped to /api/v1/auth to limit its transmission surface.
func authCookies(accessToken, refreshToken string, secure bool) []string {
	access := &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(accessTokenTTL.Seconds()),
	}
	refresh := &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(refreshTokenTTL.Seconds()),
	}
	return []string{access.String(), refresh.String()}
}

// clearAuthCookies returns Set-Cookie headers that immediately expire both auth cookies.
func clearAuthCookies(secure bool) []string {
	access := &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	refresh := &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	return []string{access.String(), refresh.String()}
}

// issueCookiePair issues a fresh access + refresh token pair for user.
func (srv *Server) issueCookiePair(ctx context.Context, user *store.User) ([]string, error) {
	secret := []byte(srv.cfg.JWTSecret)
	accessToken, err := auth.IssueAccessToken(secret, user.ID, user.TokenVersion, accessTokenTTL)
	if err != nil {
		slog.ErrorContext(ctx, "issue access token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	refreshToken, err := auth.IssueRefreshToken(secret, user.ID, user.TokenVersion, uuid.New(), refreshTokenTTL)
	if err != nil {
		slog.ErrorContext(ctx, "issue refresh token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	return authCookies(accessToken, refreshToken, srv.cfg.CookieSecure), nil
}

// ── Login ─────────────────────────────────────────────────────────────────────

// loginInput is the request body for POST /auth/login.
type loginInput struct {
	Body struct {
		Email    string `json:"email"    format:"email" maxLength:"254"  doc:"User email"`
		Password string `json:"password" minLength:"8"  maxLength:"1024" doc:"Password"`
	}
}

// loginOutput returns auth cookies (no JSON body needed).
type loginOutput struct {
	SetCookie []string `header:"Set-Cookie"`
}

// loginHandler handles POST /api/v1/auth/login.
// Nonexistent and passwordless users still run argon2 to normalize response
// timing (prevents email enumeration). Invited customers have no password
// hash and cannot log in here — they use the invitation accept flow.
func (srv *Server) loginHandler(ctx context.Context, input *loginInput) (*loginOutput, error) {
	user, err := srv.store.GetUserByEmail(ctx, input.Body.Email)
	if err != nil {
		slog.ErrorContext(ctx, "login: lookup email", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	// Timing normalization: always spend argon2 time regardless of whether the user exists.
	if user == nil || user.PasswordHash == nil {
		if !srv.acquireArgon2() {
			return nil, huma.Error503ServiceUnavailable("server busy, please retry")
		}
		_, _ = auth.VerifyPassword(input.Body.Password, dummyPasswordHash)
		srv.releaseArgon2()
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	if !srv.acquireArgon2() {
		return nil, huma.Error503ServiceUnavailable("server busy, please retry")
	}
	ok, err := auth.VerifyPassword(input.Body.Password, *user.PasswordHash)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(ctx, "login: verify password", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if !ok {
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	cookies, err := srv.issueCookiePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &loginOutput{SetCookie: cookies}, nil
}

// ── Refresh ───────────────────────────────────────────────────────────────────

// refreshInput reads the refresh_token cookie.
type refreshInput struct {
	RefreshToken string `cookie:"refresh_token" doc:"Refresh token cookie"`
}

// refreshOutput returns new auth cookies.
type refreshOutput struct {
	SetCookie []string `header:"Set-Cookie"`
}

// refreshHandler handles POST /api/v1/auth/refresh.
// Stateless rotation: the token is valid while its tv claim matches
// users.token_version. Bumping the version (logout-all, deactivation)
// invalidates every outstanding refresh token at once.
func (srv *Server) refreshHandler(ctx context.Context, input *refreshInput) (*refreshOutput, error) {
	if input.RefreshToken == "" {
		return nil, huma.Error401Unauthorized("refresh token required")
	}

	claims, err := auth.ParseRefreshToken(input.RefreshToken, []byte(srv.cfg.JWTSecret))
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid or expired refresh token")
	}

	user, err := srv.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "refresh: get user", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if user == nil {
		return nil, huma.Error401Unauthorized("unknown user")
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, huma.Error401Unauthorized("session invalidated")
	}

	cookies, err := srv.issueCookiePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &refreshOutput{SetCookie: cookies}, nil
}

// ── Logout ────────────────────────────────────────────────────────────────────

// logoutOutput clears auth cookies.
type logoutOutput struct {
	SetCookie []string `header:"Set-Cookie"`
}

// logoutHandler handles POST /api/v1/auth/logout. Clears both auth cookies;
// tokens held elsewhere expire on their own schedule.
func (srv *Server) logoutHandler(_ context.Context, _ *struct{}) (*logoutOutput, error) {
	return &logoutOutput{SetCookie: clearAuthCookies(srv.cfg.CookieSecure)}, nil
}

// ── Me ────────────────────────────────────────────────────────────────────────

// meInput reads the access_token cookie for authentication.
type meInput struct {
	AccessToken string `cookie:"access_token" doc:"Access token cookie"`
}

// meOutput is the response body for GET /auth/me.
type meOutput struct {
	Body struct {
		UserID      string  `json:"user_id"`
		Email       string  `json:"email"`
		DisplayName string  `json:"display_name"`
		Role        string  `json:"role"`
		CompanyID   *string `json:"company_id"`
		CompanyName *string `json:"company_name"`
	}
}

// meHandler handles GET /api/v1/auth/me.
func (srv *Server) meHandler(ctx context.Context, input *meInput) (*meOutput, error) {
	if input.AccessToken == "" {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	claims, err := auth.ParseAccessToken(input.AccessToken, []byte(srv.cfg.JWTSecret))
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid or expired access token")
	}

	user, err := srv.store.GetUserByID(ctx, claims.UserID)
	if err != nil || user == nil {
		slog.ErrorContext(ctx, "me: get user", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	prof, err := srv.store.GetProfile(ctx, user.ID)
	if err != nil {
		slog.ErrorContext(ctx, "me: get profile", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if prof == nil {
		return nil, huma.Error401Unauthorized("no profile for session")
	}

	out := &meOutput{}
	out.Body.UserID = user.ID.String()
	out.Body.Email = user.Email
	out.Body.DisplayName = user.DisplayName
	out.Body.Role = prof.Role
	if prof.CompanyID != nil {
		id := prof.CompanyID.String()
		out.Body.CompanyID = &id
		lead, err := srv.store.GetOwnLead(ctx, prof.Scope())
		if err != nil {
			slog.ErrorContext(ctx, "me: get company", "error", err)
			return nil, huma.Error500InternalServerError("internal error")
		}
		if lead != nil {
			out.Body.CompanyName = &lead.CompanyName
		}
	}
	return out, nil
}

// ── Invitations (public) ──────────────────────────────────────────────────────

// getInvitationInput reads the token path parameter.
type getInvitationInput struct {
	Token string `path:"token" doc:"Invitation token"`
}

// getInvitationOutput is the response for GET /auth/invitations/{token}.
// Returns company name, role, and expiry. Does NOT expose company_id.
type getInvitationOutput struct {
	Body struct {
		CompanyName string `json:"company_name"`
		Role        string `json:"role"`
		ExpiresAt   string `json:"expires_at"`
	}
}

// getInvitationHandler handles GET /api/v1/auth/invitations/{token}.
// Public endpoint — no authentication required; the token is the capability.
func (srv *Server) getInvitationHandler(ctx context.Context, input *getInvitationInput) (*getInvitationOutput, error) {
	inv, err := srv.store.GetInvitationByTokenHash(ctx, auth.HashInviteToken(input.Token))
	if err != nil {
		slog.ErrorContext(ctx, "get invitation", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if inv == nil {
		return nil, huma.Error404NotFound("invitation not found")
	}
	if time.Now().After(inv.ExpiresAt) || inv.AcceptedAt != nil {
		return nil, huma.NewError(http.StatusGone, "invitation has expired or has already been used")
	}

	lead, err := srv.store.GetLead(ctx, inv.LeadID)
	if err != nil || lead == nil {
		slog.ErrorContext(ctx, "get invitation lead", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	out := &getInvitationOutput{}
	out.Body.CompanyName = lead.CompanyName
	out.Body.Role = inv.Role
	out.Body.ExpiresAt = inv.ExpiresAt.Format(time.RFC3339)
	return out, nil
}

// acceptInvitationInput reads the token path parameter and the display name.
type acceptInvitationInput struct {
	Token string `path:"token" doc:"Invitation token"`
	Body  struct {
		DisplayName string `json:"display_name,omitempty" maxLength:"254" doc:"Display name (optional, defaults to email local-part)"`
	} `required:"false"`
}

// acceptInvitationOutput returns auth cookies — accepting logs the invitee in.
type acceptInvitationOutput struct {
	SetCookie []string `header:"Set-Cookie"`
	Body      struct {
		UserID string `json:"user_id"`
	}
}

// acceptInvitationHandler handles POST /api/v1/auth/invitations/{token}/accept.
// No prior authentication: the invitation token is a bearer capability that
// proves control of the invited email address. Provisions the user + customer
// profile atomically and issues a session. Idempotent — if the invitation was
// already accepted and the account exists, the link logs the invitee back in.
func (srv *Server) acceptInvitationHandler(ctx context.Context, input *acceptInvitationInput) (*acceptInvitationOutput, error) {
	inv, err := srv.store.GetInvitationByTokenHash(ctx, auth.HashInviteToken(input.Token))
	if err != nil {
		slog.ErrorContext(ctx, "accept invitation: get", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if inv == nil {
		return nil, huma.Error404NotFound("invitation not found")
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, huma.NewError(http.StatusGone, "invitation has expired")
	}

	// Idempotency: a re-click on an already-accepted link re-establishes the
	// session for the provisioned account instead of failing.
	if inv.AcceptedAt != nil {
		user, err := srv.store.GetUserByEmail(ctx, inv.Email)
		if err != nil {
			slog.ErrorContext(ctx, "accept invitation: lookup user", "error", err)
			return nil, huma.Error500InternalServerError("internal error")
		}
		if user == nil {
			return nil, huma.NewError(http.StatusGone, "invitation has already been used")
		}
		return srv.acceptOutput(ctx, user)
	}

	displayName := input.Body.DisplayName
	if displayName == "" {
		displayName = emailLocalPart(inv.Email)
	}

	user, err := srv.store.ProvisionInvitedUser(ctx, inv, displayName)
	if err != nil {
		if pgErrCode(err) == "23505" { // unique_violation — email already has an account
			return nil, huma.Error409Conflict("an account already exists for this email")
		}
		slog.ErrorContext(ctx, "accept invitation: provision", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	return srv.acceptOutput(ctx, user)
}

func (srv *Server) acceptOutput(ctx context.Context, user *store.User) (*acceptInvitationOutput, error) {
	cookies, err := srv.issueCookiePair(ctx, user)
	if err != nil {
		return nil, err
	}
	out := &acceptInvitationOutput{SetCookie: cookies}
	out.Body.UserID = user.ID.String()
	return out, nil
}

// ── Route registration ────────────────────────────────────────────────────────

// registerAuthRoutes registers all auth-related routes on the huma API.
func registerAuthRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID:   "login",
		Method:        http.MethodPost,
		Path:          "/auth/login",
		Tags:          []string{"auth"},
		Summary:       "Log in and receive auth cookies",
		DefaultStatus: http.StatusOK,
	}, srv.loginHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "refresh-token",
		Method:        http.MethodPost,
		Path:          "/auth/refresh",
		Tags:          []string{"auth"},
		Summary:       "Rotate the refresh token and issue a new access token",
		DefaultStatus: http.StatusOK,
	}, srv.refreshHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/auth/logout",
		Tags:          []string{"auth"},
		Summary:       "Log out and clear auth cookies",
		DefaultStatus: http.StatusOK,
	}, srv.logoutHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Tags:        []string{"auth"},
		Summary:     "Get the current user's profile and company",
	}, srv.meHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-invitation",
		Method:      http.MethodGet,
		Path:        "/auth/invitations/{token}",
		Tags:        []string{"auth"},
		Summary:     "Get invitation details (public)",
	}, srv.getInvitationHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "accept-invitation",
		Method:        http.MethodPost,
		Path:          "/auth/invitations/{token}/accept",
		Tags:          []string{"auth"},
		Summary:       "Accept an invitation, provisioning the account and logging in",
		DefaultStatus: http.StatusOK,
	}, srv.acceptInvitationHandler)
}

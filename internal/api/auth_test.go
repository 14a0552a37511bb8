// ABOUTME: Integration tests for auth endpoints: login, refresh, me, logout,
// ABOUTME: and the login rate limit.
package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/jmadsen/coachdesk/internal/auth"
	"github.com/jmadsen/coachdesk/internal/testutil"
)

// seedPasswordUser creates an admin user with a real argon2id password hash.
func seedPasswordUser(t *testing.T, ctx context.Context, db *testutil.TestDB, email, password string) uuid.UUID {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := db.CreateUser(ctx, email, "Coach", &hash)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := db.CreateProfile(ctx, user.ID, "admin", nil); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return user.ID
}

func TestLoginAndMe(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	seedPasswordUser(t, ctx, db, "coach@example.com", "opensesame42")

	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"coach@example.com","password":"opensesame42"}`)
	wantStatus(t, resp, http.StatusOK)
	accessToken := cookieValue(resp, "access_token")
	refreshToken := cookieValue(resp, "refresh_token")
	resp.Body.Close()
	if accessToken == "" || refreshToken == "" {
		t.Fatal("login did not set both auth cookies")
	}

	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/auth/me", accessToken, "")
	wantStatus(t, resp, http.StatusOK)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decodeJSON(t, resp, &me)
	if me.Email != "coach@example.com" {
		t.Errorf("email = %q", me.Email)
	}
	if me.Role != "admin" {
		t.Errorf("role = %q, want admin", me.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	seedPasswordUser(t, ctx, db, "coach@example.com", "opensesame42")

	// Wrong password and unknown email produce the same 401.
	for _, body := range []string{
		`{"email":"coach@example.com","password":"wrongwrong"}`,
		`{"email":"nobody@example.com","password":"wrongwrong"}`,
	} {
		resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/login", "", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestLoginPasswordlessAccountRejected(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	// Invited customers have no password hash; the login path must not accept
	// any password for them.
	if _, err := db.CreateUser(ctx, "invited@example.com", "Invited", nil); err != nil {
		t.Fatalf("create user: %v", err)
	}

	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"invited@example.com","password":"anything8"}`)
	wantStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestRefreshRotatesSession(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	userID := seedPasswordUser(t, ctx, db, "coach@example.com", "opensesame42")

	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"coach@example.com","password":"opensesame42"}`)
	wantStatus(t, resp, http.StatusOK)
	refreshToken := cookieValue(resp, "refresh_token")
	resp.Body.Close()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/v1/auth/refresh", nil)
	req.Header.Set("Cookie", "refresh_token="+refreshToken)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	wantStatus(t, resp, http.StatusOK)
	if cookieValue(resp, "access_token") == "" {
		t.Error("refresh did not set a new access token")
	}
	resp.Body.Close()

	// Bumping token_version invalidates every outstanding refresh token.
	if err := db.BumpTokenVersion(ctx, userID); err != nil {
		t.Fatalf("bump token version: %v", err)
	}
	req, _ = http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/v1/auth/refresh", nil)
	req.Header.Set("Cookie", "refresh_token="+refreshToken)
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("refresh after bump: %v", err)
	}
	wantStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestLogoutClearsCookies(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/logout", "", "")
	wantStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s MaxAge = %d, want negative (cleared)", c.Name, c.MaxAge)
		}
	}
}

func TestLoginRateLimited(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	// Burst is 10; the 11th rapid attempt from one IP must be limited.
	var last int
	for i := 0; i < 11; i++ {
		resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/login", "",
			fmt.Sprintf(`{"email":"guess%d@example.com","password":"guessguess"}`, i))
		last = resp.StatusCode
		resp.Body.Close()
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th login status = %d, want 429", last)
	}
}

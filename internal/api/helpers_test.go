// ABOUTME: Shared helpers for API integration tests: test server construction,
// ABOUTME: seeded admin/customer sessions, and cookie-aware request helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmadsen/coachdesk/internal/auth"
	"github.com/jmadsen/coachdesk/internal/config"
	"github.com/jmadsen/coachdesk/internal/storage"
	"github.com/jmadsen/coachdesk/internal/store"
	"github.com/jmadsen/coachdesk/internal/testutil"
)

const testJWTSecret = "test-jwt-secret-32-bytes-minimum-x"

// newTestServer builds a full Server backed by the RLS-enforcing app pool and
// returns it with an httptest server and the materials directory. ExternalURL
// is empty so signed URLs come back relative and can be fetched from ts.
func newTestServer(t *testing.T, db *testutil.TestDB) (*httptest.Server, string) {
	t.Helper()
	materialsDir := t.TempDir()
	cfg := &config.Config{
		JWTSecret:           testJWTSecret,
		StorageSecret:       "test-storage-secret",
		StorageDir:          materialsDir,
		Argon2MaxConcurrent: 5,
		InviteTTL:           14 * 24 * time.Hour,
		PortalOrigin:        "http://portal.test",
		RateLimitEvictTTL:   15 * time.Minute,
	}
	srv := NewServer(db.AppStore, cfg, &storage.DiskStore{Dir: materialsDir})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, materialsDir
}

// seedAdmin creates an admin user directly in the database and returns an
// access token for it.
func seedAdmin(t *testing.T, ctx context.Context, db *testutil.TestDB, email string) string {
	t.Helper()
	user, err := db.CreateUser(ctx, email, "Admin", nil)
	if err != nil {
		t.Fatalf("seed admin user: %v", err)
	}
	if err := db.CreateProfile(ctx, user.ID, "admin", nil); err != nil {
		t.Fatalf("seed admin profile: %v", err)
	}
	return mintToken(t, user.ID)
}

// seedCustomer creates a customer user linked to companyID (nil for an
// unlinked customer) and returns an access token for it.
func seedCustomer(t *testing.T, ctx context.Context, db *testutil.TestDB, email string, companyID *uuid.UUID) string {
	t.Helper()
	user, err := db.CreateUser(ctx, email, "Customer", nil)
	if err != nil {
		t.Fatalf("seed customer user: %v", err)
	}
	if err := db.CreateProfile(ctx, user.ID, "customer", companyID); err != nil {
		t.Fatalf("seed customer profile: %v", err)
	}
	return mintToken(t, user.ID)
}

func mintToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.IssueAccessToken([]byte(testJWTSecret), userID, 0, 15*time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

// seedLead inserts a lead directly for test setup.
func seedLead(t *testing.T, ctx context.Context, db *testutil.TestDB, companyName string) *store.Lead {
	t.Helper()
	lead, err := db.CreateLead(ctx, store.CreateLeadParams{
		CompanyName: companyName,
		ContactName: "Contact " + companyName,
		Email:       strings.ToLower(strings.ReplaceAll(companyName, " ", "")) + "@example.com",
	})
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return lead
}

// doReq performs a JSON request with the access token cookie and the CSRF
// header set. Returns the response; the caller must close Body.
func doReq(t *testing.T, ctx context.Context, ts *httptest.Server, method, path, accessToken, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Cookie", "access_token="+accessToken)
		req.Header.Set("X-Requested-By", "CoachDesk")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON decodes the response body into v and closes it.
func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// wantStatus fails the test if the response status differs, printing the body.
func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body: %s)", resp.StatusCode, want, b)
	}
}

// errorMessage reads the {"error": "..."} body and closes it.
func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &out)
	return out.Error
}

// cookieValue extracts a named cookie from the response's Set-Cookie headers.
func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

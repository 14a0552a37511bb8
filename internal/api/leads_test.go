// ABOUTME: Integration tests for admin lead CRUD and the passwordless
// ABOUTME: invitation flow from issue through acceptance to portal access.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/jmadsen/coachdesk/internal/notify"
	"github.com/jmadsen/coachdesk/internal/testutil"
)

func TestLeadCRUD(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	admin := seedAdmin(t, ctx, db, "admin@example.com")

	// Create with defaulted status.
	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/admin/leads", admin,
		`{"company_name":"Acme Corp","contact_name":"Jo Smith","email":"jo@acme.example"}`)
	wantStatus(t, resp, http.StatusCreated)
	var created leadResponse
	decodeJSON(t, resp, &created)
	if created.ID == "" {
		t.Fatal("id is empty")
	}
	if created.Status != "new" {
		t.Errorf("status = %q, want new (default)", created.Status)
	}

	// Get.
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/admin/leads/"+created.ID, admin, "")
	wantStatus(t, resp, http.StatusOK)
	var got leadResponse
	decodeJSON(t, resp, &got)
	if got.CompanyName != "Acme Corp" {
		t.Errorf("company_name = %q", got.CompanyName)
	}

	// Patch status; other fields unchanged.
	resp = doReq(t, ctx, ts, http.MethodPatch, "/api/v1/admin/leads/"+created.ID, admin,
		`{"status":"client"}`)
	wantStatus(t, resp, http.StatusOK)
	var updated leadResponse
	decodeJSON(t, resp, &updated)
	if updated.Status != "client" {
		t.Errorf("status = %q, want client", updated.Status)
	}
	if updated.ContactName != "Jo Smith" {
		t.Errorf("contact_name = %q, want unchanged", updated.ContactName)
	}

	// List filtered by status.
	seedLead(t, ctx, db, "Other Co")
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/admin/leads?status=client", admin, "")
	wantStatus(t, resp, http.StatusOK)
	var listed []leadResponse
	decodeJSON(t, resp, &listed)
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Errorf("filtered list = %+v, want only the client lead", listed)
	}

	// Substring search.
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/admin/leads?q=acme", admin, "")
	wantStatus(t, resp, http.StatusOK)
	listed = nil
	decodeJSON(t, resp, &listed)
	if len(listed) != 1 {
		t.Errorf("search returned %d rows, want 1", len(listed))
	}

	// Delete returns the success envelope; a second delete is 404.
	resp = doReq(t, ctx, ts, http.MethodDelete, "/api/v1/admin/leads/"+created.ID, admin, "")
	wantStatus(t, resp, http.StatusOK)
	var ok struct {
		Success bool `json:"success"`
	}
	decodeJSON(t, resp, &ok)
	if !ok.Success {
		t.Error("success = false")
	}
	resp = doReq(t, ctx, ts, http.MethodDelete, "/api/v1/admin/leads/"+created.ID, admin, "")
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestLeadValidation(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	admin := seedAdmin(t, ctx, db, "admin@example.com")

	for name, body := range map[string]string{
		"missing company_name": `{"email":"a@example.com"}`,
		"bad email":            `{"company_name":"Acme","email":"not-an-email"}`,
		"unknown status":       `{"company_name":"Acme","email":"a@example.com","status":"wat"}`,
		"malformed json":       `{`,
	} {
		resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/admin/leads", admin, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doReq(t, ctx, ts, http.MethodGet, "/api/v1/admin/leads/not-a-uuid", admin, "")
	wantStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

// TestInviteAcceptFlow walks the whole onboarding path: the admin invites a
// lead, the queued email payload carries the raw token, the invitee inspects
// and accepts the invitation, and the resulting session reads the company
// through the portal.
func TestInviteAcceptFlow(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	admin := seedAdmin(t, ctx, db, "admin@example.com")
	lead := seedLead(t, ctx, db, "Brightside Bakery")

	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/admin/leads/"+lead.ID.String()+"/invite", admin, "")
	wantStatus(t, resp, http.StatusCreated)
	var invited inviteLeadResponse
	decodeJSON(t, resp, &invited)
	if invited.InvitationID == "" {
		t.Fatal("invitation_id is empty")
	}
	if invited.Email != lead.Email {
		t.Errorf("email = %q, want the lead's contact email %q", invited.Email, lead.Email)
	}

	// The raw token never appears in the API response; fish it out of the
	// queued email job the way the mailer would.
	job, err := db.ClaimJob(ctx, notify.InviteQueue, "test-worker")
	if err != nil {
		t.Fatalf("claim job: %v", err)
	}
	if job == nil {
		t.Fatal("no invite email job was enqueued")
	}
	var payload notify.InvitePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	idx := strings.LastIndex(payload.InviteURL, "/")
	rawToken := payload.InviteURL[idx+1:]

	// Public invitation lookup shows the company and role, never the company id.
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/auth/invitations/"+rawToken, "", "")
	wantStatus(t, resp, http.StatusOK)
	var info struct {
		CompanyName string `json:"company_name"`
		Role        string `json:"role"`
	}
	decodeJSON(t, resp, &info)
	if info.CompanyName != "Brightside Bakery" {
		t.Errorf("company_name = %q", info.CompanyName)
	}
	if info.Role != "customer" {
		t.Errorf("role = %q, want customer", info.Role)
	}

	// Accept: provisions the account and returns a session cookie.
	resp = doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/invitations/"+rawToken+"/accept", "",
		`{"display_name":"Pat Baker"}`)
	wantStatus(t, resp, http.StatusOK)
	accessToken := cookieValue(resp, "access_token")
	resp.Body.Close()
	if accessToken == "" {
		t.Fatal("accept did not set an access_token cookie")
	}

	// The new session is a customer scoped to the invited company.
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/portal/company", accessToken, "")
	wantStatus(t, resp, http.StatusOK)
	var company leadResponse
	decodeJSON(t, resp, &company)
	if company.ID != lead.ID.String() {
		t.Errorf("portal company = %q, want %q", company.ID, lead.ID)
	}

	// ...and is not an admin.
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/admin/leads", accessToken, "")
	wantStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	// Re-clicking the accepted link re-establishes the session rather than failing.
	resp = doReq(t, ctx, ts, http.MethodPost, "/api/v1/auth/invitations/"+rawToken+"/accept", "", `{}`)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestInviteUnknownToken(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	resp := doReq(t, ctx, ts, http.MethodGet, "/api/v1/auth/invitations/cdk_nope", "", "")
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

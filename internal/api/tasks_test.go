// ABOUTME: Integration tests for admin task, subtask, and attachment handlers:
// ABOUTME: creation defaults, attachment validation, and role-gate persistence.
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/jmadsen/coachdesk/internal/store"
	"github.com/jmadsen/coachdesk/internal/testutil"
)

func TestSubtaskCreateDefaults(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	admin := seedAdmin(t, ctx, db, "admin@example.com")
	lead := seedLead(t, ctx, db, "Harbor Co")

	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/admin/leads/"+lead.ID.String()+"/tasks", admin,
		`{"title":"Onboarding"}`)
	wantStatus(t, resp, http.StatusCreated)
	var task taskResponse
	decodeJSON(t, resp, &task)
	if !task.ShowOnDashboard {
		t.Error("show_on_dashboard should default to true")
	}
	if task.Position != 0 {
		t.Errorf("task position = %d, want 0 (default)", task.Position)
	}

	// A subtask created with only a title gets a null deadline and position 0.
	resp = doReq(t, ctx, ts, http.MethodPost, "/api/v1/admin/tasks/"+task.ID+"/subtasks", admin,
		`{"title":"Collect documents"}`)
	wantStatus(t, resp, http.StatusCreated)
	var subtask subtaskResponse
	decodeJSON(t, resp, &subtask)
	if subtask.Deadline != nil {
		t.Errorf("deadline = %v, want null", *subtask.Deadline)
	}
	if subtask.Position != 0 {
		t.Errorf("subtask position = %d, want 0 (default)", subtask.Position)
	}
	if subtask.CompanyID != lead.ID.String() {
		t.Errorf("subtask company = %q, want the lead's %q", subtask.CompanyID, lead.ID)
	}

	// Subtasks on a nonexistent task are 404.
	resp = doReq(t, ctx, ts, http.MethodPost,
		"/api/v1/admin/tasks/00000000-0000-0000-0000-0000000000ef/subtasks", admin,
		`{"title":"Orphan"}`)
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestAttachmentValidation(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	admin := seedAdmin(t, ctx, db, "admin@example.com")
	lead := seedLead(t, ctx, db, "Inlet Co")
	task, err := db.CreateTask(ctx, store.CreateTaskParams{
		CompanyID: lead.ID, Title: "Review", ShowOnDashboard: true,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	for name, body := range map[string]string{
		"missing label":             `{"url":"https://example.com/doc"}`,
		"missing url":               `{"label":"Doc"}`,
		"missing url with material": `{"label":"Doc","material_id":"00000000-0000-0000-0000-0000000000aa"}`,
		"bad url":                   `{"label":"Doc","url":"not a url"}`,
		"unknown type":              `{"label":"Doc","url":"https://example.com/doc","type":"archive"}`,
	} {
		resp := doReq(t, ctx, ts, http.MethodPost,
			"/api/v1/admin/tasks/"+task.ID.String()+"/attachments", admin, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, resp.StatusCode)
		}
		resp.Body.Close()
	}

	// None of the rejected requests left a row behind.
	var count int
	if err := db.Pool().QueryRow(ctx,
		`SELECT count(*) FROM attachments WHERE task_id = $1`, task.ID).Scan(&count); err != nil {
		t.Fatalf("count attachments: %v", err)
	}
	if count != 0 {
		t.Errorf("attachments = %d, want 0 after rejected requests", count)
	}

	// A material_id that references no material is rejected too.
	resp := doReq(t, ctx, ts, http.MethodPost,
		"/api/v1/admin/tasks/"+task.ID.String()+"/attachments", admin,
		`{"label":"Doc","url":"https://example.com/doc","material_id":"00000000-0000-0000-0000-0000000000aa"}`)
	wantStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	// A valid request succeeds with the defaulted type.
	resp = doReq(t, ctx, ts, http.MethodPost,
		"/api/v1/admin/tasks/"+task.ID.String()+"/attachments", admin,
		`{"label":"Doc","url":"https://example.com/doc"}`)
	wantStatus(t, resp, http.StatusCreated)
	var created attachmentResponse
	decodeJSON(t, resp, &created)
	if created.Type != "link" {
		t.Errorf("type = %q, want link (default)", created.Type)
	}
}

func TestCustomerDeleteLeavesRow(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	lead := seedLead(t, ctx, db, "Juniper Co")
	task, err := db.CreateTask(ctx, store.CreateTaskParams{
		CompanyID: lead.ID, Title: "Quarterly review", ShowOnDashboard: true,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	cust := seedCustomer(t, ctx, db, "j@juniper.example", &lead.ID)

	// A customer hitting an admin delete gets 403 even for their own company's row.
	resp := doReq(t, ctx, ts, http.MethodDelete, "/api/v1/admin/tasks/"+task.ID.String(), cust, "")
	wantStatus(t, resp, http.StatusForbidden)
	if msg := errorMessage(t, resp); msg != "Forbidden" {
		t.Errorf("error = %q, want Forbidden", msg)
	}

	// The rejection happened before any store call: the row is intact.
	got, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got == nil {
		t.Fatal("task was deleted by a forbidden request")
	}
}

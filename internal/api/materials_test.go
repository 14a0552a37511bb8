// ABOUTME: Integration tests for materials: admin CRUD, the download-URL
// ABOUTME: issuer's visibility fold, and signed file serving.
package api

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmadsen/coachdesk/internal/store"
	"github.com/jmadsen/coachdesk/internal/testutil"
)

func TestMaterialAdminCRUD(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	admin := seedAdmin(t, ctx, db, "admin@example.com")

	resp := doReq(t, ctx, ts, http.MethodPost, "/api/v1/admin/materials", admin,
		`{"title":"Pricing Guide","storage_path":"guides/pricing.pdf","content_type":"application/pdf"}`)
	wantStatus(t, resp, http.StatusCreated)
	var created materialResponse
	decodeJSON(t, resp, &created)
	if created.Published {
		t.Error("published should default to false")
	}

	// Unpublished drafts appear in the admin list.
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/admin/materials", admin, "")
	wantStatus(t, resp, http.StatusOK)
	var listed []materialResponse
	decodeJSON(t, resp, &listed)
	if len(listed) != 1 {
		t.Fatalf("admin list = %d rows, want 1", len(listed))
	}

	resp = doReq(t, ctx, ts, http.MethodPatch, "/api/v1/admin/materials/"+created.ID, admin,
		`{"published":true}`)
	wantStatus(t, resp, http.StatusOK)
	var updated materialResponse
	decodeJSON(t, resp, &updated)
	if !updated.Published {
		t.Error("published = false after patch")
	}

	resp = doReq(t, ctx, ts, http.MethodDelete, "/api/v1/admin/materials/"+created.ID, admin, "")
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/admin/materials/"+created.ID, admin, "")
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestDownloadURLVisibilityFold(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, _ := newTestServer(t, db)

	lead := seedLead(t, ctx, db, "Echo Co")
	cust := seedCustomer(t, ctx, db, "e@echo.example", &lead.ID)

	published, err := db.CreateMaterial(ctx, store.CreateMaterialParams{
		Title: "Published", StoragePath: "pub.pdf", Published: true,
	})
	if err != nil {
		t.Fatalf("seed published: %v", err)
	}
	draft, err := db.CreateMaterial(ctx, store.CreateMaterialParams{
		Title: "Draft", StoragePath: "draft.pdf",
	})
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	// Published material: customer gets a signed URL.
	resp := doReq(t, ctx, ts, http.MethodGet,
		"/api/v1/materials/"+published.ID.String()+"/download-url", cust, "")
	wantStatus(t, resp, http.StatusOK)
	var out downloadURLResponse
	decodeJSON(t, resp, &out)
	if out.SignedURL == "" {
		t.Fatal("signedUrl is empty")
	}
	if out.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", out.ExpiresIn)
	}

	// Draft and nonexistent materials produce the identical 403.
	for _, id := range []string{draft.ID.String(), "00000000-0000-0000-0000-0000000000cd"} {
		resp := doReq(t, ctx, ts, http.MethodGet, "/api/v1/materials/"+id+"/download-url", cust, "")
		wantStatus(t, resp, http.StatusForbidden)
		if msg := errorMessage(t, resp); msg != "Forbidden" {
			t.Errorf("error = %q, want Forbidden", msg)
		}
	}

	// Anonymous callers get 401, not 403.
	resp = doReq(t, ctx, ts, http.MethodGet,
		"/api/v1/materials/"+published.ID.String()+"/download-url", "", "")
	wantStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	// Portal listing shows only the published material.
	resp = doReq(t, ctx, ts, http.MethodGet, "/api/v1/portal/materials", cust, "")
	wantStatus(t, resp, http.StatusOK)
	var visible []materialResponse
	decodeJSON(t, resp, &visible)
	if len(visible) != 1 || visible[0].Title != "Published" {
		t.Errorf("portal materials = %+v, want only Published", visible)
	}
}

func TestSignedDownloadServing(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	ts, materialsDir := newTestServer(t, db)

	if err := os.WriteFile(filepath.Join(materialsDir, "pub.pdf"), []byte("material bytes"), 0o644); err != nil {
		t.Fatalf("write object: %v", err)
	}
	lead := seedLead(t, ctx, db, "Foxtrot Co")
	cust := seedCustomer(t, ctx, db, "f@foxtrot.example", &lead.ID)
	material, err := db.CreateMaterial(ctx, store.CreateMaterialParams{
		Title: "Guide", StoragePath: "pub.pdf", Published: true,
	})
	if err != nil {
		t.Fatalf("seed material: %v", err)
	}

	resp := doReq(t, ctx, ts, http.MethodGet,
		"/api/v1/materials/"+material.ID.String()+"/download-url", cust, "")
	wantStatus(t, resp, http.StatusOK)
	var out downloadURLResponse
	decodeJSON(t, resp, &out)

	// ExternalURL is empty in tests, so the signed URL is server-relative.
	resp = doReq(t, ctx, ts, http.MethodGet, out.SignedURL, "", "")
	wantStatus(t, resp, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "material bytes" {
		t.Errorf("body = %q", body)
	}

	// Tampered signature is rejected without touching the object store.
	resp = doReq(t, ctx, ts, http.MethodGet, out.SignedURL+"0", "", "")
	wantStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	// Missing query parameters are rejected too.
	resp = doReq(t, ctx, ts, http.MethodGet, "/files/pub.pdf", "", "")
	wantStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

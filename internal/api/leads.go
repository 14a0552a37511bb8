// ABOUTME: Admin HTTP handlers for leads (client companies): CRUD plus the
// ABOUTME: invite action that starts passwordless portal onboarding.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmadsen/coachdesk/internal/auth"
	"github.com/jmadsen/coachdesk/internal/notify"
	"github.com/jmadsen/coachdesk/internal/store"
)

// leadStatuses are the allowed values for leads.status.
var leadStatuses = []any{"new", "contacted", "qualified", "client", "lost"}

// createLeadBody is the JSON request body for POST /api/v1/admin/leads.
type createLeadBody struct {
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

func (b createLeadBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.CompanyName, validation.Required, validation.Length(1, 254)),
		validation.Field(&b.ContactName, validation.Length(0, 254)),
		validation.Field(&b.Email, validation.Required, is.EmailFormat),
		validation.Field(&b.Phone, validation.Length(0, 64)),
		validation.Field(&b.Status, validation.In(leadStatuses...)),
	)
}

// updateLeadBody is the JSON request body for PATCH /api/v1/admin/leads/{lead_id}.
// Absent fields are left unchanged.
type updateLeadBody struct {
	CompanyName *string `json:"company_name"`
	ContactName *string `json:"contact_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

func (b updateLeadBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.CompanyName, validation.NilOrNotEmpty, validation.Length(1, 254)),
		validation.Field(&b.Email, validation.When(b.Email != nil, is.EmailFormat)),
		validation.Field(&b.Status, validation.When(b.Status != nil, validation.In(leadStatuses...))),
	)
}

// leadResponse is the JSON shape for a lead row.
type leadResponse struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toLeadResponse(l *store.Lead) leadResponse {
	return leadResponse{
		ID:          l.ID.String(),
		CompanyName: l.CompanyName,
		ContactName: l.ContactName,
		Email:       l.Email,
		Phone:       l.Phone,
		Status:      l.Status,
		Notes:       l.Notes,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   l.UpdatedAt.Format(time.RFC3339),
	}
}

// urlParamUUID parses the named chi URL parameter as a UUID.
func urlParamUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// decodeBody decodes the request body into v and runs its Validate method.
// Writes the 400 response itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// queryInt32 parses an int32 query parameter, returning def when absent or invalid.
func queryInt32(r *http.Request, name string, def int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}

// createLeadHandler handles POST /api/v1/admin/leads.
func (srv *Server) createLeadHandler(w http.ResponseWriter, r *http.Request) {
	var req createLeadBody
	if !decodeBody(w, r, &req) {
		return
	}

	lead, err := srv.store.CreateLead(r.Context(), store.CreateLeadParams{
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Status:      req.Status,
		Notes:       req.Notes,
	})
	if err != nil {
		writeServerError(w, r, "create lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeadResponse(lead))
}

// listLeadsHandler handles GET /api/v1/admin/leads.
// Supports ?status=, ?q= (company/contact substring), ?limit=, ?offset=.
func (srv *Server) listLeadsHandler(w http.ResponseWriter, r *http.Request) {
	filter := store.LeadFilter{
		Status: r.URL.Query().Get("status"),
		Query:  r.URL.Query().Get("q"),
		Limit:  queryInt32(r, "limit", 100),
		Offset: queryInt32(r, "offset", 0),
	}

	leads, err := srv.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeServerError(w, r, "list leads", err)
		return
	}
	out := make([]leadResponse, 0, len(leads))
	for i := range leads {
		out = append(out, toLeadResponse(&leads[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// getLeadHandler handles GET /api/v1/admin/leads/{lead_id}.
func (srv *Server) getLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	lead, err := srv.store.GetLead(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "get lead", err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

// updateLeadHandler handles PATCH /api/v1/admin/leads/{lead_id}.
func (srv *Server) updateLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req updateLeadBody
	if !decodeBody(w, r, &req) {
		return
	}

	lead, err := srv.store.UpdateLead(r.Context(), id, store.UpdateLeadParams{
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Status:      req.Status,
		Notes:       req.Notes,
	})
	if err != nil {
		writeServerError(w, r, "update lead", err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

// deleteLeadHandler handles DELETE /api/v1/admin/leads/{lead_id}.
// Deletion cascades to the lead's products, sessions, tasks, and invitations.
func (srv *Server) deleteLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	deleted, err := srv.store.DeleteLead(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "delete lead", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// inviteLeadBody is the JSON request body for POST /api/v1/admin/leads/{lead_id}/invite.
// Email is optional; it defaults to the lead's contact email.
type inviteLeadBody struct {
	Email string `json:"email"`
}

func (b inviteLeadBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Email, validation.When(b.Email != "", is.EmailFormat)),
	)
}

// inviteLeadResponse is the JSON response for the invite action. The raw token
// never appears here — it travels only in the emailed link.
type inviteLeadResponse struct {
	InvitationID string `json:"invitation_id"`
	Email        string `json:"email"`
	ExpiresAt    string `json:"expires_at"`
}

// inviteLeadHandler handles POST /api/v1/admin/leads/{lead_id}/invite.
// Creates a passwordless invitation carrying {company_id, role: customer} and
// enqueues the invite email. Re-inviting issues a fresh token.
func (srv *Server) inviteLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req inviteLeadBody
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	lead, err := srv.store.GetLead(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "invite lead: get lead", err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	email := req.Email
	if email == "" {
		email = lead.Email
	}
	if email == "" {
		writeError(w, http.StatusBadRequest, "lead has no email; provide one in the request body")
		return
	}

	rawToken, tokenHash, err := auth.GenerateInviteToken()
	if err != nil {
		writeServerError(w, r, "invite lead: generate token", err)
		return
	}

	inv, err := srv.store.CreateInvitation(r.Context(), lead.ID, email, "customer",
		tokenHash, time.Now().Add(srv.cfg.InviteTTL))
	if err != nil {
		writeServerError(w, r, "invite lead: create invitation", err)
		return
	}

	payload := notify.InvitePayload{
		InvitationID: inv.ID,
		InviteURL:    srv.cfg.PortalOrigin + "/invitations/" + rawToken,
	}
	if err := srv.store.EnqueueJob(r.Context(), notify.InviteQueue, payload); err != nil {
		writeServerError(w, r, "invite lead: enqueue email", err)
		return
	}
	slog.InfoContext(r.Context(), "invitation created",
		"invitation_id", inv.ID, "lead_id", lead.ID)

	writeJSON(w, http.StatusCreated, inviteLeadResponse{
		InvitationID: inv.ID.String(),
		Email:        inv.Email,
		ExpiresAt:    inv.ExpiresAt.Format(time.RFC3339),
	})
}

// ABOUTME: Admin HTTP handlers for coaching sessions scheduled with a lead.
package api

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jmadsen/coachdesk/internal/store"
)

// createSessionBody is the JSON request body for POST /api/v1/admin/leads/{lead_id}/sessions.
type createSessionBody struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Topic       string    `json:"topic"`
	Notes       string    `json:"notes"`
}

func (b createSessionBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.ScheduledAt, validation.Required),
		validation.Field(&b.Topic, validation.Required, validation.Length(1, 254)),
	)
}

// updateSessionBody is the JSON request body for PATCH /api/v1/admin/sessions/{session_id}.
type updateSessionBody struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	Topic       *string    `json:"topic"`
	Notes       *string    `json:"notes"`
}

func (b updateSessionBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Topic, validation.NilOrNotEmpty, validation.Length(1, 254)),
	)
}

// sessionResponse is the JSON shape for a coaching session row.
type sessionResponse struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	ScheduledAt string `json:"scheduled_at"`
	Topic       string `json:"topic"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
}

func toSessionResponse(cs *store.CoachingSession) sessionResponse {
	return sessionResponse{
		ID:          cs.ID.String(),
		CompanyID:   cs.CompanyID.String(),
		ScheduledAt: cs.ScheduledAt.Format(time.RFC3339),
		Topic:       cs.Topic,
		Notes:       cs.Notes,
		CreatedAt:   cs.CreatedAt.Format(time.RFC3339),
	}
}

// createSessionHandler handles POST /api/v1/admin/leads/{lead_id}/sessions.
func (srv *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req createSessionBody
	if !decodeBody(w, r, &req) {
		return
	}

	lead, err := srv.store.GetLead(r.Context(), leadID)
	if err != nil {
		writeServerError(w, r, "create session: get lead", err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	session, err := srv.store.CreateCoachingSession(r.Context(), leadID, req.ScheduledAt, req.Topic, req.Notes)
	if err != nil {
		writeServerError(w, r, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// listSessionsHandler handles GET /api/v1/admin/leads/{lead_id}/sessions.
func (srv *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	sessions, err := srv.store.ListCoachingSessions(r.Context(), leadID)
	if err != nil {
		writeServerError(w, r, "list sessions", err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// updateSessionHandler handles PATCH /api/v1/admin/sessions/{session_id}.
func (srv *Server) updateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "session_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	var req updateSessionBody
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := srv.store.UpdateCoachingSession(r.Context(), id, store.UpdateCoachingSessionParams{
		ScheduledAt: req.ScheduledAt,
		Topic:       req.Topic,
		Notes:       req.Notes,
	})
	if err != nil {
		writeServerError(w, r, "update session", err)
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// deleteSessionHandler handles DELETE /api/v1/admin/sessions/{session_id}.
func (srv *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "session_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	deleted, err := srv.store.DeleteCoachingSession(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "delete session", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

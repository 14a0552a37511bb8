// ABOUTME: Customer portal read handlers. Every read goes through the
// ABOUTME: restricted client; a customer with no company gets empty results.
package api

import (
	"net/http"
)

// portalCompanyHandler handles GET /api/v1/portal/company.
// Returns the caller's own company, or null when no company is linked yet.
func (srv *Server) portalCompanyHandler(w http.ResponseWriter, r *http.Request) {
	prof, ok := profileFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	lead, err := srv.store.GetOwnLead(r.Context(), prof.Scope())
	if err != nil {
		writeServerError(w, r, "portal: get company", err)
		return
	}
	if lead == nil {
		// Authenticated but not yet linked to a company — not an error.
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

// portalProductsHandler handles GET /api/v1/portal/products.
func (srv *Server) portalProductsHandler(w http.ResponseWriter, r *http.Request) {
	prof, ok := profileFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	products, err := srv.store.ListOwnProducts(r.Context(), prof.Scope())
	if err != nil {
		writeServerError(w, r, "portal: list products", err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// portalSessionsHandler handles GET /api/v1/portal/sessions.
func (srv *Server) portalSessionsHandler(w http.ResponseWriter, r *http.Request) {
	prof, ok := profileFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessions, err := srv.store.ListOwnSessions(r.Context(), prof.Scope())
	if err != nil {
		writeServerError(w, r, "portal: list sessions", err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// portalTasksHandler handles GET /api/v1/portal/tasks.
func (srv *Server) portalTasksHandler(w http.ResponseWriter, r *http.Request) {
	prof, ok := profileFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tasks, err := srv.store.ListOwnTasks(r.Context(), prof.Scope())
	if err != nil {
		writeServerError(w, r, "portal: list tasks", err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// taskDetailResponse is the JSON shape for a task with its subtasks and attachments.
type taskDetailResponse struct {
	taskResponse
	Subtasks    []subtaskResponse    `json:"subtasks"`
	Attachments []attachmentResponse `json:"attachments"`
}

// portalTaskDetailHandler handles GET /api/v1/portal/tasks/{task_id}.
// A task outside the caller's company yields the same 403 as a nonexistent
// one — the response never confirms that an ID exists.
func (srv *Server) portalTaskDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "task_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	prof, ok := profileFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	detail, err := srv.store.GetOwnTask(r.Context(), prof.Scope(), id)
	if err != nil {
		writeServerError(w, r, "portal: get task", err)
		return
	}
	if detail == nil {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	out := taskDetailResponse{
		taskResponse: toTaskResponse(&detail.Task),
		Subtasks:     make([]subtaskResponse, 0, len(detail.Subtasks)),
		Attachments:  make([]attachmentResponse, 0, len(detail.Attachments)),
	}
	for i := range detail.Subtasks {
		out.Subtasks = append(out.Subtasks, toSubtaskResponse(&detail.Subtasks[i]))
	}
	for i := range detail.Attachments {
		out.Attachments = append(out.Attachments, toAttachmentResponse(&detail.Attachments[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// portalMaterialsHandler handles GET /api/v1/portal/materials.
// Lists published materials only — the restricted client cannot see drafts.
func (srv *Server) portalMaterialsHandler(w http.ResponseWriter, r *http.Request) {
	prof, ok := profileFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	materials, err := srv.store.ListVisibleMaterials(r.Context(), prof.Scope())
	if err != nil {
		writeServerError(w, r, "portal: list materials", err)
		return
	}
	out := make([]materialResponse, 0, len(materials))
	for i := range materials {
		out = append(out, toMaterialResponse(&materials[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

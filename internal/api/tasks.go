// ABOUTME: Admin HTTP handlers for tasks, subtasks, and attachments.
// ABOUTME: Subtasks and attachments inherit company_id from their parent row.
package api

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/jmadsen/coachdesk/internal/store"
)

// ── Tasks ─────────────────────────────────────────────────────────────────────

// createTaskBody is the JSON request body for POST /api/v1/admin/leads/{lead_id}/tasks.
// show_on_dashboard defaults to true when absent.
type createTaskBody struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Position        int32  `json:"position"`
	ShowOnDashboard *bool  `json:"show_on_dashboard"`
}

func (b createTaskBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.Required, validation.Length(1, 254)),
		validation.Field(&b.Position, validation.Min(0)),
	)
}

// updateTaskBody is the JSON request body for PATCH /api/v1/admin/tasks/{task_id}.
type updateTaskBody struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Position        *int32  `json:"position"`
	ShowOnDashboard *bool   `json:"show_on_dashboard"`
	Done            *bool   `json:"done"`
}

func (b updateTaskBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.NilOrNotEmpty, validation.Length(1, 254)),
	)
}

// taskResponse is the JSON shape for a task row.
type taskResponse struct {
	ID              string `json:"id"`
	CompanyID       string `json:"company_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Position        int32  `json:"position"`
	ShowOnDashboard bool   `json:"show_on_dashboard"`
	Done            bool   `json:"done"`
	CreatedAt       string `json:"created_at"`
}

func toTaskResponse(t *store.Task) taskResponse {
	return taskResponse{
		ID:              t.ID.String(),
		CompanyID:       t.CompanyID.String(),
		Title:           t.Title,
		Description:     t.Description,
		Position:        t.Position,
		ShowOnDashboard: t.ShowOnDashboard,
		Done:            t.Done,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
	}
}

// createTaskHandler handles POST /api/v1/admin/leads/{lead_id}/tasks.
func (srv *Server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req createTaskBody
	if !decodeBody(w, r, &req) {
		return
	}

	lead, err := srv.store.GetLead(r.Context(), leadID)
	if err != nil {
		writeServerError(w, r, "create task: get lead", err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	showOnDashboard := true
	if req.ShowOnDashboard != nil {
		showOnDashboard = *req.ShowOnDashboard
	}
	task, err := srv.store.CreateTask(r.Context(), store.CreateTaskParams{
		CompanyID:       leadID,
		Title:           req.Title,
		Description:     req.Description,
		Position:        req.Position,
		ShowOnDashboard: showOnDashboard,
	})
	if err != nil {
		writeServerError(w, r, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

// listTasksHandler handles GET /api/v1/admin/leads/{lead_id}/tasks.
func (srv *Server) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	tasks, err := srv.store.ListTasks(r.Context(), leadID)
	if err != nil {
		writeServerError(w, r, "list tasks", err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// updateTaskHandler handles PATCH /api/v1/admin/tasks/{task_id}.
func (srv *Server) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "task_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req updateTaskBody
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := srv.store.UpdateTask(r.Context(), id, store.UpdateTaskParams{
		Title:           req.Title,
		Description:     req.Description,
		Position:        req.Position,
		ShowOnDashboard: req.ShowOnDashboard,
		Done:            req.Done,
	})
	if err != nil {
		writeServerError(w, r, "update task", err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// deleteTaskHandler handles DELETE /api/v1/admin/tasks/{task_id}.
// Deletion cascades to the task's subtasks and attachments.
func (srv *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "task_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	deleted, err := srv.store.DeleteTask(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "delete task", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// ── Subtasks ──────────────────────────────────────────────────────────────────

// createSubtaskBody is the JSON request body for POST /api/v1/admin/tasks/{task_id}/subtasks.
type createSubtaskBody struct {
	Title    string     `json:"title"`
	Deadline *time.Time `json:"deadline"`
	Position int32      `json:"position"`
}

func (b createSubtaskBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.Required, validation.Length(1, 254)),
		validation.Field(&b.Position, validation.Min(0)),
	)
}

// updateSubtaskBody is the JSON request body for PATCH /api/v1/admin/subtasks/{subtask_id}.
// Setting clear_deadline removes the deadline; it wins over deadline.
type updateSubtaskBody struct {
	Title         *string    `json:"title"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
	Position      *int32     `json:"position"`
	Done          *bool      `json:"done"`
}

func (b updateSubtaskBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.NilOrNotEmpty, validation.Length(1, 254)),
	)
}

// subtaskResponse is the JSON shape for a subtask row.
type subtaskResponse struct {
	ID        string  `json:"id"`
	TaskID    string  `json:"task_id"`
	CompanyID string  `json:"company_id"`
	Title     string  `json:"title"`
	Deadline  *string `json:"deadline"`
	Position  int32   `json:"position"`
	Done      bool    `json:"done"`
	CreatedAt string  `json:"created_at"`
}

func toSubtaskResponse(st *store.Subtask) subtaskResponse {
	resp := subtaskResponse{
		ID:        st.ID.String(),
		TaskID:    st.TaskID.String(),
		CompanyID: st.CompanyID.String(),
		Title:     st.Title,
		Position:  st.Position,
		Done:      st.Done,
		CreatedAt: st.CreatedAt.Format(time.RFC3339),
	}
	if st.Deadline != nil {
		d := st.Deadline.Format(time.RFC3339)
		resp.Deadline = &d
	}
	return resp
}

// createSubtaskHandler handles POST /api/v1/admin/tasks/{task_id}/subtasks.
func (srv *Server) createSubtaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := urlParamUUID(r, "task_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req createSubtaskBody
	if !decodeBody(w, r, &req) {
		return
	}

	subtask, err := srv.store.CreateSubtask(r.Context(), store.CreateSubtaskParams{
		TaskID:   taskID,
		Title:    req.Title,
		Deadline: req.Deadline,
		Position: req.Position,
	})
	if err != nil {
		writeServerError(w, r, "create subtask", err)
		return
	}
	if subtask == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, toSubtaskResponse(subtask))
}

// updateSubtaskHandler handles PATCH /api/v1/admin/subtasks/{subtask_id}.
func (srv *Server) updateSubtaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "subtask_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subtask id")
		return
	}
	var req updateSubtaskBody
	if !decodeBody(w, r, &req) {
		return
	}

	subtask, err := srv.store.UpdateSubtask(r.Context(), id, store.UpdateSubtaskParams{
		Title:         req.Title,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
		Position:      req.Position,
		Done:          req.Done,
	})
	if err != nil {
		writeServerError(w, r, "update subtask", err)
		return
	}
	if subtask == nil {
		writeError(w, http.StatusNotFound, "subtask not found")
		return
	}
	writeJSON(w, http.StatusOK, toSubtaskResponse(subtask))
}

// deleteSubtaskHandler handles DELETE /api/v1/admin/subtasks/{subtask_id}.
func (srv *Server) deleteSubtaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "subtask_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subtask id")
		return
	}

	deleted, err := srv.store.DeleteSubtask(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "delete subtask", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "subtask not found")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// ── Attachments ───────────────────────────────────────────────────────────────

// createAttachmentBody is the JSON request body for attaching a link to a task
// or subtask. type defaults to "link"; material_id marks a shared-material link.
type createAttachmentBody struct {
	Label      string     `json:"label"`
	URL        string     `json:"url"`
	Type       string     `json:"type"`
	MaterialID *uuid.UUID `json:"material_id"`
	Position   int32      `json:"position"`
}

func (b createAttachmentBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Label, validation.Required, validation.Length(1, 254)),
		validation.Field(&b.URL, validation.Required, is.URL),
		validation.Field(&b.Type, validation.In("link", "material", "video", "document")),
		validation.Field(&b.Position, validation.Min(0)),
	)
}

// attachmentResponse is the JSON shape for an attachment row.
type attachmentResponse struct {
	ID         string  `json:"id"`
	TaskID     *string `json:"task_id"`
	SubtaskID  *string `json:"subtask_id"`
	CompanyID  string  `json:"company_id"`
	Label      string  `json:"label"`
	URL        string  `json:"url"`
	Type       string  `json:"type"`
	MaterialID *string `json:"material_id"`
	Position   int32   `json:"position"`
	CreatedAt  string  `json:"created_at"`
}

func toAttachmentResponse(a *store.Attachment) attachmentResponse {
	resp := attachmentResponse{
		ID:        a.ID.String(),
		CompanyID: a.CompanyID.String(),
		Label:     a.Label,
		URL:       a.URL,
		Type:      a.Type,
		Position:  a.Position,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.TaskID != nil {
		s := a.TaskID.String()
		resp.TaskID = &s
	}
	if a.SubtaskID != nil {
		s := a.SubtaskID.String()
		resp.SubtaskID = &s
	}
	if a.MaterialID != nil {
		s := a.MaterialID.String()
		resp.MaterialID = &s
	}
	return resp
}

// createTaskAttachmentHandler handles POST /api/v1/admin/tasks/{task_id}/attachments.
func (srv *Server) createTaskAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := urlParamUUID(r, "task_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	srv.createAttachment(w, r, store.CreateAttachmentParams{TaskID: &taskID})
}

// createSubtaskAttachmentHandler handles POST /api/v1/admin/subtasks/{subtask_id}/attachments.
func (srv *Server) createSubtaskAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	subtaskID, ok := urlParamUUID(r, "subtask_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid subtask id")
		return
	}
	srv.createAttachment(w, r, store.CreateAttachmentParams{SubtaskID: &subtaskID})
}

func (srv *Server) createAttachment(w http.ResponseWriter, r *http.Request, params store.CreateAttachmentParams) {
	var req createAttachmentBody
	if !decodeBody(w, r, &req) {
		return
	}

	// A material attachment must point at an existing material.
	if req.MaterialID != nil {
		material, err := srv.store.GetMaterial(r.Context(), *req.MaterialID)
		if err != nil {
			writeServerError(w, r, "create attachment: get material", err)
			return
		}
		if material == nil {
			writeError(w, http.StatusBadRequest, "material_id does not reference an existing material")
			return
		}
	}

	params.Label = req.Label
	params.URL = req.URL
	params.Type = req.Type
	params.MaterialID = req.MaterialID
	params.Position = req.Position

	attachment, err := srv.store.CreateAttachment(r.Context(), params)
	if err != nil {
		writeServerError(w, r, "create attachment", err)
		return
	}
	if attachment == nil {
		writeError(w, http.StatusNotFound, "parent not found")
		return
	}
	writeJSON(w, http.StatusCreated, toAttachmentResponse(attachment))
}

// deleteAttachmentHandler handles DELETE /api/v1/admin/attachments/{attachment_id}.
func (srv *Server) deleteAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "attachment_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	deleted, err := srv.store.DeleteAttachment(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "delete attachment", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

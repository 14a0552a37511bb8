// ABOUTME: HTTP handlers for shared materials: admin CRUD plus the download-URL
// ABOUTME: issuer available to any authenticated caller for visible materials.
package api

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jmadsen/coachdesk/internal/storage"
	"github.com/jmadsen/coachdesk/internal/store"
)

// createMaterialBody is the JSON request body for POST /api/v1/admin/materials.
type createMaterialBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StoragePath string `json:"storage_path"`
	ContentType string `json:"content_type"`
	Published   bool   `json:"published"`
}

func (b createMaterialBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.Required, validation.Length(1, 254)),
		validation.Field(&b.StoragePath, validation.Required, validation.Length(1, 1024)),
	)
}

// updateMaterialBody is the JSON request body for PATCH /api/v1/admin/materials/{material_id}.
type updateMaterialBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Published   *bool   `json:"published"`
}

func (b updateMaterialBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.NilOrNotEmpty, validation.Length(1, 254)),
	)
}

// materialResponse is the JSON shape for a material row. storage_path is an
// internal locator, not a URL — downloads go through the signed-URL issuer.
type materialResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StoragePath string `json:"storage_path"`
	ContentType string `json:"content_type"`
	Published   bool   `json:"published"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toMaterialResponse(m *store.Material) materialResponse {
	return materialResponse{
		ID:          m.ID.String(),
		Title:       m.Title,
		Description: m.Description,
		StoragePath: m.StoragePath,
		ContentType: m.ContentType,
		Published:   m.Published,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   m.UpdatedAt.Format(time.RFC3339),
	}
}

// createMaterialHandler handles POST /api/v1/admin/materials.
func (srv *Server) createMaterialHandler(w http.ResponseWriter, r *http.Request) {
	var req createMaterialBody
	if !decodeBody(w, r, &req) {
		return
	}

	material, err := srv.store.CreateMaterial(r.Context(), store.CreateMaterialParams{
		Title:       req.Title,
		Description: req.Description,
		StoragePath: req.StoragePath,
		ContentType: req.ContentType,
		Published:   req.Published,
	})
	if err != nil {
		writeServerError(w, r, "create material", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMaterialResponse(material))
}

// listMaterialsHandler handles GET /api/v1/admin/materials.
// Includes unpublished materials — this is the admin view.
func (srv *Server) listMaterialsHandler(w http.ResponseWriter, r *http.Request) {
	materials, err := srv.store.ListMaterials(r.Context())
	if err != nil {
		writeServerError(w, r, "list materials", err)
		return
	}
	out := make([]materialResponse, 0, len(materials))
	for i := range materials {
		out = append(out, toMaterialResponse(&materials[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// getMaterialHandler handles GET /api/v1/admin/materials/{material_id}.
func (srv *Server) getMaterialHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "material_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid material id")
		return
	}

	material, err := srv.store.GetMaterial(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "get material", err)
		return
	}
	if material == nil {
		writeError(w, http.StatusNotFound, "material not found")
		return
	}
	writeJSON(w, http.StatusOK, toMaterialResponse(material))
}

// updateMaterialHandler handles PATCH /api/v1/admin/materials/{material_id}.
func (srv *Server) updateMaterialHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "material_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid material id")
		return
	}
	var req updateMaterialBody
	if !decodeBody(w, r, &req) {
		return
	}

	material, err := srv.store.UpdateMaterial(r.Context(), id, store.UpdateMaterialParams{
		Title:       req.Title,
		Description: req.Description,
		Published:   req.Published,
	})
	if err != nil {
		writeServerError(w, r, "update material", err)
		return
	}
	if material == nil {
		writeError(w, http.StatusNotFound, "material not found")
		return
	}
	writeJSON(w, http.StatusOK, toMaterialResponse(material))
}

// deleteMaterialHandler handles DELETE /api/v1/admin/materials/{material_id}.
// Removes the metadata row only; the stored object is garbage-collected out of band.
func (srv *Server) deleteMaterialHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "material_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid material id")
		return
	}

	deleted, err := srv.store.DeleteMaterial(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "delete material", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "material not found")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// downloadURLResponse is the JSON response for the download-URL issuer.
type downloadURLResponse struct {
	SignedURL string `json:"signedUrl"`
	ExpiresIn int    `json:"expires_in"`
}

// downloadURLHandler handles GET /api/v1/materials/{material_id}/download-url.
// Available to any authenticated caller. The visibility read goes through the
// restricted client: a material that is unpublished or nonexistent yields the
// same 403, so the response never reveals whether the ID exists.
func (srv *Server) downloadURLHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "material_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid material id")
		return
	}
	prof, ok := profileFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	material, err := srv.store.GetVisibleMaterial(r.Context(), prof.Scope(), id)
	if err != nil {
		writeServerError(w, r, "download url: get material", err)
		return
	}
	if material == nil {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	writeJSON(w, http.StatusOK, downloadURLResponse{
		SignedURL: srv.signer.Sign(material.StoragePath, time.Now()),
		ExpiresIn: int(storage.DownloadTTL.Seconds()),
	})
}

// ABOUTME: Admin HTTP handlers for lead products (services sold to a company).
package api

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jmadsen/coachdesk/internal/store"
)

// createProductBody is the JSON request body for POST /api/v1/admin/leads/{lead_id}/products.
type createProductBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (b createProductBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.Required, validation.Length(1, 254)),
		validation.Field(&b.Status, validation.In("active", "paused", "completed")),
	)
}

// productResponse is the JSON shape for a lead product row.
type productResponse struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toProductResponse(p *store.LeadProduct) productResponse {
	return productResponse{
		ID:          p.ID.String(),
		CompanyID:   p.CompanyID.String(),
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// createProductHandler handles POST /api/v1/admin/leads/{lead_id}/products.
func (srv *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req createProductBody
	if !decodeBody(w, r, &req) {
		return
	}

	lead, err := srv.store.GetLead(r.Context(), leadID)
	if err != nil {
		writeServerError(w, r, "create product: get lead", err)
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	product, err := srv.store.CreateLeadProduct(r.Context(), leadID, req.Name, req.Description, req.Status)
	if err != nil {
		writeServerError(w, r, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// listProductsHandler handles GET /api/v1/admin/leads/{lead_id}/products.
func (srv *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlParamUUID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	products, err := srv.store.ListLeadProducts(r.Context(), leadID)
	if err != nil {
		writeServerError(w, r, "list products", err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// updateProductBody is the JSON request body for PATCH /api/v1/admin/products/{product_id}.
// Absent fields are left unchanged.
type updateProductBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (b updateProductBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.NilOrNotEmpty, validation.Length(1, 254)),
		validation.Field(&b.Status, validation.In("active", "paused", "completed")),
	)
}

// updateProductHandler handles PATCH /api/v1/admin/products/{product_id}.
func (srv *Server) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "product_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req updateProductBody
	if !decodeBody(w, r, &req) {
		return
	}

	product, err := srv.store.UpdateLeadProduct(r.Context(), id, store.UpdateLeadProductParams{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		writeServerError(w, r, "update product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// deleteProductHandler handles DELETE /api/v1/admin/products/{product_id}.
func (srv *Server) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamUUID(r, "product_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	deleted, err := srv.store.DeleteLeadProduct(r.Context(), id)
	if err != nil {
		writeServerError(w, r, "delete product", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// ABOUTME: JSON response helpers shared by all chi handlers.
// ABOUTME: Error bodies follow the fixed {"error": "..."} contract.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody is the JSON error envelope for every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// successBody is the JSON body for mutations that return no row.
type successBody struct {
	Success bool `json:"success"`
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

// writeError writes {"error": msg} with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServerError logs err (internal detail never reaches the caller) and
// responds 500 with a generic message.
func writeServerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.ErrorContext(r.Context(), op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

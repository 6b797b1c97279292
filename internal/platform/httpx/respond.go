// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details. Permission, Scope and
// FactoryID carry machine-readable diagnostics for authorization failures.
type ProblemDetail struct {
	Type       string `json:"type,omitempty"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Permission string `json:"permission,omitempty"`
	Scope      string `json:"scope,omitempty"`
	FactoryID  string `json:"factory_id,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// PermissionDenied sends a 403 problem carrying the permission code and scope
// that failed so the caller can render a useful message.
func PermissionDenied(w http.ResponseWriter, permission, scope string) {
	JSON(w, http.StatusForbidden, ProblemDetail{
		Title:      "Forbidden",
		Status:     http.StatusForbidden,
		Detail:     "missing required permission",
		Permission: permission,
		Scope:      scope,
	})
}

// FactoryDenied sends a 403 problem for a factory outside the caller's allowed set.
func FactoryDenied(w http.ResponseWriter, factoryID string) {
	JSON(w, http.StatusForbidden, ProblemDetail{
		Title:     "Factory Scope Violation",
		Status:    http.StatusForbidden,
		Detail:    "requested factory is not in the allowed set",
		FactoryID: factoryID,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

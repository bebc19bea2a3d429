// Package handlers exposes the billing services over JSON.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diewo77/billing-core/internal/auth"
	"github.com/diewo77/billing-core/internal/httpx"
	"github.com/diewo77/billing-core/internal/services"
	"github.com/diewo77/billing-core/internal/validation"
	"github.com/go-chi/chi/v5"
)

// owner returns the acting user id. Routes are mounted behind auth.RequireAuth.
func owner(r *http.Request) uint {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

// pathID parses a positive id URL parameter, writing a 404 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return 0, false
	}
	return uint(id), true
}

// decode reads the request body, writing a 400 invalid_json on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func invalidRequest(w http.ResponseWriter, r *http.Request, v validation.Violations) {
	httpx.WriteError(w, r, &services.ValidationError{Message: "validation failed", Fields: v})
}

// parseInt reads an integral json.Number; empty means zero.
func parseInt(n json.Number) (int, bool) {
	if n == "" {
		return 0, true
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, false
	}
	return i, true
}

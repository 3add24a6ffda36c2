package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/skyvault/drivedash/internal/auth/google"
)

// writeJSON renders v with the standard headers. Encoding failures at this
// point can only be logged by the caller's middleware; headers are gone.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// userFromRequest resolves the acting user from the request. Single-user
// deployments omit the parameter and get the default identity.
func userFromRequest(r *http.Request) string {
	if user := r.URL.Query().Get("user"); user != "" {
		return user
	}
	return google.DefaultUserID
}

// pageParams parses page/limit query parameters with sane defaults.
func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}

package handlers

import (
	"net/http"

	"github.com/skyvault/drivedash/internal/db"
	"gorm.io/gorm"
)

// GetAPIKeyHandler returns the dashboard API key.
func GetAPIKeyHandler(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"apiKey": db.GetAPIKey(gdb)})
	}
}

// RegenerateAPIKeyHandler rotates the dashboard API key. Existing clients
// are cut off immediately.
func RegenerateAPIKeyHandler(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"apiKey": db.RegenerateAPIKey(gdb)})
	}
}

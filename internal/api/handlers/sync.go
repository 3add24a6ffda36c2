package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skyvault/drivedash/internal/syncer"
	"gorm.io/gorm"
)

// SyncAllHandler runs a full sync pass over the user's active accounts and
// returns the settled report. Partial failure is still a 200: the report
// carries per-account outcomes.
func SyncAllHandler(orch *syncer.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := orch.SyncAll(r.Context(), userFromRequest(r))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"summary": report.Summary(),
			"report":  report,
		})
	}
}

// SyncAccountHandler syncs a single account by id.
func SyncAccountHandler(orch *syncer.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		report, err := orch.SyncAccount(r.Context(), accountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "account not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "sync failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"summary": report.Summary(),
			"report":  report,
		})
	}
}

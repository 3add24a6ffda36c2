package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skyvault/drivedash/internal/analytics"
)

// DuplicatesHandler returns the user's duplicate groups across all accounts,
// paginated after the full computation so pages are consistent.
func DuplicatesHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := agg.GlobalDuplicates(userFromRequest(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute duplicates")
			return
		}
		page, limit := pageParams(r)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"groups":         analytics.PageGroups(groups, page, limit),
			"totalGroups":    len(groups),
			"duplicateFiles": analytics.DuplicateFileCount(groups),
			"wastedBytes":    analytics.WastedSpace(groups),
			"page":           page,
			"limit":          limit,
		})
	}
}

// AccountDuplicatesHandler scopes duplicate detection to one account's
// mirrored files.
func AccountDuplicatesHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		groups, err := agg.AccountDuplicates(userFromRequest(r), accountID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute duplicates")
			return
		}
		page, limit := pageParams(r)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"groups":      analytics.PageGroups(groups, page, limit),
			"totalGroups": len(groups),
			"wastedBytes": analytics.WastedSpace(groups),
			"page":        page,
			"limit":       limit,
		})
	}
}

// StatsHandler assembles the dashboard stats payload. Stale quota caches are
// refreshed inline, so this call may briefly hit the remote API.
func StatsHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := agg.Dashboard(r.Context(), userFromRequest(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skyvault/drivedash/internal/accounts"
	"github.com/skyvault/drivedash/internal/auth/token"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/upstream"
	"gorm.io/gorm"
)

type accountView struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName"`
	ConnectionStatus string    `json:"connectionStatus"`
	UsedBytes        int64     `json:"usedBytes"`
	TotalBytes       int64     `json:"totalBytes"`
	FileCount        int64     `json:"fileCount"`
	LastSync         time.Time `json:"lastSync"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AccountsHandler lists the user's linked accounts with health and cached
// quota figures. All statuses are included so the UI can prompt reconnection.
func AccountsHandler(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userFromRequest(r)

		var accts []models.LinkedAccount
		if err := gdb.Where("user_id = ?", userID).Order("created_at").Find(&accts).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list accounts")
			return
		}

		views := make([]accountView, 0, len(accts))
		for _, acct := range accts {
			var fileCount int64
			gdb.Model(&models.MirroredFile{}).Where("account_id = ?", acct.ID).Count(&fileCount)
			views = append(views, accountView{
				ID:               acct.ID,
				Email:            acct.Email,
				DisplayName:      acct.DisplayName,
				ConnectionStatus: acct.ConnectionStatus,
				UsedBytes:        acct.UsedBytes,
				TotalBytes:       acct.TotalBytes,
				FileCount:        fileCount,
				LastSync:         acct.LastSync,
				CreatedAt:        acct.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": views})
	}
}

// UnlinkAccountHandler removes a linked account and all of its mirrored
// files. The remote grant is not revoked here; the user does that from their
// Google security settings.
func UnlinkAccountHandler(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		if err := accounts.Unlink(gdb, accountID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "account not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to unlink account")
			return
		}
		log.Printf("🗑️ Unlinked account %s", accountID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// DisconnectAccountHandler pauses syncing for an account without discarding
// its credentials or mirror rows.
func DisconnectAccountHandler(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := loadAccount(w, gdb, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		if err := accounts.MarkDisconnected(gdb, &acct); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to disconnect account")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "connectionStatus": acct.ConnectionStatus})
	}
}

// ReconnectAccountHandler resumes a user-disconnected account. Revoked
// accounts get a 409 pointing at the re-link flow instead.
func ReconnectAccountHandler(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := loadAccount(w, gdb, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		if err := accounts.Reconnect(gdb, &acct); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "connectionStatus": acct.ConnectionStatus})
	}
}

func loadAccount(w http.ResponseWriter, gdb *gorm.DB, accountID string) (models.LinkedAccount, bool) {
	var acct models.LinkedAccount
	if err := gdb.First(&acct, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to load account")
		}
		return acct, false
	}
	return acct, true
}

// RefreshAccountHandler forces a token exchange for one account. A terminal
// auth failure surfaces as 401 with the account marked for reconnection.
func RefreshAccountHandler(guard *token.Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		err := guard.Refresh(r.Context(), accountID)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Token refreshed"})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		var ae *upstream.AuthError
		if errors.As(err, &ae) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":     "authorization revoked, account must be re-linked",
				"accountId": ae.AccountID,
				"email":     ae.Email,
			})
			return
		}
		writeError(w, http.StatusBadGateway, "token refresh failed")
	}
}

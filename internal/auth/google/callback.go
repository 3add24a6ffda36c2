package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/skyvault/drivedash/internal/db/models"
	"gorm.io/gorm"
)

// HandleCallback processes the OAuth callback from Google and creates or
// updates the LinkedAccount. Re-linking the same Google account updates the
// existing row and restores it to active, which is the only way out of the
// revoked state.
func HandleCallback(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := ParseState(r.URL.Query().Get("state"))
		if !ok {
			http.Error(w, "Invalid state token", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")

		// Dynamically construct redirect URL from the request
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		redirectURL := fmt.Sprintf("%s://%s/auth/google/callback", scheme, r.Host)

		config := GetOAuthConfig(redirectURL)

		token, err := config.Exchange(context.Background(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("Token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		// Fetch profile from Google; the subject id keys the account.
		client := config.Client(context.Background(), token)
		resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get user info: %v", err), http.StatusInternalServerError)
			return
		}
		defer resp.Body.Close()

		var userInfo struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
			http.Error(w, fmt.Sprintf("Failed to decode user info: %v", err), http.StatusInternalServerError)
			return
		}

		// Preserve the internal id and refresh token when re-linking.
		var existing models.LinkedAccount
		accountID := uuid.New().String()
		refreshToken := token.RefreshToken
		err = gdb.Where("user_id = ? AND remote_account_id = ?", userID, userInfo.ID).First(&existing).Error
		if err == nil {
			accountID = existing.ID
			if refreshToken == "" {
				refreshToken = existing.RefreshToken
			}
		}

		account := models.LinkedAccount{
			ID:               accountID,
			UserID:           userID,
			RemoteAccountID:  userInfo.ID,
			Email:            userInfo.Email,
			DisplayName:      userInfo.Name,
			AccessToken:      token.AccessToken,
			RefreshToken:     refreshToken,
			TokenExpiry:      token.Expiry,
			ConnectionStatus: models.StatusActive,
		}
		if err == nil {
			// Keep the cached quota and sync stamps from the previous link.
			account.UsedBytes = existing.UsedBytes
			account.TotalBytes = existing.TotalBytes
			account.LastFetched = existing.LastFetched
			account.LastSync = existing.LastSync
			account.CreatedAt = existing.CreatedAt
		}

		if err := gdb.Save(&account).Error; err != nil {
			http.Error(w, fmt.Sprintf("Failed to save account: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta http-equiv="refresh" content="3;url=/">
	<title>Drive Linked</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		.success { color: #4ade80; }
		.redirect { color: #9ca3af; margin-top: 20px; }
	</style>
</head>
<body>
	<h1 class="success">✅ Drive Linked!</h1>
	<p><strong>Email:</strong> %s</p>
	<p><strong>User:</strong> %s</p>
	<p class="redirect">Redirecting to dashboard in 3 seconds...</p>
</body>
</html>`, userInfo.Email, userID)
	}
}

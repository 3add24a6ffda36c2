package google

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// stateToken is used to protect against CSRF attacks
var stateToken string

func init() {
	b := make([]byte, 16)
	rand.Read(b)
	stateToken = hex.EncodeToString(b)
}

// DefaultUserID is used when the linking flow is started without an explicit
// dashboard user. Session handling is layered on top by the deployment.
const DefaultUserID = "default"

// isPrivateIP checks if the host is a private/local IP address
func isPrivateIP(host string) bool {
	hostOnly := host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		hostOnly = host[:idx]
	}

	if hostOnly == "localhost" || hostOnly == "127.0.0.1" {
		return false // localhost doesn't require device_id
	}

	ip := net.ParseIP(hostOnly)
	if ip == nil {
		return false
	}

	return ip.IsPrivate()
}

// HandleLogin initiates the Google OAuth linking flow by redirecting to
// Google's consent page. The dashboard user id rides along in the state.
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = DefaultUserID
	}

	// Dynamically construct redirect URL from the request
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	redirectURL := fmt.Sprintf("%s://%s/auth/google/callback", scheme, r.Host)

	config := GetOAuthConfig(redirectURL)

	// Offline access + forced approval so Google returns a refresh token even
	// when the account was linked before.
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	}

	// Google requires device_id and device_name for private IP addresses
	if isPrivateIP(r.Host) {
		deviceID := make([]byte, 16)
		rand.Read(deviceID)
		opts = append(opts,
			oauth2.SetAuthURLParam("device_id", hex.EncodeToString(deviceID)),
			oauth2.SetAuthURLParam("device_name", "DriveDash"),
		)
	}

	url := config.AuthCodeURL(stateToken+":"+userID, opts...)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// ParseState validates the CSRF token and extracts the dashboard user id.
func ParseState(state string) (userID string, ok bool) {
	token, user, found := strings.Cut(state, ":")
	if !found || token != stateToken || user == "" {
		return "", false
	}
	return user, true
}

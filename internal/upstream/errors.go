package upstream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skyvault/drivedash/internal/db/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// AuthError marks a terminal credential failure for one account: the stored
// grant can no longer authenticate and the user must re-link. Carries enough
// identity for the caller to prompt reconnection for the right account.
type AuthError struct {
	AccountID string
	Email     string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("account %s (%s): authorization revoked: %v", e.Email, e.AccountID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// oauthErrorCodes are the RFC 6749 error codes that indicate the grant
// itself is dead rather than a transient provider problem.
var oauthErrorCodes = map[string]bool{
	"invalid_grant":       true,
	"invalid_client":      true,
	"unauthorized_client": true,
}

// permanentMarkers is the substring fallback for providers that bury the
// error code inside free text. Status/error codes are checked first.
var permanentMarkers = []string{
	"invalid_grant",
	"invalid_client",
	"unauthorized_client",
	"token has been expired or revoked",
	"revoked",
}

// IsAuthFailure reports whether err is a terminal credential failure.
// Structured codes (oauth2 token endpoint error code, googleapi HTTP status)
// are trusted first; substring matching on provider text is only a fallback.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode != "" {
			return oauthErrorCodes[re.ErrorCode]
		}
		return containsPermanentMarker(string(re.Body))
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		// 401 means the credential no longer authenticates. 403 covers quota
		// and permission problems, which are transient from our perspective.
		return ge.Code == 401
	}

	return containsPermanentMarker(err.Error())
}

func containsPermanentMarker(s string) bool {
	msg := strings.ToLower(s)
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WrapAccountError classifies err for one account: auth failures become
// *AuthError, everything else keeps its type but gains the account identity.
func WrapAccountError(acct models.LinkedAccount, err error) error {
	if err == nil {
		return nil
	}
	if IsAuthFailure(err) {
		return &AuthError{AccountID: acct.ID, Email: acct.Email, Err: err}
	}
	return fmt.Errorf("account %s (%s): %w", acct.Email, acct.ID, err)
}

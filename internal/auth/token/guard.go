package token

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/skyvault/drivedash/internal/accounts"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/upstream"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// Store persists rotated tokens for an account. The guard calls Set
// explicitly on every rotation instead of mutating shared account objects
// through an implicit event listener.
type Store interface {
	Set(accountID string, tok *oauth2.Token) error
}

// GormStore writes rotated tokens onto the LinkedAccount row.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) Set(accountID string, tok *oauth2.Token) error {
	updates := map[string]interface{}{
		"access_token": tok.AccessToken,
		"token_expiry": tok.Expiry,
	}
	// Persist rotated refresh token if provided (RFC 6749 compliance)
	if tok.RefreshToken != "" {
		updates["refresh_token"] = tok.RefreshToken
	}
	return s.DB.Model(&models.LinkedAccount{}).Where("id = ?", accountID).Updates(updates).Error
}

// Guard hands out authenticated Drive clients for one logical operation,
// keeping tokens fresh and classifying exchange failures. A successful call
// may silently rewrite the account's stored access token; callers must
// re-read the row if they need the current value.
type Guard struct {
	db    *gorm.DB
	cfg   *oauth2.Config
	store Store
}

// NewGuard creates a guard backed by the given OAuth config and a
// gorm-backed token store.
func NewGuard(gdb *gorm.DB, cfg *oauth2.Config) *Guard {
	return &Guard{db: gdb, cfg: cfg, store: &GormStore{DB: gdb}}
}

// DriveFor returns a Drive client whose token source refreshes and persists
// tokens as needed. Revoked accounts and accounts without a refresh token
// short-circuit with an auth error rather than attempting a doomed exchange.
func (g *Guard) DriveFor(ctx context.Context, acct *models.LinkedAccount) (*drive.Service, error) {
	if acct.ConnectionStatus == models.StatusRevoked || acct.RefreshToken == "" {
		return nil, &upstream.AuthError{
			AccountID: acct.ID,
			Email:     acct.Email,
			Err:       errors.New("no usable credentials, account must be re-linked"),
		}
	}

	seed := &oauth2.Token{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
		Expiry:       acct.TokenExpiry,
	}
	src := &rotatingSource{
		guard: g,
		acct:  *acct,
		src:   oauth2.ReuseTokenSource(seed, g.cfg.TokenSource(ctx, seed)),
		last:  seed,
	}
	return drive.NewService(ctx, option.WithTokenSource(src))
}

// Refresh forces a token exchange for the account and persists the result
// synchronously. Auth failures revoke the account.
func (g *Guard) Refresh(ctx context.Context, accountID string) error {
	var acct models.LinkedAccount
	if err := g.db.First(&acct, "id = ?", accountID).Error; err != nil {
		return err
	}
	if acct.ConnectionStatus == models.StatusRevoked || acct.RefreshToken == "" {
		return &upstream.AuthError{
			AccountID: acct.ID,
			Email:     acct.Email,
			Err:       errors.New("no usable credentials, account must be re-linked"),
		}
	}

	// Expired seed forces an exchange against the token endpoint.
	seed := &oauth2.Token{
		RefreshToken: acct.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	tok, err := g.cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		if upstream.IsAuthFailure(err) {
			if merr := accounts.MarkRevoked(g.db, &acct); merr != nil {
				log.Printf("⚠️ Failed to mark %s revoked: %v", acct.Email, merr)
			}
			return &upstream.AuthError{AccountID: acct.ID, Email: acct.Email, Err: err}
		}
		return upstream.WrapAccountError(acct, err)
	}

	if err := g.store.Set(acct.ID, tok); err != nil {
		return err
	}
	log.Printf("✅ Refreshed token for %s (expires %s)", acct.Email, tok.Expiry.Format(time.RFC3339))
	return nil
}

// rotatingSource wraps the oauth2 source so rotated tokens are persisted
// without blocking the in-flight API call, and exchange failures are
// classified with account identity attached.
type rotatingSource struct {
	guard *Guard
	acct  models.LinkedAccount
	src   oauth2.TokenSource
	mu    sync.Mutex
	last  *oauth2.Token
}

func (s *rotatingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		if upstream.IsAuthFailure(err) {
			acct := s.acct
			if merr := accounts.MarkRevoked(s.guard.db, &acct); merr != nil {
				log.Printf("⚠️ Failed to mark %s revoked: %v", acct.Email, merr)
			}
			return nil, &upstream.AuthError{AccountID: acct.ID, Email: acct.Email, Err: err}
		}
		return nil, err
	}

	s.mu.Lock()
	rotated := tok.AccessToken != s.last.AccessToken
	if rotated {
		s.last = tok
	}
	s.mu.Unlock()

	if rotated {
		go func(accountID, email string, tok oauth2.Token) {
			if err := s.guard.store.Set(accountID, &tok); err != nil {
				log.Printf("⚠️ Failed to persist rotated token for %s: %v", email, err)
				return
			}
			log.Printf("🔄 Rotated access token for %s", email)
		}(s.acct.ID, s.acct.Email, *tok)
	}
	return tok, nil
}

package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/upstream"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:token_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.LinkedAccount{}, &models.MirroredFile{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func seedAccount(t *testing.T, gdb *gorm.DB) *models.LinkedAccount {
	t.Helper()
	acct := &models.LinkedAccount{
		ID:               "acc-1",
		UserID:           "user-1",
		RemoteAccountID:  "remote-1",
		Email:            "a@example.com",
		AccessToken:      "stale-access",
		RefreshToken:     "refresh-1",
		TokenExpiry:      time.Now().Add(-time.Hour),
		ConnectionStatus: models.StatusActive,
	}
	if err := gdb.Create(acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

func tokenEndpoint(t *testing.T, handler http.HandlerFunc) *oauth2.Config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &oauth2.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL},
	}
}

func TestRefresh_PersistsRotatedToken(t *testing.T) {
	gdb := newTestDB(t)
	seedAccount(t, gdb)

	cfg := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`)
	})

	guard := NewGuard(gdb, cfg)
	if err := guard.Refresh(context.Background(), "acc-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var stored models.LinkedAccount
	gdb.First(&stored, "id = ?", "acc-1")
	if stored.AccessToken != "fresh-access" {
		t.Errorf("access token not persisted, got %q", stored.AccessToken)
	}
	if stored.RefreshToken != "refresh-2" {
		t.Errorf("rotated refresh token not persisted, got %q", stored.RefreshToken)
	}
	if !stored.TokenExpiry.After(time.Now()) {
		t.Errorf("expiry not updated: %v", stored.TokenExpiry)
	}
}

func TestRefresh_InvalidGrantRevokesAccount(t *testing.T) {
	gdb := newTestDB(t)
	seedAccount(t, gdb)

	// Mirrored files must survive revocation untouched.
	if err := gdb.Create(&models.MirroredFile{
		ID: "file-1", UserID: "user-1", AccountID: "acc-1", RemoteID: "r1", Name: "doc.txt", Size: 10,
	}).Error; err != nil {
		t.Fatalf("seed file: %v", err)
	}

	cfg := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
	})

	guard := NewGuard(gdb, cfg)
	err := guard.Refresh(context.Background(), "acc-1")
	var ae *upstream.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *upstream.AuthError, got %v", err)
	}
	if ae.Email != "a@example.com" {
		t.Errorf("auth error should carry account identity, got %+v", ae)
	}

	var stored models.LinkedAccount
	gdb.First(&stored, "id = ?", "acc-1")
	if stored.ConnectionStatus != models.StatusRevoked {
		t.Errorf("expected revoked, got %s", stored.ConnectionStatus)
	}
	if stored.AccessToken != "" || stored.RefreshToken != "" {
		t.Errorf("tokens must be cleared on revocation, got %q / %q", stored.AccessToken, stored.RefreshToken)
	}

	var fileCount int64
	gdb.Model(&models.MirroredFile{}).Where("account_id = ?", "acc-1").Count(&fileCount)
	if fileCount != 1 {
		t.Errorf("mirrored files must survive revocation, got %d rows", fileCount)
	}
}

func TestRefresh_TransientErrorKeepsAccountActive(t *testing.T) {
	gdb := newTestDB(t)
	seedAccount(t, gdb)

	cfg := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream blew up", http.StatusInternalServerError)
	})

	guard := NewGuard(gdb, cfg)
	err := guard.Refresh(context.Background(), "acc-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *upstream.AuthError
	if errors.As(err, &ae) {
		t.Fatalf("500 from token endpoint must not classify as auth: %v", err)
	}

	var stored models.LinkedAccount
	gdb.First(&stored, "id = ?", "acc-1")
	if stored.ConnectionStatus != models.StatusActive {
		t.Errorf("transient failure must not change status, got %s", stored.ConnectionStatus)
	}
	if stored.RefreshToken == "" {
		t.Error("transient failure must not clear tokens")
	}
}

func TestDriveFor_RevokedShortCircuits(t *testing.T) {
	gdb := newTestDB(t)
	acct := seedAccount(t, gdb)
	acct.ConnectionStatus = models.StatusRevoked
	acct.RefreshToken = ""

	calls := 0
	cfg := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "should not be called", http.StatusInternalServerError)
	})

	guard := NewGuard(gdb, cfg)
	_, err := guard.DriveFor(context.Background(), acct)
	var ae *upstream.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected auth error for revoked account, got %v", err)
	}
	if calls != 0 {
		t.Errorf("revoked account must not reach the token endpoint, got %d calls", calls)
	}
}

func TestRotatingSource_PersistsWithoutBlocking(t *testing.T) {
	gdb := newTestDB(t)
	seedAccount(t, gdb)

	cfg := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"rotated-access","token_type":"Bearer","expires_in":3600}`)
	})

	guard := NewGuard(gdb, cfg)
	seed := &oauth2.Token{RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Minute)}
	src := &rotatingSource{
		guard: guard,
		acct:  models.LinkedAccount{ID: "acc-1", Email: "a@example.com"},
		src:   cfg.TokenSource(context.Background(), seed),
		last:  seed,
	}

	tok, err := src.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "rotated-access" {
		t.Fatalf("unexpected token %q", tok.AccessToken)
	}

	// Persistence is async; poll until the row reflects the rotation.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var stored models.LinkedAccount
		gdb.First(&stored, "id = ?", "acc-1")
		if stored.AccessToken == "rotated-access" {
			// Refresh token was omitted by the endpoint and must be preserved.
			if stored.RefreshToken != "refresh-1" {
				t.Errorf("refresh token must survive rotation, got %q", stored.RefreshToken)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("rotated token never persisted, still %q", stored.AccessToken)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

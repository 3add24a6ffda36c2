package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skyvault/drivedash/internal/db/models"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// fakeDriveServer serves a paginated files.list from canned pages keyed by
// pageToken ("" selects the first page).
func fakeDriveServer(t *testing.T, pages map[string]map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("supportsAllDrives") != "true" || q.Get("includeItemsFromAllDrives") != "true" {
			t.Errorf("listing must include shared drives, got query %s", r.URL.RawQuery)
		}
		page, ok := pages[q.Get("pageToken")]
		if !ok {
			t.Errorf("unexpected page token %q", q.Get("pageToken"))
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
}

func newTestService(t *testing.T, srv *httptest.Server) *drive.Service {
	t.Helper()
	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("create drive service: %v", err)
	}
	return svc
}

func TestListing_PaginationCompleteness(t *testing.T) {
	pages := map[string]map[string]interface{}{
		"": {
			"nextPageToken": "p2",
			"files": []map[string]interface{}{
				{"id": "f1", "name": "one.txt", "mimeType": "text/plain", "size": "10"},
				{"id": "f2", "name": "two.txt", "mimeType": "text/plain", "size": "20"},
			},
		},
		"p2": {
			"nextPageToken": "p3",
			"files": []map[string]interface{}{
				{"id": "f3", "name": "three.txt", "mimeType": "text/plain", "size": "30"},
			},
		},
		"p3": {
			"files": []map[string]interface{}{
				{"id": "f4", "name": "four.txt", "mimeType": "text/plain", "size": "40"},
			},
		},
	}
	srv := fakeDriveServer(t, pages)
	defer srv.Close()

	f := NewFetcher(2, 100)
	records, err := f.Listing(context.Background(), newTestService(t, srv), models.LinkedAccount{ID: "acc-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}

	wantIDs := []string{"f1", "f2", "f3", "f4"}
	if len(records) != len(wantIDs) {
		t.Fatalf("expected %d records, got %d", len(wantIDs), len(records))
	}
	for i, id := range wantIDs {
		if records[i].RemoteID != id {
			t.Errorf("record %d: expected %s, got %s (page order must be preserved)", i, id, records[i].RemoteID)
		}
	}
}

func TestListing_NormalizationDefaults(t *testing.T) {
	pages := map[string]map[string]interface{}{
		"": {
			"files": []map[string]interface{}{
				// Folder with almost everything absent.
				{"id": "folder-1", "mimeType": "application/vnd.google-apps.folder"},
			},
		},
	}
	srv := fakeDriveServer(t, pages)
	defer srv.Close()

	f := NewFetcher(100, 100)
	records, err := f.Listing(context.Background(), newTestService(t, srv), models.LinkedAccount{ID: "acc-1"})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Name != "" {
		t.Errorf("missing name should default to empty, got %q", rec.Name)
	}
	if rec.Size != 0 {
		t.Errorf("missing size should default to 0, got %d", rec.Size)
	}
	if rec.Parents == nil || rec.Owners == nil {
		t.Error("missing arrays should default to empty, not nil")
	}
	if rec.Starred || rec.Trashed || rec.Shared {
		t.Error("missing flags should default to false")
	}
}

func TestListing_MidPaginationFailureCarriesIdentity(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"nextPageToken": "p2",
				"files":         []map[string]interface{}{{"id": "f1", "name": "one.txt"}},
			})
			return
		}
		http.Error(w, `{"error":{"code":500,"message":"Backend Error"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(1, 100)
	acct := models.LinkedAccount{ID: "acc-9", Email: "mid@example.com"}
	_, err := f.Listing(context.Background(), newTestService(t, srv), acct)
	if err == nil {
		t.Fatal("expected mid-pagination error")
	}
	if IsAuthFailure(err) {
		t.Errorf("500 must classify as transient, got auth: %v", err)
	}
	if want := "mid@example.com"; !strings.Contains(err.Error(), want) {
		t.Errorf("error should name the account, got %v", err)
	}
}

func TestQuota_ParsesStorageFigures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"storageQuota": map[string]string{"usage": "123456", "limit": "15000000000"},
		})
	}))
	defer srv.Close()

	f := NewFetcher(100, 100)
	used, total, err := f.Quota(context.Background(), newTestService(t, srv), models.LinkedAccount{ID: "acc-1"})
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if used != 123456 || total != 15000000000 {
		t.Errorf("expected 123456/15000000000, got %d/%d", used, total)
	}
}

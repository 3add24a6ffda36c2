package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/skyvault/drivedash/internal/analytics"
	"github.com/skyvault/drivedash/internal/api/handlers"
	"github.com/skyvault/drivedash/internal/api/middleware"
	"github.com/skyvault/drivedash/internal/auth/google"
	"github.com/skyvault/drivedash/internal/auth/token"
	"github.com/skyvault/drivedash/internal/config"
	"github.com/skyvault/drivedash/internal/db"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/syncer"
	"github.com/skyvault/drivedash/internal/upstream"
	"github.com/skyvault/drivedash/internal/version"
)

func main() {
	cfg, err := config.Load(os.Getenv("DRIVEDASH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if !google.HasOAuthCredentials() {
		log.Printf("⚠️ GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET not set, account linking is disabled")
	}

	guard := token.NewGuard(database, google.GetOAuthConfig(""))
	fetcher := upstream.NewFetcher(cfg.PageSize, cfg.DriveQPS)

	fetch := func(ctx context.Context, acct models.LinkedAccount) ([]upstream.FileRecord, error) {
		svc, err := guard.DriveFor(ctx, &acct)
		if err != nil {
			return nil, err
		}
		return fetcher.Listing(ctx, svc, acct)
	}
	orch := syncer.NewOrchestrator(database, fetch, syncer.NewLocks())

	quota := func(ctx context.Context, acct models.LinkedAccount) (int64, int64, error) {
		svc, err := guard.DriveFor(ctx, &acct)
		if err != nil {
			return 0, 0, err
		}
		return fetcher.Quota(ctx, svc, acct)
	}
	agg := analytics.NewAggregator(database, nil, quota, cfg.QuotaTTL)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Optional admin auth middleware
	adminPassword := cfg.AdminPassword
	optionalAdminAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminPassword == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, pass, ok := r.BasicAuth()
			if !ok || pass != adminPassword {
				w.Header().Set("WWW-Authenticate", `Basic realm="DriveDash Admin"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// OAuth flow
	r.Get("/auth/google/login", google.HandleLogin)
	r.Get("/auth/google/callback", google.HandleCallback(database))

	// Admin routes (protected if an admin password is set)
	r.Route("/admin", func(r chi.Router) {
		r.Use(optionalAdminAuth)
		r.Get("/config/apikey", handlers.GetAPIKeyHandler(database))
		r.Post("/config/apikey/regenerate", handlers.RegenerateAPIKeyHandler(database))
	})

	// API routes (API key required)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(database))

		// Account management
		r.Get("/accounts", handlers.AccountsHandler(database))
		r.Delete("/accounts/{id}", handlers.UnlinkAccountHandler(database))
		r.Post("/accounts/{id}/refresh", handlers.RefreshAccountHandler(guard))
		r.Post("/accounts/{id}/disconnect", handlers.DisconnectAccountHandler(database))
		r.Post("/accounts/{id}/reconnect", handlers.ReconnectAccountHandler(database))
		r.Post("/accounts/{id}/sync", handlers.SyncAccountHandler(orch))
		r.Get("/accounts/{id}/duplicates", handlers.AccountDuplicatesHandler(agg))

		// Sync
		r.Post("/sync", handlers.SyncAllHandler(orch))

		// Files
		r.Get("/files", handlers.FilesHandler(database))
		r.Delete("/files/{id}", handlers.DeleteFileHandler(database, guard))

		// Analytics
		r.Get("/duplicates", handlers.DuplicatesHandler(agg))
		r.Get("/stats", handlers.StatsHandler(agg))
	})

	log.Printf("📦 DriveDash %s (%s)", version.Version, version.Commit)
	log.Printf("🚀 Listening on http://%s", cfg.Addr())
	if err := http.ListenAndServe(cfg.Addr(), r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

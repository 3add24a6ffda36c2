package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/skyvault/drivedash/internal/accounts"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/logging"
	"github.com/skyvault/drivedash/internal/upstream"
	"github.com/skyvault/drivedash/internal/util"
	"gorm.io/gorm"
)

const maxReportedErrorLen = 512

// FetchFunc produces one account's full normalized listing. Production wires
// this to the token guard + Drive fetcher; tests inject fakes.
type FetchFunc func(ctx context.Context, acct models.LinkedAccount) ([]upstream.FileRecord, error)

// RevokedAccount identifies an account that needs reconnection.
type RevokedAccount struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AccountError records one account's non-auth sync failure.
type AccountError struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Error     string `json:"error"`
}

// Report is the outcome of one orchestrated sync pass. It is always
// produced, even when every account failed.
type Report struct {
	SuccessCount    int              `json:"successCount"`
	FailedCount     int              `json:"failedCount"`
	RevokedAccounts []RevokedAccount `json:"revokedAccounts"`
	Errors          []AccountError   `json:"errors"`
}

// Summary renders the user-facing one-liner.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d accounts synced, %d failed, %d need reconnection",
		r.SuccessCount, r.FailedCount, len(r.RevokedAccounts))
}

func newReport() *Report {
	return &Report{
		RevokedAccounts: []RevokedAccount{},
		Errors:          []AccountError{},
	}
}

// Orchestrator fans one fetch→upsert pipeline out per active account,
// isolating per-account failures and settling all pipelines before
// assembling the report.
type Orchestrator struct {
	db    *gorm.DB
	fetch FetchFunc
	locks *Locks
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(gdb *gorm.DB, fetch FetchFunc, locks *Locks) *Orchestrator {
	return &Orchestrator{db: gdb, fetch: fetch, locks: locks}
}

// SyncAll mirrors every active account of the user. Per-account failures are
// recorded in the report and never abort sibling pipelines.
func (o *Orchestrator) SyncAll(ctx context.Context, userID string) *Report {
	runID := logging.GenerateRequestID()
	ctx = logging.WithRequestID(ctx, runID)

	report := newReport()

	accts, err := accounts.ListActive(o.db, userID)
	if err != nil {
		log.Printf("❌ [%s] Failed to list accounts for user %s: %v", runID, userID, err)
		return report
	}
	log.Printf("🔄 [%s] Syncing %d accounts for user %s", runID, len(accts), userID)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, acct := range accts {
		wg.Add(1)
		go func(acct models.LinkedAccount) {
			defer wg.Done()
			err := o.syncOne(ctx, acct)
			mu.Lock()
			defer mu.Unlock()
			record(report, acct, err)
		}(acct)
	}
	wg.Wait()

	log.Printf("✅ [%s] %s", runID, report.Summary())
	return report
}

// SyncAccount mirrors a single account by id, regardless of the user-level
// fan-out. Revoked accounts are reported as needing reconnection without
// touching the network.
func (o *Orchestrator) SyncAccount(ctx context.Context, accountID string) (*Report, error) {
	var acct models.LinkedAccount
	if err := o.db.First(&acct, "id = ?", accountID).Error; err != nil {
		return nil, err
	}

	report := newReport()
	if acct.ConnectionStatus == models.StatusRevoked {
		report.RevokedAccounts = append(report.RevokedAccounts, RevokedAccount{ID: acct.ID, Email: acct.Email})
		return report, nil
	}

	record(report, acct, o.syncOne(ctx, acct))
	return report, nil
}

// syncOne runs the fetch→upsert pipeline for one account under its lock.
func (o *Orchestrator) syncOne(ctx context.Context, acct models.LinkedAccount) error {
	if !o.locks.TryAcquire(acct.ID) {
		return fmt.Errorf("sync already in progress for %s", acct.Email)
	}
	defer o.locks.Release(acct.ID)

	records, err := o.fetch(ctx, acct)
	if err != nil {
		var ae *upstream.AuthError
		if errors.As(err, &ae) {
			// The guard normally revokes during the exchange; marking here as
			// well covers auth failures surfacing mid-listing.
			if merr := accounts.MarkRevoked(o.db, &acct); merr != nil {
				log.Printf("⚠️ Failed to mark %s revoked: %v", acct.Email, merr)
			}
			return err
		}
		if merr := accounts.MarkError(o.db, &acct, err); merr != nil {
			log.Printf("⚠️ Failed to mark %s errored: %v", acct.Email, merr)
		}
		return err
	}

	if err := UpsertListing(o.db, acct, records); err != nil {
		if merr := accounts.MarkError(o.db, &acct, err); merr != nil {
			log.Printf("⚠️ Failed to mark %s errored: %v", acct.Email, merr)
		}
		return err
	}

	return accounts.MarkSynced(o.db, &acct)
}

// record files one pipeline outcome into the report. Callers hold the
// report's lock when fanning out.
func record(report *Report, acct models.LinkedAccount, err error) {
	if err == nil {
		report.SuccessCount++
		return
	}
	var ae *upstream.AuthError
	if errors.As(err, &ae) {
		report.RevokedAccounts = append(report.RevokedAccounts, RevokedAccount{ID: ae.AccountID, Email: ae.Email})
		return
	}
	report.FailedCount++
	report.Errors = append(report.Errors, AccountError{
		AccountID: acct.ID,
		Email:     acct.Email,
		Error:     util.TruncateLog(err.Error(), maxReportedErrorLen),
	})
}

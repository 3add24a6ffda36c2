package syncer

import (
	"context"
	"fmt"
	"testing"

	"github.com/skyvault/drivedash/internal/analytics"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/upstream"
)

// Full pipeline over two accounts: fan-out sync, idempotent re-sync, then
// duplicate detection and dashboard stats over the resulting mirror.
func TestSyncThenAnalyze(t *testing.T) {
	gdb := newTestDB(t)
	seedAccounts(t, gdb, "acc-1", "acc-2")

	// Each account carries 10 files. "shared-report.pdf" and "team-photo.jpg"
	// exist in both accounts with identical sizes; everything else is unique.
	listings := map[string][]upstream.FileRecord{
		"acc-1": {
			makeRecord("a1-1", "shared-report.pdf", 5000),
			makeRecord("a1-2", "team-photo.jpg", 2000),
		},
		"acc-2": {
			makeRecord("a2-1", "shared-report.pdf", 5000),
			makeRecord("a2-2", "team-photo.jpg", 2000),
		},
	}
	for _, acctID := range []string{"acc-1", "acc-2"} {
		for i := 0; i < 8; i++ {
			listings[acctID] = append(listings[acctID],
				makeRecord(fmt.Sprintf("%s-u%d", acctID, i), fmt.Sprintf("%s-notes-%d.txt", acctID, i), int64(100+i)))
		}
	}

	fetch := func(ctx context.Context, acct models.LinkedAccount) ([]upstream.FileRecord, error) {
		return listings[acct.ID], nil
	}

	o := NewOrchestrator(gdb, fetch, NewLocks())
	report := o.SyncAll(context.Background(), "user-1")
	if report.SuccessCount != 2 || report.FailedCount != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var total int64
	gdb.Model(&models.MirroredFile{}).Count(&total)
	if total != 20 {
		t.Fatalf("expected 20 mirrored files, got %d", total)
	}

	// Re-sync is a no-op on row count.
	o.SyncAll(context.Background(), "user-1")
	gdb.Model(&models.MirroredFile{}).Count(&total)
	if total != 20 {
		t.Fatalf("re-sync changed row count to %d", total)
	}

	agg := analytics.NewAggregator(gdb, nil, nil, 0)

	groups, err := agg.GlobalDuplicates("user-1")
	if err != nil {
		t.Fatalf("GlobalDuplicates: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 cross-account groups, got %d", len(groups))
	}
	if groups[0].Name != "shared-report.pdf" || groups[0].TotalWastedSpace != 5000 {
		t.Errorf("largest group wrong: %+v", groups[0])
	}
	if groups[1].Name != "team-photo.jpg" || groups[1].TotalWastedSpace != 2000 {
		t.Errorf("second group wrong: %+v", groups[1])
	}

	// Per account there are no duplicates at all; the global view is the
	// only one that pairs the copies.
	for _, acctID := range []string{"acc-1", "acc-2"} {
		scoped, err := agg.AccountDuplicates("user-1", acctID)
		if err != nil {
			t.Fatalf("AccountDuplicates(%s): %v", acctID, err)
		}
		if len(scoped) != 0 {
			t.Errorf("expected no per-account groups for %s, got %d", acctID, len(scoped))
		}
	}

	d, err := agg.Dashboard(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Summary.TotalFiles != 20 || d.Summary.DuplicateGroups != 2 || d.Summary.WastedBytes != 7000 {
		t.Errorf("dashboard rollup wrong: %+v", d.Summary)
	}
}

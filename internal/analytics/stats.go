package analytics

import (
	"context"
	"log"
	"time"

	"github.com/skyvault/drivedash/internal/db/models"
	"gorm.io/gorm"
)

// QuotaFunc fetches fresh storage usage/limit for one account from the
// remote API. Production wires this through the token guard; tests inject
// fakes.
type QuotaFunc func(ctx context.Context, acct models.LinkedAccount) (used, total int64, err error)

// Aggregator is the read-side of the mirror: duplicate groups and storage
// statistics, plus the TTL-gated quota cache refresh. It never mutates
// mirrored files.
type Aggregator struct {
	db       *gorm.DB
	groupKey GroupKeyFunc
	quota    QuotaFunc
	ttl      time.Duration
}

// NewAggregator wires the aggregator. A nil groupKey falls back to the
// name+size default; a nil quota disables remote refresh (cached figures are
// served as-is).
func NewAggregator(gdb *gorm.DB, groupKey GroupKeyFunc, quota QuotaFunc, ttl time.Duration) *Aggregator {
	if groupKey == nil {
		groupKey = DefaultGroupKey
	}
	return &Aggregator{db: gdb, groupKey: groupKey, quota: quota, ttl: ttl}
}

// Summary is the headline dashboard block.
type Summary struct {
	Accounts        int   `json:"accounts"`
	ActiveAccounts  int   `json:"activeAccounts"`
	TotalFiles      int64 `json:"totalFiles"`
	UsedBytes       int64 `json:"usedBytes"`
	TotalBytes      int64 `json:"totalBytes"`
	StarredCount    int64 `json:"starredCount"`
	SharedCount     int64 `json:"sharedCount"`
	TrashedCount    int64 `json:"trashedCount"`
	DuplicateGroups int   `json:"duplicateGroups"`
	WastedBytes     int64 `json:"wastedBytes"`
}

// DriveStats is the per-account dashboard row.
type DriveStats struct {
	AccountID  string    `json:"accountId"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	UsedBytes  int64     `json:"usedBytes"`
	TotalBytes int64     `json:"totalBytes"`
	FileCount  int64     `json:"fileCount"`
	LastSync   time.Time `json:"lastSync"`
}

// TypeStat is one mime type's slice of the corpus.
type TypeStat struct {
	MimeType  string  `json:"mimeType"`
	Count     int64   `json:"count"`
	TotalSize int64   `json:"totalSize"`
	Percent   float64 `json:"percent"`
}

// FileStats groups the file-level breakdowns.
type FileStats struct {
	Types []TypeStat `json:"types"`
}

// Dashboard is the full stats payload.
type Dashboard struct {
	Summary   Summary      `json:"summary"`
	Drives    []DriveStats `json:"drives"`
	FileStats FileStats    `json:"fileStats"`
}

// Dashboard assembles storage statistics for the user. Quota figures come
// from the accounts' TTL-bounded cache (refreshed here when stale), never
// recomputed from mirrored file sizes; the mirror only feeds the file-level
// breakdowns.
func (a *Aggregator) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	var accts []models.LinkedAccount
	if err := a.db.Where("user_id = ?", userID).Order("created_at").Find(&accts).Error; err != nil {
		return nil, err
	}

	d := &Dashboard{Drives: []DriveStats{}, FileStats: FileStats{Types: []TypeStat{}}}
	d.Summary.Accounts = len(accts)

	for i := range accts {
		a.refreshQuota(ctx, &accts[i])

		var fileCount int64
		if err := a.db.Model(&models.MirroredFile{}).
			Where("account_id = ? AND trashed = ? AND mime_type <> ?", accts[i].ID, false, models.FolderMimeType).
			Count(&fileCount).Error; err != nil {
			return nil, err
		}

		if accts[i].ConnectionStatus == models.StatusActive {
			d.Summary.ActiveAccounts++
		}
		d.Summary.UsedBytes += accts[i].UsedBytes
		d.Summary.TotalBytes += accts[i].TotalBytes
		d.Summary.TotalFiles += fileCount

		d.Drives = append(d.Drives, DriveStats{
			AccountID:  accts[i].ID,
			Email:      accts[i].Email,
			Status:     accts[i].ConnectionStatus,
			UsedBytes:  accts[i].UsedBytes,
			TotalBytes: accts[i].TotalBytes,
			FileCount:  fileCount,
			LastSync:   accts[i].LastSync,
		})
	}

	for _, flag := range []struct {
		column string
		dest   *int64
	}{
		{"starred", &d.Summary.StarredCount},
		{"shared", &d.Summary.SharedCount},
		{"trashed", &d.Summary.TrashedCount},
	} {
		if err := a.db.Model(&models.MirroredFile{}).
			Where("user_id = ? AND "+flag.column+" = ?", userID, true).
			Count(flag.dest).Error; err != nil {
			return nil, err
		}
	}

	types, err := a.typeDistribution(userID, d.Summary.TotalFiles)
	if err != nil {
		return nil, err
	}
	d.FileStats.Types = types

	groups, err := a.GlobalDuplicates(userID)
	if err != nil {
		return nil, err
	}
	d.Summary.DuplicateGroups = len(groups)
	d.Summary.WastedBytes = WastedSpace(groups)

	return d, nil
}

// typeDistribution groups non-trashed, non-folder files by mime type,
// ordered by count descending.
func (a *Aggregator) typeDistribution(userID string, totalFiles int64) ([]TypeStat, error) {
	var types []TypeStat
	err := a.db.Model(&models.MirroredFile{}).
		Select("mime_type, COUNT(*) AS count, COALESCE(SUM(size), 0) AS total_size").
		Where("user_id = ? AND trashed = ? AND mime_type <> ?", userID, false, models.FolderMimeType).
		Group("mime_type").
		Order("count DESC, mime_type").
		Scan(&types).Error
	if err != nil {
		return nil, err
	}
	for i := range types {
		if totalFiles > 0 {
			types[i].Percent = float64(types[i].Count) / float64(totalFiles) * 100
		}
	}
	if types == nil {
		types = []TypeStat{}
	}
	return types, nil
}

// refreshQuota updates the account's quota cache when it is older than the
// TTL. Failures are tolerated: the stale cache keeps serving and sibling
// accounts refresh independently.
func (a *Aggregator) refreshQuota(ctx context.Context, acct *models.LinkedAccount) {
	if a.quota == nil {
		return
	}
	if time.Since(acct.LastFetched) < a.ttl {
		return
	}

	used, total, err := a.quota(ctx, *acct)
	if err != nil {
		log.Printf("⚠️ Quota refresh failed for %s: %v", acct.Email, err)
		return
	}

	now := time.Now()
	err = a.db.Model(&models.LinkedAccount{}).Where("id = ?", acct.ID).Updates(map[string]interface{}{
		"used_bytes":   used,
		"total_bytes":  total,
		"last_fetched": now,
	}).Error
	if err != nil {
		log.Printf("⚠️ Failed to persist quota for %s: %v", acct.Email, err)
		return
	}
	acct.UsedBytes = used
	acct.TotalBytes = total
	acct.LastFetched = now
}

// Package analytics computes duplicate groups and storage statistics over
// the mirrored file store. Everything here is read-only with respect to the
// mirror; only the accounts' quota cache is refreshed, under a TTL.
package analytics

import (
	"sort"
	"strconv"

	"github.com/skyvault/drivedash/internal/db/models"
)

// GroupKeyFunc derives the grouping key for duplicate detection. The default
// groups by name and size; a future content-hash key is a drop-in
// replacement here rather than a rewrite.
type GroupKeyFunc func(f models.MirroredFile) string

// DefaultGroupKey groups by exact name and byte size.
func DefaultGroupKey(f models.MirroredFile) string {
	return f.Name + "|" + strconv.FormatInt(f.Size, 10)
}

// DuplicateFile is one member of a duplicate group, annotated with its
// owning account.
type DuplicateFile struct {
	ID           string `json:"id"`
	RemoteID     string `json:"remoteId"`
	AccountID    string `json:"accountId"`
	AccountEmail string `json:"accountEmail"`
	MimeType     string `json:"mimeType"`
	WebViewLink  string `json:"webViewLink,omitempty"`
}

// DuplicateGroup is a set of ≥2 mirrored files sharing the same group key.
// Wasted space is what deleting all but one member would recover.
type DuplicateGroup struct {
	Key              string          `json:"key"`
	Name             string          `json:"name"`
	Size             int64           `json:"size"`
	Files            []DuplicateFile `json:"files"`
	TotalWastedSpace int64           `json:"totalWastedSpace"`
}

// GlobalDuplicates groups all of the user's mirrored files regardless of
// owning account. This is the authoritative figure for dashboards: summing
// per-account counts would double-count groups whose members span accounts.
// Groups come back sorted by wasted space descending, ties broken by key.
func (a *Aggregator) GlobalDuplicates(userID string) ([]DuplicateGroup, error) {
	files, err := a.candidateFiles(userID, "")
	if err != nil {
		return nil, err
	}
	return a.group(files)
}

// AccountDuplicates groups only the files mirrored from one account.
func (a *Aggregator) AccountDuplicates(userID, accountID string) ([]DuplicateGroup, error) {
	files, err := a.candidateFiles(userID, accountID)
	if err != nil {
		return nil, err
	}
	return a.group(files)
}

// candidateFiles loads the user's non-trashed, non-folder mirrored files,
// ordered by id for deterministic grouping.
func (a *Aggregator) candidateFiles(userID, accountID string) ([]models.MirroredFile, error) {
	q := a.db.Where("user_id = ? AND trashed = ? AND mime_type <> ?",
		userID, false, models.FolderMimeType)
	if accountID != "" {
		q = q.Where("account_id = ?", accountID)
	}
	var files []models.MirroredFile
	if err := q.Order("id").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func (a *Aggregator) group(files []models.MirroredFile) ([]DuplicateGroup, error) {
	emails, err := a.accountEmails()
	if err != nil {
		return nil, err
	}

	byKey := make(map[string][]models.MirroredFile)
	for _, f := range files {
		key := a.groupKey(f)
		byKey[key] = append(byKey[key], f)
	}

	groups := make([]DuplicateGroup, 0)
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}
		g := DuplicateGroup{
			Key:              key,
			Name:             members[0].Name,
			Size:             members[0].Size,
			TotalWastedSpace: int64(len(members)-1) * members[0].Size,
		}
		for _, m := range members {
			g.Files = append(g.Files, DuplicateFile{
				ID:           m.ID,
				RemoteID:     m.RemoteID,
				AccountID:    m.AccountID,
				AccountEmail: emails[m.AccountID],
				MimeType:     m.MimeType,
				WebViewLink:  m.WebViewLink,
			})
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalWastedSpace != groups[j].TotalWastedSpace {
			return groups[i].TotalWastedSpace > groups[j].TotalWastedSpace
		}
		return groups[i].Key < groups[j].Key
	})
	return groups, nil
}

func (a *Aggregator) accountEmails() (map[string]string, error) {
	var accts []models.LinkedAccount
	if err := a.db.Select("id", "email").Find(&accts).Error; err != nil {
		return nil, err
	}
	emails := make(map[string]string, len(accts))
	for _, acct := range accts {
		emails[acct.ID] = acct.Email
	}
	return emails, nil
}

// PageGroups applies page/limit to an already-sorted group slice. Paging
// happens after the full computation so concurrent writes cannot shift
// entries between pages of one response.
func PageGroups(groups []DuplicateGroup, page, limit int) []DuplicateGroup {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(groups) {
		return []DuplicateGroup{}
	}
	end := start + limit
	if end > len(groups) {
		end = len(groups)
	}
	return groups[start:end]
}

// WastedSpace sums the wasted space over all groups.
func WastedSpace(groups []DuplicateGroup) int64 {
	var total int64
	for _, g := range groups {
		total += g.TotalWastedSpace
	}
	return total
}

// DuplicateFileCount counts member files across all groups.
func DuplicateFileCount(groups []DuplicateGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Files)
	}
	return n
}

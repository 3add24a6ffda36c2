package models

import "time"

// FolderMimeType identifies Drive folders; they carry size 0 and are
// excluded from duplicate detection.
const FolderMimeType = "application/vnd.google-apps.folder"

// MirroredFile is the local copy of one remote file's metadata for one
// account. The remote Drive stays authoritative; rows may be stale between
// syncs. Uniqueness is per (account, remote id) — the same file shared into
// two accounts legitimately yields two rows.
type MirroredFile struct {
	ID        string `gorm:"primaryKey"` // UUID
	UserID    string `gorm:"index;index:idx_user_name_size"`
	AccountID string `gorm:"uniqueIndex:idx_account_remote"`
	RemoteID  string `gorm:"uniqueIndex:idx_account_remote"`

	Name     string `gorm:"index:idx_user_name_size"`
	MimeType string
	Size     int64 `gorm:"index:idx_user_name_size"` // bytes, 0 for folders

	RemoteCreatedAt  time.Time
	RemoteModifiedAt time.Time

	Parents string // JSON array of parent folder ids
	Owners  string // JSON array of owner display names

	Starred bool
	Trashed bool
	Shared  bool

	WebViewLink    string
	WebContentLink string
	IconLink       string
	ThumbnailLink  string
	Description    string

	// IsDuplicate was set by a legacy marking sweep and is not maintained by
	// sync; duplicate groups are computed on demand instead.
	IsDuplicate bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

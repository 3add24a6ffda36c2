package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/upstream"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 200

// mirrorUpdateColumns are the fields overwritten when a row already exists.
// The incoming record fully replaces the stored metadata; there is no
// per-field merge, which keeps repeated syncs idempotent.
var mirrorUpdateColumns = []string{
	"user_id", "name", "mime_type", "size",
	"remote_created_at", "remote_modified_at",
	"parents", "owners",
	"starred", "trashed", "shared",
	"web_view_link", "web_content_link", "icon_link", "thumbnail_link",
	"description", "updated_at",
}

// UpsertListing reconciles one account's normalized listing into the mirror
// as a single transactional bulk write keyed by (account_id, remote_id).
// Either the whole listing lands or none of it does; rows absent from the
// listing are left in place.
func UpsertListing(gdb *gorm.DB, acct models.LinkedAccount, records []upstream.FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]models.MirroredFile, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toMirroredFile(acct, rec))
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "remote_id"}},
			DoUpdates: clause.AssignmentColumns(mirrorUpdateColumns),
		}).CreateInBatches(rows, upsertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("upsert listing for %s: %w", acct.Email, err)
	}
	return nil
}

func toMirroredFile(acct models.LinkedAccount, rec upstream.FileRecord) models.MirroredFile {
	parents, _ := json.Marshal(rec.Parents)
	owners, _ := json.Marshal(rec.Owners)
	return models.MirroredFile{
		ID:               uuid.New().String(),
		UserID:           acct.UserID,
		AccountID:        acct.ID,
		RemoteID:         rec.RemoteID,
		Name:             rec.Name,
		MimeType:         rec.MimeType,
		Size:             rec.Size,
		RemoteCreatedAt:  rec.CreatedAt,
		RemoteModifiedAt: rec.ModifiedAt,
		Parents:          string(parents),
		Owners:           string(owners),
		Starred:          rec.Starred,
		Trashed:          rec.Trashed,
		Shared:           rec.Shared,
		WebViewLink:      rec.WebViewLink,
		WebContentLink:   rec.WebContentLink,
		IconLink:         rec.IconLink,
		ThumbnailLink:    rec.ThumbnailLink,
		Description:      rec.Description,
	}
}

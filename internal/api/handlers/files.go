package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skyvault/drivedash/internal/auth/token"
	"github.com/skyvault/drivedash/internal/db/models"
	"github.com/skyvault/drivedash/internal/upstream"
	"google.golang.org/api/googleapi"
	"gorm.io/gorm"
)

type fileView struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"accountId"`
	RemoteID         string    `json:"remoteId"`
	Name             string    `json:"name"`
	MimeType         string    `json:"mimeType"`
	Size             int64     `json:"size"`
	RemoteModifiedAt time.Time `json:"remoteModifiedAt"`
	Starred          bool      `json:"starred"`
	Trashed          bool      `json:"trashed"`
	Shared           bool      `json:"shared"`
	WebViewLink      string    `json:"webViewLink,omitempty"`
	IconLink         string    `json:"iconLink,omitempty"`
	ThumbnailLink    string    `json:"thumbnailLink,omitempty"`
}

// FilesHandler lists the user's mirrored files, paginated. Ordered by name
// then id so pages are stable across identical names.
func FilesHandler(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userFromRequest(r)
		page, limit := pageParams(r)

		q := gdb.Model(&models.MirroredFile{}).Where("user_id = ?", userID)
		if accountID := r.URL.Query().Get("account"); accountID != "" {
			q = q.Where("account_id = ?", accountID)
		}
		if r.URL.Query().Get("trashed") != "true" {
			q = q.Where("trashed = ?", false)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count files")
			return
		}

		var files []models.MirroredFile
		err := q.Order("name, id").Offset((page - 1) * limit).Limit(limit).Find(&files).Error
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list files")
			return
		}

		views := make([]fileView, 0, len(files))
		for _, f := range files {
			views = append(views, fileView{
				ID:               f.ID,
				AccountID:        f.AccountID,
				RemoteID:         f.RemoteID,
				Name:             f.Name,
				MimeType:         f.MimeType,
				Size:             f.Size,
				RemoteModifiedAt: f.RemoteModifiedAt,
				Starred:          f.Starred,
				Trashed:          f.Trashed,
				Shared:           f.Shared,
				WebViewLink:      f.WebViewLink,
				IconLink:         f.IconLink,
				ThumbnailLink:    f.ThumbnailLink,
			})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"files": views,
			"total": total,
			"page":  page,
			"limit": limit,
		})
	}
}

// DeleteFileHandler deletes the remote file through its owning account, then
// removes the mirror row. The remote delete goes first: losing the row while
// the remote copy survives would just resurface it on the next sync, but the
// reverse would hide a file that still exists.
func DeleteFileHandler(gdb *gorm.DB, guard *token.Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "id")

		var file models.MirroredFile
		if err := gdb.First(&file, "id = ?", fileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "file not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load file")
			return
		}

		var acct models.LinkedAccount
		if err := gdb.First(&acct, "id = ?", file.AccountID).Error; err != nil {
			writeError(w, http.StatusConflict, "owning account no longer linked")
			return
		}

		svc, err := guard.DriveFor(r.Context(), &acct)
		if err != nil {
			writeAuthOrGatewayError(w, err)
			return
		}

		if err := svc.Files.Delete(file.RemoteID).SupportsAllDrives(true).Context(r.Context()).Do(); err != nil {
			var ge *googleapi.Error
			if errors.As(err, &ge) && ge.Code == http.StatusNotFound {
				// Already gone remotely; still drop the mirror row.
				log.Printf("⚠️ Remote file %s already deleted for %s", file.RemoteID, acct.Email)
			} else {
				writeAuthOrGatewayError(w, upstream.WrapAccountError(acct, err))
				return
			}
		}

		if err := gdb.Delete(&models.MirroredFile{}, "id = ?", fileID).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "remote file deleted but mirror row removal failed")
			return
		}
		log.Printf("🗑️ Deleted %s (%s) via %s", file.Name, file.RemoteID, acct.Email)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeAuthOrGatewayError(w http.ResponseWriter, err error) {
	var ae *upstream.AuthError
	if errors.As(err, &ae) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":     "authorization revoked, account must be re-linked",
			"accountId": ae.AccountID,
			"email":     ae.Email,
		})
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

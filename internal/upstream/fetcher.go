package upstream

import (
	"context"
	"time"

	"github.com/skyvault/drivedash/internal/db/models"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// listFields is the field mask for files.list. Only the fields the mirror
// consumes are requested, to bound response size.
const listFields = "nextPageToken, files(id,name,mimeType,size,createdTime,modifiedTime,parents,owners(displayName),starred,trashed,shared,webViewLink,webContentLink,iconLink,thumbnailLink,description)"

const defaultBurst = 5

// FileRecord is the normalized shape of one remote file, ready for upsert.
// Missing optional fields are already defaulted so downstream code never
// branches on absence.
type FileRecord struct {
	RemoteID       string
	Name           string
	MimeType       string
	Size           int64
	CreatedAt      time.Time
	ModifiedAt     time.Time
	Parents        []string
	Owners         []string
	Starred        bool
	Trashed        bool
	Shared         bool
	WebViewLink    string
	WebContentLink string
	IconLink       string
	ThumbnailLink  string
	Description    string
}

// Fetcher materializes file listings and quota figures from the Drive API,
// rate-limiting outbound calls.
type Fetcher struct {
	pageSize int64
	limiter  *rate.Limiter
}

// NewFetcher creates a fetcher with the given listing page size and a
// queries-per-second cap on outbound Drive calls.
func NewFetcher(pageSize int64, qps int) *Fetcher {
	if pageSize <= 0 {
		pageSize = 1000
	}
	if qps <= 0 {
		qps = 10
	}
	return &Fetcher{
		pageSize: pageSize,
		limiter:  rate.NewLimiter(rate.Limit(qps), defaultBurst),
	}
}

// Listing fetches the account's complete file listing, following
// continuation tokens until exhausted. Shared drives are included so one
// mirror spans My Drive and everything shared into the account. The result
// is fully materialized because the upsert stage batches the whole set.
//
// Errors, including mid-pagination ones, are classified and carry the
// account identity so the orchestrator can attribute them.
func (f *Fetcher) Listing(ctx context.Context, svc *drive.Service, acct models.LinkedAccount) ([]FileRecord, error) {
	var out []FileRecord
	pageToken := ""

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, WrapAccountError(acct, err)
		}

		call := svc.Files.List().
			PageSize(f.pageSize).
			Fields(googleapi.Field(listFields)).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Context(ctx).Do()
		if err != nil {
			return nil, WrapAccountError(acct, err)
		}

		for _, rf := range res.Files {
			out = append(out, normalize(rf))
		}

		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

// normalize defaults missing optional remote fields.
func normalize(rf *drive.File) FileRecord {
	rec := FileRecord{
		RemoteID:       rf.Id,
		Name:           rf.Name,
		MimeType:       rf.MimeType,
		Size:           rf.Size,
		Parents:        rf.Parents,
		Starred:        rf.Starred,
		Trashed:        rf.Trashed,
		Shared:         rf.Shared,
		WebViewLink:    rf.WebViewLink,
		WebContentLink: rf.WebContentLink,
		IconLink:       rf.IconLink,
		ThumbnailLink:  rf.ThumbnailLink,
		Description:    rf.Description,
	}
	if rec.Parents == nil {
		rec.Parents = []string{}
	}
	rec.Owners = make([]string, 0, len(rf.Owners))
	for _, o := range rf.Owners {
		if o != nil {
			rec.Owners = append(rec.Owners, o.DisplayName)
		}
	}
	if t, err := time.Parse(time.RFC3339, rf.CreatedTime); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, rf.ModifiedTime); err == nil {
		rec.ModifiedAt = t
	}
	return rec
}

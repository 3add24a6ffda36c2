package upstream

import (
	"context"

	"github.com/skyvault/drivedash/internal/db/models"
	"google.golang.org/api/drive/v3"
)

// Quota returns the account's storage usage and limit from the Drive about
// endpoint. A zero limit means the account has unlimited storage.
func (f *Fetcher) Quota(ctx context.Context, svc *drive.Service, acct models.LinkedAccount) (used, total int64, err error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, 0, WrapAccountError(acct, err)
	}

	about, err := svc.About.Get().
		Fields("storageQuota(usage,limit)").
		Context(ctx).Do()
	if err != nil {
		return 0, 0, WrapAccountError(acct, err)
	}
	if about.StorageQuota == nil {
		return 0, 0, nil
	}
	return about.StorageQuota.Usage, about.StorageQuota.Limit, nil
}

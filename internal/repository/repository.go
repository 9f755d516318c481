package repository

import (
	"context"
	"image"
	"net/url"
	"strings"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/storage"
)

// SheetRepository is the data-access seam between the evaluation service
// and whichever storage backend holds the sheet images.
type SheetRepository interface {
	ValidateSheetURL(imageURL string) error
	FetchSheet(ctx context.Context, imageURL string) (image.Image, error)
}

// FetcherRepository backs SheetRepository with a storage fetcher.
type FetcherRepository struct {
	fetcher storage.SheetFetcher
}

func New(fetcher storage.SheetFetcher) *FetcherRepository {
	return &FetcherRepository{fetcher: fetcher}
}

// ValidateSheetURL rejects URLs the fetcher would fail on anyway, before
// any network round trip.
func (r *FetcherRepository) ValidateSheetURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("image_url is required", nil)
	}
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("image_url is not a valid URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return apperrors.NewValidationError("image_url must use http or https", nil)
	}
	if parsed.Host == "" {
		return apperrors.NewValidationError("image_url has no host", nil)
	}
	return nil
}

func (r *FetcherRepository) FetchSheet(ctx context.Context, imageURL string) (image.Image, error) {
	return r.fetcher.FetchSheet(ctx, imageURL)
}

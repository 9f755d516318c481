package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
)

// AzureSheetFetcher reads sheet images from Azure Blob Storage. URLs name
// the container in the path and the blob in the "blob" query parameter,
// matching how the upload side writes scan batches.
type AzureSheetFetcher struct {
	client *azblob.Client
}

func NewAzureSheetFetcher(accountName, accountKey string) (*AzureSheetFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client init: %w", err)
	}
	return &AzureSheetFetcher{client: client}, nil
}

func (f *AzureSheetFetcher) FetchSheet(ctx context.Context, blobURL string) (image.Image, error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid blob URL", err)
	}
	container := strings.TrimPrefix(parsed.Path, "/")
	blobName := parsed.Query().Get("blob")
	if container == "" || blobName == "" {
		return nil, apperrors.NewValidationError("blob URL must name a container path and blob parameter", nil)
	}

	resp, err := f.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	defer resp.Body.Close()

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, apperrors.NewValidationError("unsupported or corrupt image payload", err)
	}
	return img, nil
}

package storage

import (
	"context"
	"image"

	// Sheet photos arrive as JPEG or PNG scans, GIF exports and WebP
	// uploads from mobile clients.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// SheetFetcher retrieves and decodes an answer sheet image by URL.
type SheetFetcher interface {
	FetchSheet(ctx context.Context, imageURL string) (image.Image, error)
}

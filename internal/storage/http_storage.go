package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/logger"
)

const fetchAttempts = 3

// HTTPSheetFetcher downloads sheet photos over HTTP with bounded retries.
// Transient network failures and 5xx responses are retried with linear
// backoff; 4xx responses are treated as caller errors and fail fast.
type HTTPSheetFetcher struct {
	client  *http.Client
	maxSize int64
}

// NewHTTPSheetFetcher builds a fetcher with a connection pool sized for
// one-shot image downloads. maxSize caps the decoded payload in bytes.
func NewHTTPSheetFetcher(timeout time.Duration, maxSize int64) *HTTPSheetFetcher {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &HTTPSheetFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxSize: maxSize,
	}
}

func (f *HTTPSheetFetcher) FetchSheet(ctx context.Context, imageURL string) (image.Image, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		img, retry, err := f.fetchOnce(ctx, imageURL)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !retry {
			break
		}
		if attempt < fetchAttempts {
			logger.WithStage("storage").WithError(err).WithField("attempt", attempt).
				Warn("sheet fetch failed, retrying")
			select {
			case <-ctx.Done():
				return nil, apperrors.NewNetworkError("sheet fetch cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	if appErr, ok := lastErr.(*apperrors.AppError); ok {
		return nil, appErr
	}
	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch sheet after %d attempts", fetchAttempts), lastErr)
}

// fetchOnce performs one download. The second return value reports
// whether the failure is worth retrying.
func (f *HTTPSheetFetcher) fetchOnce(ctx context.Context, imageURL string) (image.Image, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, apperrors.NewValidationError("invalid image URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "omr-service/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, apperrors.NewNetworkError(
			fmt.Sprintf("image URL returned status %d", resp.StatusCode), nil)
	default:
		return nil, true, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, f.maxSize+1)
	img, format, err := image.Decode(body)
	if err != nil {
		return nil, false, apperrors.NewValidationError("unsupported or corrupt image payload", err)
	}
	logger.WithStage("storage").WithField("format", format).Debug("sheet image decoded")
	return img, false, nil
}

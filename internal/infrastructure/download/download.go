package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"convcli/internal/domain/job"
)

// Client streams finished conversion results to local storage.
type Client struct {
	HTTP *http.Client
}

// NewClient creates a result downloader.
func NewClient() *Client {
	return &Client{HTTP: &http.Client{Timeout: 10 * time.Minute}}
}

// Download fetches url into destPath. On a non-200 response or an
// interrupted transfer any partial file is removed before the error is
// reported: a failed download never leaves a partial file on disk.
func (c *Client) Download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &job.DownloadError{URL: url, Err: err}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &job.DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &job.DownloadError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return &job.DownloadError{URL: url, Err: err}
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(destPath)
		return &job.DownloadError{URL: url, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return &job.DownloadError{URL: url, Err: err}
	}
	return nil
}

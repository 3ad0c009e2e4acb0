package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"PopWatcher/internal/ports"
)

// maxImageBytes caps downloads; catalog renditions are well under this.
const maxImageBytes = 5 << 20

// Fetcher downloads product images over HTTP.
type Fetcher struct {
	client *http.Client
}

var _ ports.ImageFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; the client timeout bounds each download.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Resolve downloads the image and returns its bytes.
func (f *Fetcher) Resolve(ctx context.Context, imageURL string) ([]byte, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("empty image url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PopWatcher/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image server returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	return data, nil
}

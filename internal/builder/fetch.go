package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge-agent/internal/logging"
)

// Fetcher retrieves the raw bytes of a segment's source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads segment sources over HTTP with a size cap.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("source exceeds %d byte limit", f.maxBytes)
	}

	f.logger.Info("fetched segment source",
		"url", logging.SanitizeURL(url),
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

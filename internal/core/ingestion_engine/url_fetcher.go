package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

// maxFetchBytes caps how much of a remote page is read.
const maxFetchBytes = 20 << 20

// URLFetcher downloads a page and runs it through the extractor with the URL as source.
type URLFetcher struct {
	client    *http.Client
	extractor core.DocumentExtractor
}

func NewURLFetcher(extractor core.DocumentExtractor, timeout time.Duration) *URLFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &URLFetcher{client: &http.Client{Timeout: timeout}, extractor: extractor}
}

// FetchURL downloads url and extracts it according to its Content-Type.
func (f *URLFetcher) FetchURL(ctx context.Context, url string) (*models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %w", core.ErrExtraction, url, err)
	}
	req.Header.Set("User-Agent", "ragchat/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", core.ErrExtraction, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: status %s", core.ErrExtraction, url, resp.Status)
	}

	format := models.FormatHTML
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			format, err = ParseFormat(mediaType)
			if err != nil {
				return nil, err
			}
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrExtraction, url, err)
	}
	return f.extractor.Extract(body, format, url)
}

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yanderss/internal/domain"
)

const DefaultRequestTimeout = 30 * time.Second

// Fetcher performs every outbound GET of a poll cycle under one bounded
// timeout and writes downloaded assets into saveDir.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	saveDir   string
	log       *slog.Logger
}

func NewFetcher(
	client *http.Client,
	timeout time.Duration,
	ua string,
	saveDir string,
	log *slog.Logger,
) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(ua) == "" {
		ua = userAgent
	}

	return &Fetcher{
		client:    client,
		timeout:   timeout,
		userAgent: ua,
		saveDir:   saveDir,
		log:       log,
	}
}

// Get returns the full body of rawURL. Any non-200 status is an error.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer f.closeBody(ctx, resp, rawURL, "Get")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return data, nil
}

// FetchAsset downloads link into the save directory under the decoded last
// path segment of its URL, overwriting any file of the same name.
func (f *Fetcher) FetchAsset(ctx context.Context, link domain.AssetLink) (domain.Asset, error) {
	name := AssetName(link.URL)
	if name == "" {
		return domain.Asset{}, fmt.Errorf("%w: empty file name for %s", ErrAssetFetchFailed, link.URL)
	}

	dest, err := f.destination(name)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %w", ErrAssetFetchFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, link.URL)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %w", ErrAssetFetchFailed, err)
	}
	defer f.closeBody(ctx, resp, link.URL, "FetchAsset")

	if err = writeFile(dest, resp.Body); err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %w", ErrAssetFetchFailed, err)
	}

	return domain.Asset{
		URL:  link.URL,
		Name: name,
		Path: dest,
		Tier: link.Tier,
	}, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // URLs come from the configured site
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		f.closeBody(ctx, resp, rawURL, "do")
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	return resp, nil
}

func (f *Fetcher) closeBody(ctx context.Context, resp *http.Response, rawURL string, operation string) {
	if err := resp.Body.Close(); err != nil {
		f.log.ErrorContext(ctx, "Failed to close response body",
			"error", err,
			"url", rawURL,
			"operation", operation)
	}
}

func (f *Fetcher) destination(name string) (string, error) {
	dest := filepath.Join(f.saveDir, filepath.FromSlash(name))

	rel, err := filepath.Rel(f.saveDir, dest)
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file name %q escapes save dir", name)
	}

	return dest, nil
}

func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if err = errors.Join(copyErr, closeErr); err != nil {
		return fmt.Errorf("write asset file: %w", err)
	}

	return nil
}

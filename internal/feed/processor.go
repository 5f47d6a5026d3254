package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"yanderss/internal/domain"
)

// Processor turns one feed entry into a download record: it fetches the
// entry page, extracts the best asset link and downloads the asset.
type Processor struct {
	fetcher   *Fetcher
	extractor *Extractor
	source    string
	now       func() time.Time
	log       *slog.Logger
}

func NewProcessor(
	fetcher *Fetcher,
	extractor *Extractor,
	source string,
	log *slog.Logger,
) *Processor {
	if source == "" {
		source = DefaultSite
	}

	return &Processor{
		fetcher:   fetcher,
		extractor: extractor,
		source:    source,
		now:       time.Now,
		log:       log,
	}
}

// Process returns ErrPageUnavailable, ErrNoAssetFound or ErrAssetFetchFailed
// when the entry yields no asset. Each outcome is logged here.
func (p *Processor) Process(ctx context.Context, entry domain.Entry) (domain.DownloadRecord, error) {
	p.log.DebugContext(ctx, "Processing entry",
		"entryURL", entry.Link,
		"feedURL", entry.FeedURL)

	body, err := p.fetcher.Get(ctx, entry.Link)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to fetch entry page",
			"error", err,
			"entryURL", entry.Link,
			"feedURL", entry.FeedURL)

		return domain.DownloadRecord{}, fmt.Errorf("%w: %w", ErrPageUnavailable, err)
	}

	link, err := p.extractor.Extract(NewPage(entry.Link, body))
	if err != nil {
		p.log.WarnContext(ctx, "No asset link found",
			"error", err,
			"entryURL", entry.Link,
			"pageBytes", len(body))

		return domain.DownloadRecord{}, err
	}

	asset, err := p.fetcher.FetchAsset(ctx, link)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to fetch asset",
			"error", err,
			"entryURL", entry.Link,
			"assetURL", link.URL,
			"tier", link.Tier)

		return domain.DownloadRecord{}, err
	}

	record := domain.DownloadRecord{
		Source:       p.source,
		EntryURL:     entry.Link,
		FeedURL:      entry.FeedURL,
		AssetURL:     asset.URL,
		AssetName:    asset.Name,
		DownloadedAt: p.now(),
	}

	p.log.InfoContext(ctx, "Asset is downloaded",
		"entryURL", entry.Link,
		"assetURL", asset.URL,
		"assetName", asset.Name,
		"path", asset.Path,
		"tier", asset.Tier)

	return record, nil
}

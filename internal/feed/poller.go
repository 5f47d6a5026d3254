package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"yanderss/internal/domain"
	"yanderss/internal/index"
)

type EntryProcessor interface {
	Process(ctx context.Context, entry domain.Entry) (domain.DownloadRecord, error)
}

type Notifier interface {
	NotifyDownload(ctx context.Context, record domain.DownloadRecord) error
}

// Poller reads feeds and downloads every entry the dedup index does not
// know yet. Entries are handled one at a time in feed order.
type Poller struct {
	fetcher   *Fetcher
	libParser *gofeed.Parser
	processor EntryProcessor
	notifier  Notifier
	indexPath string
	log       *slog.Logger
}

func NewPoller(
	fetcher *Fetcher,
	processor EntryProcessor,
	notifier Notifier,
	indexPath string,
	log *slog.Logger,
) *Poller {
	return &Poller{
		fetcher:   fetcher,
		libParser: gofeed.NewParser(),
		processor: processor,
		notifier:  notifier,
		indexPath: indexPath,
		log:       log,
	}
}

// Cycle remembers which entries were attempted so that none is retried
// before the next cycle, even when several feeds list it.
type Cycle struct {
	poller    *Poller
	attempted map[string]struct{}
	stats     domain.PollStats
}

func (p *Poller) NewCycle() *Cycle {
	return &Cycle{
		poller:    p,
		attempted: make(map[string]struct{}),
	}
}

func (c *Cycle) Stats() domain.PollStats {
	return c.stats
}

// PollOnce polls feedURL in a cycle of its own.
func (p *Poller) PollOnce(ctx context.Context, feedURL string) (domain.PollStats, error) {
	c := p.NewCycle()
	err := c.PollOnce(ctx, feedURL)

	return c.stats, err
}

// PollOnce returns an ErrFeedUnavailable error when the feed cannot be read
// and an index.ErrIndexWrite error when a record could not be persisted.
// Entry level failures are logged and never returned.
func (c *Cycle) PollOnce(ctx context.Context, feedURL string) error {
	p := c.poller

	idx, err := index.Open(p.indexPath)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	entries, err := p.readFeed(ctx, feedURL)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to read feed",
			"error", err,
			"feedURL", feedURL)

		return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	p.log.InfoContext(ctx, "Feed is read",
		"feedURL", feedURL,
		"entries", len(entries),
		"indexed", idx.Len())

	var stats domain.PollStats
	defer func() { c.stats.Add(stats) }()

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return err
		}

		stats.Entries++

		if idx.Contains(entry.Link) {
			p.log.InfoContext(ctx, "Skipping already downloaded entry",
				"entryURL", entry.Link,
				"feedURL", feedURL)

			stats.Skipped++
			continue
		}

		if _, ok := c.attempted[entry.Link]; ok {
			p.log.DebugContext(ctx, "Skipping entry attempted in this cycle",
				"entryURL", entry.Link,
				"feedURL", feedURL)

			stats.Skipped++
			continue
		}
		c.attempted[entry.Link] = struct{}{}

		record, processErr := p.processor.Process(ctx, entry)
		if processErr != nil {
			stats.Failed++
			continue
		}

		if err = idx.Append(record); err != nil {
			return err
		}
		stats.Downloaded++

		p.notify(ctx, record)
	}

	p.log.InfoContext(ctx, "Feed is polled",
		"feedURL", feedURL,
		"entries", stats.Entries,
		"skipped", stats.Skipped,
		"downloaded", stats.Downloaded,
		"failed", stats.Failed)

	return nil
}

func (p *Poller) readFeed(ctx context.Context, feedURL string) ([]domain.Entry, error) {
	data, err := p.fetcher.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	parsed, err := p.libParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]domain.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		link := strings.TrimSpace(item.Link)
		if link == "" {
			p.log.WarnContext(ctx, "Skipping feed item with empty URL",
				"feedURL", feedURL,
				"itemTitle", strings.TrimSpace(item.Title))

			continue
		}

		entries = append(entries, domain.Entry{Link: link, FeedURL: feedURL})
	}

	return entries, nil
}

func (p *Poller) notify(ctx context.Context, record domain.DownloadRecord) {
	if p.notifier == nil {
		return
	}

	if err := p.notifier.NotifyDownload(ctx, record); err != nil {
		p.log.WarnContext(ctx, "Failed to send download notification",
			"error", err,
			"entryURL", record.EntryURL)
	}
}

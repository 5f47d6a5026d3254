package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"yanderss/internal/domain"
	"yanderss/internal/feed"
)

type KeywordLister interface {
	ListKeywords(ctx context.Context) ([]string, error)
}

// KeywordCycle polls the feed of every configured keyword once.
type KeywordCycle struct {
	keywords KeywordLister
	poller   *feed.Poller
	feedURL  func(keyword string) string
	log      *slog.Logger
}

func NewKeywordCycle(
	keywords KeywordLister,
	poller *feed.Poller,
	feedURL func(keyword string) string,
	log *slog.Logger,
) *KeywordCycle {
	return &KeywordCycle{
		keywords: keywords,
		poller:   poller,
		feedURL:  feedURL,
		log:      log,
	}
}

// RunCycle skips feeds that cannot be read and stops only when the index
// could not be written or ctx is done.
func (c *KeywordCycle) RunCycle(ctx context.Context) error {
	start := time.Now()

	keywords, err := c.keywords.ListKeywords(ctx)
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}

	c.log.InfoContext(ctx, "Poll cycle is started",
		"keywords", len(keywords))

	cycle := c.poller.NewCycle()
	failedFeeds := 0

	for _, keyword := range keywords {
		if err = ctx.Err(); err != nil {
			return err
		}

		feedURL := c.feedURL(keyword)

		err = cycle.PollOnce(ctx, feedURL)
		if err == nil {
			continue
		}

		if errors.Is(err, feed.ErrFeedUnavailable) {
			failedFeeds++
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("poll feed (keyword = %s): %w", keyword, err)
	}

	c.logCompleted(ctx, start, len(keywords), failedFeeds, cycle.Stats())

	return nil
}

func (c *KeywordCycle) logCompleted(
	ctx context.Context,
	start time.Time,
	feeds int,
	failedFeeds int,
	stats domain.PollStats,
) {
	c.log.InfoContext(ctx, "Poll cycle is completed",
		"feeds", feeds,
		"failedFeeds", failedFeeds,
		"entries", stats.Entries,
		"skipped", stats.Skipped,
		"downloaded", stats.Downloaded,
		"failed", stats.Failed,
		"durationSeconds", time.Since(start).Seconds())
}

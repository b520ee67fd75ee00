package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"sentibot/internal/types"
)

// rssSource pulls headlines from an RSS/Atom feed whose URL embeds the
// symbol (Yahoo Finance / Investors.com style feeds).
type rssSource struct {
	id          string
	urlTemplate string
	maxItems    int
	parser      *gofeed.Parser
	limiter     *hostLimiter
	retry       retryConfig
}

func newRSSSource(id, urlTemplate string, maxItems int, timeout time.Duration, limiter *hostLimiter, retry retryConfig) *rssSource {
	parser := gofeed.NewParser()
	parser.UserAgent = "sentibot/1.0"
	parser.Client = newHTTPClient(timeout)
	return &rssSource{
		id:          id,
		urlTemplate: urlTemplate,
		maxItems:    maxItems,
		parser:      parser,
		limiter:     limiter,
		retry:       retry,
	}
}

func (s *rssSource) ID() string { return s.id }

func (s *rssSource) Fetch(ctx context.Context, symbol string) ([]types.HeadlineItem, error) {
	feedURL := expandSymbol(s.urlTemplate, symbol)

	if err := s.limiter.wait(ctx); err != nil {
		return nil, err
	}

	var feed *gofeed.Feed
	err := withRetry(ctx, s.retry, func() error {
		var perr error
		feed, perr = s.parser.ParseURLWithContext(feedURL, ctx)
		return perr
	})
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]types.HeadlineItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if len(items) >= s.maxItems {
			break
		}
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}

		var observed time.Time
		if entry.PublishedParsed != nil {
			observed = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			observed = *entry.UpdatedParsed
		}

		items = append(items, types.HeadlineItem{
			Text:       title,
			SourceID:   s.id,
			ObservedAt: observed,
		})
	}

	return items, nil
}
